package node

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/discovery"
	"github.com/backkem/doorlock/pkg/frame"
	"github.com/backkem/doorlock/pkg/handler"
	"github.com/backkem/doorlock/pkg/learn"
	"github.com/backkem/doorlock/pkg/nvm"
	"github.com/backkem/doorlock/pkg/transport"
	"github.com/backkem/doorlock/pkg/usercred"
	"github.com/google/go-cmp/cmp"
)

const (
	lockID       uint16 = 12
	controllerID uint16 = 1
)

var admin = credential.User{
	UUID:           1,
	Type:           credential.UserTypeProgramming,
	Active:         true,
	CredentialRule: credential.CredentialRuleSingle,
	Name:           []byte("Admin"),
}

var guest = credential.User{
	UUID:           2,
	Type:           credential.UserTypeGeneral,
	Active:         true,
	CredentialRule: credential.CredentialRuleSingle,
	Name:           []byte("Guest"),
}

func testConfig() Config {
	return Config{
		NodeID:       lockID,
		Capabilities: credential.DefaultCapabilities(),
		Store:        nvm.NewMemoryStore(),
		ListenAddr:   "127.0.0.1:0",
	}
}

func TestNew(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		cfg := testConfig()
		cfg.Store = nil
		if _, err := New(cfg); !errors.Is(err, ErrStoreRequired) {
			t.Errorf("New() error = %v, want %v", err, ErrStoreRequired)
		}
	})

	for _, id := range []uint16{0, transport.Broadcast} {
		cfg := testConfig()
		cfg.NodeID = id
		if _, err := New(cfg); !errors.Is(err, ErrInvalidNodeID) {
			t.Errorf("New(node %d) error = %v, want %v", id, err, ErrInvalidNodeID)
		}
	}

	t.Run("lifeline over capacity", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxLifelineMembers = 1
		cfg.Lifeline = []uint16{1, 2}
		if _, err := New(cfg); err == nil {
			t.Error("expected error")
		}
	})
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateInitialized: "Initialized",
		StateRunning:     "Running",
		StateStopped:     "Stopped",
		State(9):         "Unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestLifecycle(t *testing.T) {
	n, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := n.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop() before Start error = %v, want %v", err, ErrNotStarted)
	}
	if err := n.Transmit(controllerID, []byte{0x83, 0x01}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Transmit() before Start error = %v, want %v", err, ErrNotStarted)
	}

	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if n.State() != StateRunning {
		t.Errorf("State() = %v, want Running", n.State())
	}
	if n.LocalAddr() == nil {
		t.Error("LocalAddr() = nil after Start")
	}
	if err := n.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
	}

	if err := n.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := n.Stop(); !errors.Is(err, ErrAlreadyStopped) {
		t.Errorf("second Stop() error = %v, want %v", err, ErrAlreadyStopped)
	}
	if err := n.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want %v", err, ErrStopped)
	}
	if _, err := n.Users(); !errors.Is(err, ErrStopped) {
		t.Errorf("Users() after Stop error = %v, want %v", err, ErrStopped)
	}
	if n.Post(func() {}) {
		t.Error("Post() after Stop = true")
	}
}

func TestStopOnContextCancel(t *testing.T) {
	n, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for n.State() != StateStopped {
		if time.Now().After(deadline) {
			t.Fatal("node did not stop on context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLocalBeforeStart(t *testing.T) {
	n, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := n.SetUser(credential.OperationAdd, admin); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}
	pin := credential.Credential{UUID: 1, Type: credential.CredentialTypePINCode, Slot: 1, Data: []byte("3494")}
	if err := n.SetCredential(credential.OperationAdd, pin); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	users, err := n.Users()
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 1 || users[0].UUID != 1 {
		t.Fatalf("Users() = %v, want admin", users)
	}
	if users[0].Modifier.Type != credential.ModifierLocal {
		t.Errorf("modifier = %v, want Local", users[0].Modifier.Type)
	}

	creds, err := n.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if len(creds) != 1 || creds[0].Key() != pin.Key() {
		t.Fatalf("Credentials() = %v, want the PIN", creds)
	}

	sums, err := n.Checksums()
	if err != nil {
		t.Fatalf("Checksums() error = %v", err)
	}
	if sums.AllUsers == nil || *sums.AllUsers == 0 {
		t.Errorf("AllUsers checksum = %v, want non-zero", sums.AllUsers)
	}
	if _, ok := sums.Users[1]; !ok {
		t.Errorf("Users checksums = %v, want entry for user 1", sums.Users)
	}
	if len(sums.Credentials) != len(n.Capabilities().Credentials) {
		t.Errorf("Credentials checksums = %v, want one per type", sums.Credentials)
	}

	if _, err := n.SetAdminCode(credential.AdminCode("7310")); err != nil {
		t.Fatalf("SetAdminCode() error = %v", err)
	}

	if err := n.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if users, _ := n.Users(); len(users) != 0 {
		t.Errorf("Users() after Reset = %v, want none", users)
	}
}

func TestChecksums_Unsupported(t *testing.T) {
	cfg := testConfig()
	cfg.Capabilities.AllUsersChecksum = false
	cfg.Capabilities.UserChecksum = false
	cfg.Capabilities.CredentialChecksum = false
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sums, err := n.Checksums()
	if err != nil {
		t.Fatalf("Checksums() error = %v", err)
	}
	if diff := cmp.Diff(Checksums{}, sums); diff != "" {
		t.Errorf("Checksums() mismatch (-want +got):\n%s", diff)
	}
}

// loopback is a lock and a controller joined by an in-memory link.
type loopback struct {
	lock       *Node
	controller *transport.UDP
	frames     chan any
	statuses   chan handler.Status
}

func newLoopback(t *testing.T, mutate func(*Config)) *loopback {
	t.Helper()
	p := transport.NewPipe()
	t.Cleanup(func() { p.Close() })
	lockConn, ctrlConn := p.PacketConn(0), p.PacketConn(1)

	lb := &loopback{
		frames:   make(chan any, 16),
		statuses: make(chan handler.Status, 16),
	}

	cfg := testConfig()
	cfg.Conn = lockConn
	cfg.Peers = map[uint16]net.Addr{controllerID: lockConn.PeerAddr()}
	cfg.Lifeline = []uint16{controllerID}
	cfg.OnFrameHandled = func(_ uint16, status handler.Status) { lb.statuses <- status }
	if mutate != nil {
		mutate(&cfg)
	}

	var err error
	lb.lock, err = New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := lb.lock.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { lb.lock.Stop() })

	lb.controller, err = transport.NewUDP(transport.UDPConfig{
		Conn:   ctrlConn,
		NodeID: controllerID,
		Peers:  map[uint16]net.Addr{lockID: ctrlConn.PeerAddr()},
		Handler: func(src uint16, payload []byte) {
			msg, err := frame.Decode(payload)
			if err != nil {
				t.Errorf("controller got undecodable frame % X: %v", payload, err)
				return
			}
			lb.frames <- msg
		},
	})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}
	if err := lb.controller.Start(); err != nil {
		t.Fatalf("controller Start() error = %v", err)
	}
	t.Cleanup(func() { lb.controller.Stop() })
	return lb
}

func (lb *loopback) send(t *testing.T, msg any) handler.Status {
	t.Helper()
	b, err := frame.Encode(msg)
	if err != nil {
		t.Fatalf("Encode(%T) error = %v", msg, err)
	}
	if err := lb.controller.Transmit(lockID, b); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	select {
	case s := <-lb.statuses:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %T to be handled", msg)
		return 0
	}
}

func (lb *loopback) next(t *testing.T) any {
	t.Helper()
	select {
	case msg := <-lb.frames:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a frame at the controller")
		return nil
	}
}

func TestLoopback(t *testing.T) {
	lb := newLoopback(t, nil)

	t.Run("remote add user", func(t *testing.T) {
		if s := lb.send(t, frame.UserSet{Operation: credential.OperationAdd, User: admin}); s != handler.StatusSuccess {
			t.Fatalf("status = %v, want Success", s)
		}
		r, ok := lb.next(t).(usercred.UserReport)
		if !ok || r.Type != usercred.UserAdded {
			t.Fatalf("reply = %+v, want UserAdded", r)
		}
		if r.User.Modifier != (credential.Modifier{Type: credential.ModifierZWave, Node: controllerID}) {
			t.Errorf("modifier = %+v, want Z-Wave node %d", r.User.Modifier, controllerID)
		}
	})

	t.Run("remote add credential", func(t *testing.T) {
		pin := credential.Credential{UUID: 1, Type: credential.CredentialTypePINCode, Slot: 1, Data: []byte("3494")}
		if s := lb.send(t, frame.CredentialSet{Operation: credential.OperationAdd, Credential: pin}); s != handler.StatusSuccess {
			t.Fatalf("status = %v, want Success", s)
		}
		r, ok := lb.next(t).(usercred.CredentialReport)
		if !ok || r.Type != usercred.CredentialAdded || r.Credential.Key() != pin.Key() {
			t.Fatalf("reply = %+v, want CredentialAdded for %s", r, pin.Key())
		}
	})

	t.Run("local change notifies lifeline", func(t *testing.T) {
		if err := lb.lock.SetUser(credential.OperationAdd, guest); err != nil {
			t.Fatalf("SetUser() error = %v", err)
		}
		r, ok := lb.next(t).(usercred.UserReport)
		if !ok || r.Type != usercred.UserAdded || r.User.UUID != guest.UUID {
			t.Fatalf("notification = %+v, want UserAdded for user 2", r)
		}
	})

	t.Run("checksum matches local", func(t *testing.T) {
		if s := lb.send(t, frame.AllUsersChecksumGet{}); s != handler.StatusSuccess {
			t.Fatalf("status = %v, want Success", s)
		}
		r, ok := lb.next(t).(frame.AllUsersChecksumReport)
		if !ok {
			t.Fatalf("reply is not an AllUsersChecksumReport")
		}
		sums, err := lb.lock.Checksums()
		if err != nil {
			t.Fatalf("Checksums() error = %v", err)
		}
		if r.Checksum != *sums.AllUsers {
			t.Errorf("remote checksum %04X, local %04X", r.Checksum, *sums.AllUsers)
		}
	})

	t.Run("learn", func(t *testing.T) {
		key := credential.CredentialKey{Type: credential.CredentialTypeFingerBiometric, Slot: 1}
		s := lb.send(t, frame.CredentialLearnStart{UUID: 1, Key: key, Operation: credential.OperationAdd})
		if s != handler.StatusWorking {
			t.Fatalf("status = %v, want Working", s)
		}
		if r, ok := lb.next(t).(usercred.LearnReport); !ok || r.Status != usercred.LearnStarted {
			t.Fatalf("reply = %+v, want LearnStarted", r)
		}

		if err := lb.lock.LearnReadDone([]byte{0xF1, 0x9E, 0x77}); err != nil {
			t.Fatalf("LearnReadDone() error = %v", err)
		}
		if r, ok := lb.next(t).(usercred.CredentialReport); !ok || r.Type != usercred.CredentialAdded {
			t.Fatalf("reply = %+v, want CredentialAdded", r)
		}
		if r, ok := lb.next(t).(usercred.LearnReport); !ok || r.Status != usercred.LearnSuccess {
			t.Fatalf("reply = %+v, want LearnSuccess", r)
		}
		if st, err := lb.lock.LearnState(); err != nil || st != learn.StateIdle {
			t.Errorf("LearnState() = %v, %v, want Idle", st, err)
		}
	})

	t.Run("garbage frame", func(t *testing.T) {
		if err := lb.controller.Transmit(lockID, []byte{0x20, 0x01}); err != nil {
			t.Fatalf("Transmit() error = %v", err)
		}
		select {
		case s := <-lb.statuses:
			if s != handler.StatusNoSupport {
				t.Errorf("status = %v, want NoSupport", s)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout")
		}
	})
}

type fakeServer struct {
	mu       sync.Mutex
	shutdown bool
}

func (s *fakeServer) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

type fakeServerFactory struct {
	port    int
	txt     []string
	servers []*fakeServer
}

func (f *fakeServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (discovery.MDNSServer, error) {
	f.port, f.txt = port, txt
	s := &fakeServer{}
	f.servers = append(f.servers, s)
	return s, nil
}

func TestAdvertise(t *testing.T) {
	factory := &fakeServerFactory{}
	lb := newLoopback(t, func(c *Config) {
		c.Advertise = true
		c.AdvertisePort = transport.DefaultPort
		c.ServerFactory = factory
	})

	if factory.port != transport.DefaultPort {
		t.Errorf("advertised port = %d, want %d", factory.port, transport.DefaultPort)
	}
	txt, err := discovery.ParseNodeTXT(factory.txt)
	if err != nil {
		t.Fatalf("ParseNodeTXT() error = %v", err)
	}
	want := discovery.NodeTXT{NodeID: lockID, CommandClasses: []uint8{frame.Class}, MaxUsers: 20}
	if diff := cmp.Diff(want, txt); diff != "" {
		t.Errorf("TXT mismatch (-want +got):\n%s", diff)
	}

	if err := lb.lock.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !factory.servers[0].shutdown {
		t.Error("mDNS server not shut down on Stop")
	}
}
