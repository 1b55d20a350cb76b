package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// mockMDNSServer is a mock implementation of MDNSServer for testing.
type mockMDNSServer struct {
	shutdownCalled bool
}

func (m *mockMDNSServer) Shutdown() {
	m.shutdownCalled = true
}

type registration struct {
	instance string
	service  string
	domain   string
	port     int
	txt      []string
}

// mockMDNSServerFactory is a mock implementation of MDNSServerFactory for testing.
type mockMDNSServerFactory struct {
	mu         sync.Mutex
	servers    []*mockMDNSServer
	last       registration
	shouldFail bool
}

func (f *mockMDNSServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail {
		return nil, errors.New("mdns unavailable")
	}
	f.last = registration{instance: instance, service: service, domain: domain, port: port, txt: txt}
	server := &mockMDNSServer{}
	f.servers = append(f.servers, server)
	return server, nil
}

var lockTXT = NodeTXT{NodeID: 12, CommandClasses: []uint8{0x83}, MaxUsers: 20}

func TestNodeTXT(t *testing.T) {
	records := lockTXT.Encode()
	if diff := cmp.Diff([]string{"id=12", "cc=83", "users=20"}, records); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}

	got, err := ParseNodeTXT(append(records, "junk"))
	if err != nil {
		t.Fatalf("ParseNodeTXT() error = %v", err)
	}
	if diff := cmp.Diff(lockTXT, got); diff != "" {
		t.Errorf("ParseNodeTXT() mismatch (-want +got):\n%s", diff)
	}
	if !got.Supports(0x83) || got.Supports(0x62) {
		t.Error("Supports() disagrees with cc=83")
	}

	multi := NodeTXT{NodeID: 1, CommandClasses: []uint8{0x62, 0x83}}
	if back, _ := ParseNodeTXT(multi.Encode()); !back.Supports(0x62) || !back.Supports(0x83) {
		t.Errorf("ParseNodeTXT() = %+v, want both classes", back)
	}
}

func TestParseNodeTXT_Errors(t *testing.T) {
	tests := []struct {
		name    string
		records []string
	}{
		{"missing id", []string{"cc=83"}},
		{"zero id", []string{"id=0"}},
		{"bad class", []string{"id=1", "cc=zz"}},
		{"bad users", []string{"id=1", "users=-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseNodeTXT(tt.records); !errors.Is(err, ErrInvalidTXTRecord) {
				t.Errorf("ParseNodeTXT() error = %v, want %v", err, ErrInvalidTXTRecord)
			}
		})
	}
}

func TestAdvertiser(t *testing.T) {
	factory := &mockMDNSServerFactory{}
	adv, err := NewAdvertiser(AdvertiserConfig{Port: 4123, ServerFactory: factory})
	if err != nil {
		t.Fatalf("NewAdvertiser() error = %v", err)
	}

	if err := adv.Start(NodeTXT{}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("Start() without node id error = %v, want %v", err, ErrInvalidNodeID)
	}
	if err := adv.Stop(); err != ErrNotStarted {
		t.Errorf("Stop() before Start error = %v, want %v", err, ErrNotStarted)
	}

	if err := adv.Start(lockTXT); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := registration{
		instance: "doorlock-000C",
		service:  "_z-wave._udp",
		domain:   "local.",
		port:     4123,
		txt:      []string{"id=12", "cc=83", "users=20"},
	}
	if diff := cmp.Diff(want, factory.last, cmp.AllowUnexported(registration{})); diff != "" {
		t.Errorf("registration mismatch (-want +got):\n%s", diff)
	}
	if !adv.IsAdvertising() || adv.Instance() != "doorlock-000C" {
		t.Errorf("IsAdvertising() = %t, Instance() = %q", adv.IsAdvertising(), adv.Instance())
	}
	if err := adv.Start(lockTXT); err != ErrAlreadyStarted {
		t.Errorf("Start() twice error = %v, want %v", err, ErrAlreadyStarted)
	}

	if err := adv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !factory.servers[0].shutdownCalled {
		t.Error("Close() did not shut the server down")
	}
	if err := adv.Start(lockTXT); err != ErrClosed {
		t.Errorf("Start() after Close error = %v, want %v", err, ErrClosed)
	}
}

func TestAdvertiser_RegisterFailure(t *testing.T) {
	if _, err := NewAdvertiser(AdvertiserConfig{}); err == nil {
		t.Error("NewAdvertiser() without port succeeded")
	}
	adv, _ := NewAdvertiser(AdvertiserConfig{Port: 1, ServerFactory: &mockMDNSServerFactory{shouldFail: true}})
	if err := adv.Start(lockTXT); err == nil || adv.IsAdvertising() {
		t.Errorf("Start() error = %v, advertising = %t", err, adv.IsAdvertising())
	}
}

func newMockResolver(t *testing.T) *Resolver {
	t.Helper()
	mock := &StaticResolver{}
	mock.Add(LockRecord(lockTXT, 4123, net.IPv4(192, 168, 1, 12)))
	broken := LockRecord(NodeTXT{NodeID: 13}, 4123, net.IPv4(192, 168, 1, 13))
	broken.Text = []string{"cc=83"}
	mock.Add(broken)

	r, err := NewResolver(ResolverConfig{MDNSResolver: mock, BrowseTimeout: time.Second, LookupTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func TestResolver_Browse(t *testing.T) {
	r := newMockResolver(t)

	var nodes []ResolvedNode
	for n := range r.Browse(context.Background()) {
		nodes = append(nodes, n)
	}
	if len(nodes) != 1 {
		t.Fatalf("Browse() found %d nodes, want 1 (bad TXT skipped)", len(nodes))
	}
	if diff := cmp.Diff(lockTXT, nodes[0].TXT); diff != "" {
		t.Errorf("TXT mismatch (-want +got):\n%s", diff)
	}
	if got := nodes[0].Addr().String(); got != "192.168.1.12:4123" {
		t.Errorf("Addr() = %s", got)
	}
}

func TestResolver_Lookup(t *testing.T) {
	r := newMockResolver(t)

	node, err := r.Lookup(context.Background(), 12)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if node.InstanceName != "doorlock-000C" || node.TXT.MaxUsers != 20 {
		t.Errorf("Lookup() = %+v", node)
	}

	if _, err := r.Lookup(context.Background(), 99); err != ErrServiceNotFound {
		t.Errorf("Lookup() of unknown node error = %v, want %v", err, ErrServiceNotFound)
	}
}
