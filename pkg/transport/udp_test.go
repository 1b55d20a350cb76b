package transport

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

type received struct {
	src     uint16
	payload []byte
}

func collector() (FrameHandler, chan received) {
	ch := make(chan received, 8)
	return func(src uint16, payload []byte) {
		ch <- received{src: src, payload: payload}
	}, ch
}

func waitFrame(t *testing.T, ch chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return received{}
	}
}

// pipePair returns node 1 on endpoint 0, which knows node 2, and node 2 on
// endpoint 1, which knows nobody.
func pipePair(t *testing.T) (*UDP, *UDP, chan received, chan received) {
	t.Helper()
	p := NewPipe()
	t.Cleanup(func() { p.Close() })

	c0, c1 := p.PacketConn(0), p.PacketConn(1)
	h1, ch1 := collector()
	h2, ch2 := collector()

	u1, err := NewUDP(UDPConfig{Conn: c0, NodeID: 1, Peers: map[uint16]net.Addr{2: c0.PeerAddr()}, Handler: h1})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}
	u2, err := NewUDP(UDPConfig{Conn: c1, NodeID: 2, Handler: h2})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}
	for _, u := range []*UDP{u1, u2} {
		if err := u.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		u := u
		t.Cleanup(func() { u.Stop() })
	}
	return u1, u2, ch1, ch2
}

func TestNewUDP(t *testing.T) {
	t.Run("without handler", func(t *testing.T) {
		if _, err := NewUDP(UDPConfig{ListenAddr: "127.0.0.1:0"}); err != ErrNoHandler {
			t.Errorf("NewUDP() error = %v, want %v", err, ErrNoHandler)
		}
	})

	t.Run("with injected conn", func(t *testing.T) {
		conn, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("ListenPacket() error = %v", err)
		}
		u, err := NewUDP(UDPConfig{Conn: conn, Handler: func(uint16, []byte) {}})
		if err != nil {
			t.Fatalf("NewUDP() error = %v", err)
		}
		defer u.Stop()
		if u.LocalAddr() != conn.LocalAddr() {
			t.Error("NewUDP() did not use injected conn")
		}
	})
}

func TestUDPStartStop(t *testing.T) {
	u, err := NewUDP(UDPConfig{ListenAddr: "127.0.0.1:0", Handler: func(uint16, []byte) {}})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}
	if err := u.Start(); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if err := u.Start(); err != ErrAlreadyStarted {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}
	if err := u.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := u.Stop(); err != ErrClosed {
		t.Errorf("Stop() second call error = %v, want %v", err, ErrClosed)
	}
	if err := u.Start(); err != ErrClosed {
		t.Errorf("Start() after Stop error = %v, want %v", err, ErrClosed)
	}
	if err := u.Transmit(1, []byte{0x83}); err != ErrClosed {
		t.Errorf("Transmit() after Stop error = %v, want %v", err, ErrClosed)
	}
}

func TestUDP_PipeExchange(t *testing.T) {
	u1, u2, ch1, ch2 := pipePair(t)

	if err := u2.Transmit(1, []byte{0x83, 0x01}); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("Transmit() to unlearned node error = %v, want %v", err, ErrUnknownPeer)
	}

	if err := u1.Transmit(2, []byte{0x83, 0x01}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	got := waitFrame(t, ch2)
	if got.src != 1 || !bytes.Equal(got.payload, []byte{0x83, 0x01}) {
		t.Errorf("node 2 received %+v", got)
	}

	// Node 2 learned node 1 from the envelope source.
	if err := u2.Transmit(1, []byte{0x83, 0x02}); err != nil {
		t.Fatalf("Transmit() reply error = %v", err)
	}
	got = waitFrame(t, ch1)
	if got.src != 2 || !bytes.Equal(got.payload, []byte{0x83, 0x02}) {
		t.Errorf("node 1 received %+v", got)
	}
}

func TestUDP_DropsForeignFrames(t *testing.T) {
	u1, _, _, ch2 := pipePair(t)

	// Address node 9 through node 2's endpoint, then a broadcast.
	u1.AddPeer(9, PipeAddr{ID: 1})
	if err := u1.Transmit(9, []byte{0x83, 0x09}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	u1.AddPeer(Broadcast, PipeAddr{ID: 1})
	if err := u1.Transmit(Broadcast, []byte{0x83, 0xFF}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	got := waitFrame(t, ch2)
	if !bytes.Equal(got.payload, []byte{0x83, 0xFF}) {
		t.Errorf("node 2 received % X, want only the broadcast", got.payload)
	}
}

func TestUDP_MessageTooLarge(t *testing.T) {
	u1, _, _, _ := pipePair(t)
	if err := u1.Transmit(2, make([]byte, MaxPayloadSize+1)); err != ErrMessageTooLarge {
		t.Errorf("Transmit() error = %v, want %v", err, ErrMessageTooLarge)
	}
}

func TestUDP_Loopback(t *testing.T) {
	h2, ch2 := collector()
	u2, err := NewUDP(UDPConfig{ListenAddr: "127.0.0.1:0", NodeID: 2, Handler: h2})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}
	u1, err := NewUDP(UDPConfig{
		ListenAddr: "127.0.0.1:0",
		NodeID:     1,
		Peers:      map[uint16]net.Addr{2: u2.LocalAddr()},
		Handler:    func(uint16, []byte) {},
	})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}
	for _, u := range []*UDP{u1, u2} {
		if err := u.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer u.Stop()
	}

	if err := u1.Transmit(2, []byte{0x83, 0x14}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	got := waitFrame(t, ch2)
	if got.src != 1 || !bytes.Equal(got.payload, []byte{0x83, 0x14}) {
		t.Errorf("received %+v", got)
	}
}
