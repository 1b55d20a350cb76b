package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultPort is the default listen port of a node.
const DefaultPort = 4123

// UDP carries node envelopes over a packet connection.
// It wraps a net.PacketConn and runs a read loop that calls the configured
// FrameHandler for each frame addressed to the local node. Peer addresses
// are configured up front or learned from the source of received frames.
type UDP struct {
	conn    net.PacketConn
	node    uint16
	handler FrameHandler
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	peers   map[uint16]net.Addr
	started bool
	closed  bool
}

// UDPConfig configures a UDP endpoint.
type UDPConfig struct {
	// Conn, when set, is used as is and ListenAddr is ignored.
	Conn net.PacketConn

	// ListenAddr defaults to ":4123".
	ListenAddr string

	// NodeID is the local node. Frames for other nodes are dropped.
	NodeID uint16

	// Peers maps node IDs to known addresses.
	Peers map[uint16]net.Addr

	// Handler is called for each received frame. Required.
	Handler FrameHandler

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// NewUDP binds the endpoint. Reading begins at Start.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	u := &UDP{
		conn:    config.Conn,
		node:    config.NodeID,
		handler: config.Handler,
		closeCh: make(chan struct{}),
		peers:   make(map[uint16]net.Addr, len(config.Peers)),
		log:     config.LoggerFactory.NewLogger("transport-udp"),
	}
	for id, addr := range config.Peers {
		u.peers[id] = addr
	}

	if u.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
		}
		u.conn = conn
	}

	return u, nil
}

// Start begins the read loop.
func (u *UDP) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	if u.started {
		u.mu.Unlock()
		return ErrAlreadyStarted
	}
	u.started = true
	u.mu.Unlock()

	u.log.Infof("node %d listening on %s", u.node, u.conn.LocalAddr())

	u.wg.Add(1)
	go u.readLoop()
	return nil
}

// Stop closes the socket and waits for the reader goroutine.
func (u *UDP) Stop() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.closed = true
	u.mu.Unlock()

	close(u.closeCh)

	// Unblock a pending read.
	u.conn.SetReadDeadline(time.Now())
	err := u.conn.Close()
	u.wg.Wait()
	return err
}

// AddPeer records the address of node.
func (u *UDP) AddPeer(node uint16, addr net.Addr) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.peers[node] = addr
}

// Peer returns the known address of node.
func (u *UDP) Peer(node uint16) (net.Addr, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	addr, ok := u.peers[node]
	return addr, ok
}

// Transmit sends payload to node dst.
func (u *UDP) Transmit(dst uint16, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrMessageTooLarge
	}

	u.mu.RLock()
	closed := u.closed
	addr, ok := u.peers[dst]
	u.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: node %d", ErrUnknownPeer, dst)
	}

	u.log.Tracef("sending %d bytes to node %d at %v", len(payload), dst, addr)
	env := Envelope{Src: u.node, Dst: dst, Payload: payload}
	if _, err := u.conn.WriteTo(env.Marshal(), addr); err != nil {
		return fmt.Errorf("transport: send to node %d: %w", dst, err)
	}
	return nil
}

// LocalAddr is the bound socket address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// NodeID returns the local node.
func (u *UDP) NodeID() uint16 {
	return u.node
}

func (u *UDP) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.closeCh:
				return
			default:
			}
			u.log.Warnf("read error: %v", err)
			continue
		}

		env, err := ParseEnvelope(buf[:n])
		if err != nil {
			u.log.Debugf("dropping datagram from %v: %v", addr, err)
			continue
		}
		if env.Dst != u.node && env.Dst != Broadcast {
			u.log.Tracef("dropping frame for node %d", env.Dst)
			continue
		}

		if _, known := u.Peer(env.Src); !known {
			u.log.Debugf("learned node %d at %v", env.Src, addr)
			u.AddPeer(env.Src, addr)
		}

		payload := make([]byte, len(env.Payload))
		copy(payload, env.Payload)
		u.handler(env.Src, payload)
	}
}
