package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// pipeTick is how often queued packets are pushed across the bridge.
const pipeTick = time.Millisecond

// Pipe joins two in-process endpoints over pion's test.Bridge so a lock and
// a controller can exchange frames without sockets.
type Pipe struct {
	bridge *test.Bridge
	once   sync.Once
	done   chan struct{}
	pump   sync.WaitGroup
}

// NewPipe returns a pipe that forwards packets in the background until Close.
func NewPipe() *Pipe {
	p := &Pipe{bridge: test.NewBridge(), done: make(chan struct{})}
	p.pump.Add(1)
	go p.forward()
	return p
}

func (p *Pipe) forward() {
	defer p.pump.Done()
	t := time.NewTicker(pipeTick)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			for p.bridge.Tick() > 0 {
			}
		case <-p.done:
			return
		}
	}
}

// PacketConn returns endpoint 0 or 1 as a net.PacketConn.
func (p *Pipe) PacketConn(id int) *PipePacketConn {
	conn, peer := p.bridge.GetConn0(), 1
	if id == 1 {
		conn, peer = p.bridge.GetConn1(), 0
	}
	return &PipePacketConn{
		conn:     conn,
		local:    PipeAddr{ID: id},
		peerAddr: PipeAddr{ID: peer},
	}
}

// Close halts forwarding and closes both endpoints. It is idempotent.
func (p *Pipe) Close() (err error) {
	p.once.Do(func() {
		close(p.done)
		p.pump.Wait()
		err = errors.Join(p.bridge.GetConn0().Close(), p.bridge.GetConn1().Close())
	})
	return err
}

// PipeAddr names one side of a Pipe.
type PipeAddr struct {
	ID int
}

func (a PipeAddr) Network() string { return "pipe" }

func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// PipePacketConn is one side of a Pipe seen as a net.PacketConn. The
// destination given to WriteTo is ignored.
type PipePacketConn struct {
	conn     net.Conn
	local    PipeAddr
	peerAddr PipeAddr
}

var _ net.PacketConn = (*PipePacketConn)(nil)

// ReadFrom reads a packet; the address is always the other endpoint.
func (c *PipePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	return n, c.peerAddr, err
}

// WriteTo writes a packet to the other endpoint.
func (c *PipePacketConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	return c.conn.Write(b)
}

// Close closes the endpoint.
func (c *PipePacketConn) Close() error { return c.conn.Close() }

// LocalAddr returns the endpoint address.
func (c *PipePacketConn) LocalAddr() net.Addr { return c.local }

// PeerAddr returns the address of the other endpoint.
func (c *PipePacketConn) PeerAddr() net.Addr { return c.peerAddr }

func (c *PipePacketConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *PipePacketConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

func (c *PipePacketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
