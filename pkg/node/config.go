package node

import (
	"fmt"
	"net"
	"time"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/discovery"
	"github.com/backkem/doorlock/pkg/handler"
	"github.com/backkem/doorlock/pkg/learn"
	"github.com/backkem/doorlock/pkg/lifeline"
	"github.com/backkem/doorlock/pkg/nvm"
	"github.com/backkem/doorlock/pkg/transport"
	"github.com/backkem/doorlock/pkg/validate"
	"github.com/pion/logging"
)

// DefaultQueueSize is the default event loop queue length.
const DefaultQueueSize = 64

// Config holds all configuration for a Node.
type Config struct {
	// NodeID is the node's network address. Required.
	NodeID uint16

	// Capabilities bounds what the node stores and advertises.
	Capabilities credential.Capabilities

	// Rules is the manufacturer security hook. If nil, the validator default is used.
	Rules validate.SecurityRules

	// Store is the non-volatile object store. Required.
	Store nvm.Store

	// Conn is an optional pre-existing PacketConn, e.g. a transport.Pipe endpoint.
	// If nil, a UDP socket is bound to ListenAddr on Start.
	Conn net.PacketConn
	// ListenAddr is the UDP listen address (default ":4123").
	ListenAddr string
	// Peers maps node IDs to known addresses.
	Peers map[uint16]net.Addr

	// Lifeline lists the initial lifeline group members.
	Lifeline []uint16
	// MaxLifelineMembers caps the lifeline group (default lifeline.DefaultMaxMembers).
	MaxLifelineMembers int
	// Mirror optionally receives every lifeline notification, e.g. a lifeline.Mirror.
	Mirror handler.Mirror

	// Sensor is the local credential reader. If nil, learn waits for the
	// application to report reads through the Learn* methods.
	Sensor learn.Sensor
	// LearnTimeout is the default learn step timeout.
	LearnTimeout time.Duration

	// Advertise enables the mDNS advertisement on Start.
	Advertise bool
	// AdvertisePort overrides the advertised port. If zero, the bound UDP port is used.
	AdvertisePort int
	// Interfaces restricts the advertisement. If nil, all interfaces are used.
	Interfaces []net.Interface
	// ServerFactory overrides the mDNS server, for tests.
	ServerFactory discovery.MDNSServerFactory

	// OnFrameHandled is called on the event loop after each received frame.
	OnFrameHandled func(src uint16, status handler.Status)

	// QueueSize is the event loop queue length (default DefaultQueueSize).
	QueueSize int

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	if c.NodeID == 0 || c.NodeID == transport.Broadcast {
		return ErrInvalidNodeID
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = fmt.Sprintf(":%d", transport.DefaultPort)
	}
	if c.MaxLifelineMembers <= 0 {
		c.MaxLifelineMembers = lifeline.DefaultMaxMembers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}
