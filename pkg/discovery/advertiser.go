package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// MDNSServer is a live registration. *zeroconf.Server satisfies it.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory registers a service instance and answers queries for
// it until the returned server is shut down.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

type zeroconfFactory struct{}

func (zeroconfFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig holds configuration for the Advertiser.
type AdvertiserConfig struct {
	// Port is the node's transport port.
	Port int

	// Interfaces limits the announcement. Empty means every multicast interface.
	Interfaces []net.Interface

	// ServerFactory overrides the zeroconf registration, mainly in tests.
	ServerFactory MDNSServerFactory

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes the node under _z-wave._udp.
type Advertiser struct {
	config   AdvertiserConfig
	factory  MDNSServerFactory
	log      logging.LeveledLogger
	mu       sync.Mutex
	server   MDNSServer
	instance string
	shut     bool
}

// NewAdvertiser checks the port and returns an idle advertiser.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("discovery: invalid port %d", config.Port)
	}
	a := &Advertiser{config: config, factory: config.ServerFactory}
	if a.factory == nil {
		a.factory = zeroconfFactory{}
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	a.log = config.LoggerFactory.NewLogger("discovery")
	return a, nil
}

// InstanceName returns the DNS-SD instance name of a node.
func InstanceName(nodeID uint16) string {
	return fmt.Sprintf("doorlock-%04X", nodeID)
}

// Start begins advertising the node.
func (a *Advertiser) Start(txt NodeTXT) error {
	if err := txt.Validate(); err != nil {
		return fmt.Errorf("advertiser: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.shut:
		return ErrClosed
	case a.server != nil:
		return ErrAlreadyStarted
	}

	instance := InstanceName(txt.NodeID)
	records := txt.Encode()
	a.log.Debugf("registering %s.%s%s port=%d txt=%v", instance, Service, DefaultDomain, a.config.Port, records)

	server, err := a.factory.Register(instance, Service, DefaultDomain, a.config.Port, records, a.config.Interfaces)
	if err != nil {
		return fmt.Errorf("advertiser: mDNS registration failed for %s: %w", instance, err)
	}
	a.log.Infof("advertising %s on port %d", instance, a.config.Port)

	a.server = server
	a.instance = instance
	return nil
}

// Stop withdraws the advertisement. Start may be called again afterwards.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shut {
		return ErrClosed
	}
	if !a.withdraw() {
		return ErrNotStarted
	}
	return nil
}

// Close withdraws any advertisement for good.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shut {
		return ErrClosed
	}
	a.withdraw()
	a.shut = true
	return nil
}

// withdraw requires a.mu.
func (a *Advertiser) withdraw() bool {
	if a.server == nil {
		return false
	}
	a.log.Debugf("withdrawing %s", a.instance)
	a.server.Shutdown()
	a.server, a.instance = nil, ""
	return true
}

// IsAdvertising reports whether the node is being advertised.
func (a *Advertiser) IsAdvertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Instance returns the advertised instance name, or "" when not advertising.
func (a *Advertiser) Instance() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}
