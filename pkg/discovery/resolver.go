package discovery

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// Browse and lookup windows used when ResolverConfig leaves them zero.
const (
	DefaultBrowseTimeout = 10 * time.Second
	DefaultLookupTimeout = 5 * time.Second
)

// ResolvedNode is a discovered door lock node.
type ResolvedNode struct {
	InstanceName string
	HostName     string
	Port         int
	// IPs lists IPv4 addresses before IPv6 addresses.
	IPs []net.IP
	TXT NodeTXT
}

// Addr returns the UDP address of the node's first IP, or nil.
func (n *ResolvedNode) Addr() *net.UDPAddr {
	if len(n.IPs) == 0 {
		return nil
	}
	return &net.UDPAddr{IP: n.IPs[0], Port: n.Port}
}

// MDNSResolver streams matching service entries into a channel.
// Implementations return when they have nothing more to send or ctx is
// done, and never close entries.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver adapts grandcat/zeroconf, which delivers entries
// asynchronously on a channel it owns.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	raw := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Browse(ctx, service, domain, raw); err != nil {
		return err
	}
	return forward(ctx, raw, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	raw := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Lookup(ctx, instance, service, domain, raw); err != nil {
		return err
	}
	return forward(ctx, raw, entries)
}

func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- *zeroconf.ServiceEntry) error {
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ResolverConfig tunes a Resolver.
type ResolverConfig struct {
	// MDNSResolver replaces the zeroconf client, mainly in tests.
	// If nil, a zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout bounds Browse. Zero means DefaultBrowseTimeout.
	BrowseTimeout time.Duration

	// LookupTimeout bounds Lookup. Zero means DefaultLookupTimeout.
	LookupTimeout time.Duration

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers door lock nodes via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver opens a zeroconf client unless one is injected.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, err
		}
		resolver = &zeroconfResolver{resolver: zr}
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Resolver{
		config:   config,
		resolver: resolver,
		log:      config.LoggerFactory.NewLogger("discovery"),
	}, nil
}

// Browse streams discovered nodes until ctx is done or the browse timeout
// expires. Entries with unparsable TXT records are skipped.
func (r *Resolver) Browse(ctx context.Context) <-chan ResolvedNode {
	results := make(chan ResolvedNode)
	entries := make(chan *zeroconf.ServiceEntry)

	ctx, cancel := context.WithTimeout(ctx, r.config.BrowseTimeout)
	go func() {
		defer cancel()
		defer close(results)

		go func() {
			defer close(entries)
			if err := r.resolver.Browse(ctx, Service, DefaultDomain, entries); err != nil {
				r.log.Debugf("browse %s: %v", Service, err)
			}
		}()

		for entry := range entries {
			node, err := entryToNode(entry)
			if err != nil {
				r.log.Debugf("skipping %s: %v", entry.Instance, err)
				continue
			}
			select {
			case results <- node:
			case <-ctx.Done():
				// Drain so the browse goroutine can exit.
				for range entries {
				}
				return
			}
		}
	}()
	return results
}

// Lookup resolves the node with the given ID.
func (r *Resolver) Lookup(ctx context.Context, nodeID uint16) (*ResolvedNode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.LookupTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 1)
	go func() {
		defer close(entries)
		r.resolver.Lookup(ctx, InstanceName(nodeID), Service, DefaultDomain, entries)
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrServiceNotFound
		}
		node, err := entryToNode(entry)
		if err != nil {
			return nil, err
		}
		return &node, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func entryToNode(entry *zeroconf.ServiceEntry) (ResolvedNode, error) {
	txt, err := ParseNodeTXT(entry.Text)
	if err != nil {
		return ResolvedNode{}, err
	}
	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)
	return ResolvedNode{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          ips,
		TXT:          txt,
	}, nil
}
