package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// StaticResolver answers Browse and Lookup from a fixed set of lock
// records instead of the network. Service and domain arguments are ignored.
type StaticResolver struct {
	mu    sync.RWMutex
	locks []*zeroconf.ServiceEntry
}

// Add appends a record. Records are replayed in insertion order.
func (s *StaticResolver) Add(entry *zeroconf.ServiceEntry) {
	s.mu.Lock()
	s.locks = append(s.locks, entry)
	s.mu.Unlock()
}

func (s *StaticResolver) snapshot() []*zeroconf.ServiceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*zeroconf.ServiceEntry(nil), s.locks...)
}

func (s *StaticResolver) send(ctx context.Context, out chan<- *zeroconf.ServiceEntry, match func(*zeroconf.ServiceEntry) bool) error {
	for _, e := range s.snapshot() {
		if !match(e) {
			continue
		}
		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Browse implements MDNSResolver.
func (s *StaticResolver) Browse(ctx context.Context, _, _ string, out chan<- *zeroconf.ServiceEntry) error {
	return s.send(ctx, out, func(*zeroconf.ServiceEntry) bool { return true })
}

// Lookup implements MDNSResolver.
func (s *StaticResolver) Lookup(ctx context.Context, instance, _, _ string, out chan<- *zeroconf.ServiceEntry) error {
	return s.send(ctx, out, func(e *zeroconf.ServiceEntry) bool { return e.Instance == instance })
}

// LockRecord builds the record a lock with the given TXT would publish.
func LockRecord(txt NodeTXT, port int, ip net.IP) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(InstanceName(txt.NodeID), Service, DefaultDomain)
	entry.HostName = entry.Instance + ".local."
	entry.Port = port
	entry.AddrIPv4 = []net.IP{ip}
	entry.Text = txt.Encode()
	return entry
}
