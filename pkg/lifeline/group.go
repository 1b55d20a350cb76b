// Package lifeline keeps the lifeline association group, the nodes told
// about every change to the credential database, and mirrors those
// notifications to an MQTT broker.
package lifeline

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Group errors.
var (
	ErrGroupFull   = errors.New("lifeline: group full")
	ErrInvalidNode = errors.New("lifeline: invalid node")
)

// DefaultMaxMembers is the lifeline group size.
const DefaultMaxMembers = 5

// Group is the lifeline association group. It is safe for concurrent use.
type Group struct {
	mu      sync.RWMutex
	max     int
	members []uint16
}

// NewGroup creates a group of at most max members. A max of 0 selects
// DefaultMaxMembers.
func NewGroup(max int, members ...uint16) (*Group, error) {
	if max <= 0 {
		max = DefaultMaxMembers
	}
	g := &Group{max: max}
	for _, m := range members {
		if err := g.Add(m); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Add inserts node. Adding a member again is a no-op.
func (g *Group) Add(node uint16) error {
	if node == 0 {
		return ErrInvalidNode
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	i, found := slices.BinarySearch(g.members, node)
	if found {
		return nil
	}
	if len(g.members) >= g.max {
		return fmt.Errorf("%w: %d members", ErrGroupFull, g.max)
	}
	g.members = slices.Insert(g.members, i, node)
	return nil
}

// Remove drops node if present.
func (g *Group) Remove(node uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i, found := slices.BinarySearch(g.members, node); found {
		g.members = slices.Delete(g.members, i, i+1)
	}
}

// Contains reports whether node is a member.
func (g *Group) Contains(node uint16) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, found := slices.BinarySearch(g.members, node)
	return found
}

// Members returns the members in ascending order.
func (g *Group) Members() []uint16 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.members)
}
