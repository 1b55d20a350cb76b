// Package timer provides the timer and power-lock services the Credential
// Learn state machine runs against. Expiries are posted back onto the node
// event loop instead of running on the timer goroutine.
package timer

import (
	"sync"
	"time"

	"github.com/pion/logging"
)

// PostFunc queues fn to run on the event loop.
type PostFunc func(fn func())

// LoopTimer is a single re-armable one-shot timer. Arming replaces any
// pending expiry.
//
// Thread-safe for concurrent access.
type LoopTimer struct {
	post PostFunc

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewLoopTimer creates a timer whose expiries are delivered through post.
// A nil post runs expiries on the timer goroutine.
func NewLoopTimer(post PostFunc) *LoopTimer {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &LoopTimer{post: post}
}

// Arm schedules fire after d, cancelling any pending expiry.
func (t *LoopTimer) Arm(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		current := t.gen == gen
		if current {
			t.timer = nil
		}
		t.mu.Unlock()

		// Cancel may run between the post and the loop picking it up.
		if current {
			t.post(func() {
				if t.superseded(gen) {
					return
				}
				fire()
			})
		}
	})
}

// Cancel stops the pending expiry, if any.
func (t *LoopTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
}

func (t *LoopTimer) superseded(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen != gen
}

func (t *LoopTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// PowerLock keeps the radio reachable for a while. On hardware this would
// hold a sleep inhibitor; here it tracks the deadline and logs transitions.
//
// Thread-safe for concurrent access.
type PowerLock struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
	log   logging.LeveledLogger
}

// NewPowerLock creates a released power lock.
func NewPowerLock(loggerFactory logging.LoggerFactory) *PowerLock {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &PowerLock{
		now: time.Now,
		log: loggerFactory.NewLogger("power"),
	}
}

// StayAwake holds the lock for d from now, extending or shortening any
// current hold.
func (p *PowerLock) StayAwake(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.until = p.now().Add(d)
	p.log.Debugf("stay awake for %v", d)
}

// Release drops the hold.
func (p *PowerLock) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.until.IsZero() {
		p.log.Debug("released")
	}
	p.until = time.Time{}
}

// Held reports whether the lock is currently held.
func (p *PowerLock) Held() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.until.IsZero() && p.now().Before(p.until)
}
