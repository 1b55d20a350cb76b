package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopTimer_Fires(t *testing.T) {
	posted := make(chan func(), 1)
	tm := NewLoopTimer(func(fn func()) { posted <- fn })

	var fired atomic.Int32
	tm.Arm(10*time.Millisecond, func() { fired.Add(1) })

	select {
	case fn := <-posted:
		fn()
	case <-time.After(time.Second):
		t.Fatal("expiry not posted")
	}
	if fired.Load() != 1 {
		t.Errorf("fired %d times, want 1", fired.Load())
	}
}

func TestLoopTimer_RearmReplaces(t *testing.T) {
	var first, second atomic.Int32
	done := make(chan struct{})
	tm := NewLoopTimer(nil)

	tm.Arm(20*time.Millisecond, func() { first.Add(1) })
	tm.Arm(40*time.Millisecond, func() {
		second.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second expiry never fired")
	}
	time.Sleep(30 * time.Millisecond)
	if first.Load() != 0 || second.Load() != 1 {
		t.Errorf("first=%d second=%d, want 0 and 1", first.Load(), second.Load())
	}
}

func TestLoopTimer_CancelAfterPost(t *testing.T) {
	posted := make(chan func(), 1)
	tm := NewLoopTimer(func(fn func()) { posted <- fn })

	var fired atomic.Int32
	tm.Arm(time.Millisecond, func() { fired.Add(1) })

	var fn func()
	select {
	case fn = <-posted:
	case <-time.After(time.Second):
		t.Fatal("expiry not posted")
	}
	tm.Cancel()
	fn()
	if fired.Load() != 0 {
		t.Error("cancelled expiry ran")
	}
}

func TestPowerLock(t *testing.T) {
	now := time.Unix(1000, 0)
	p := NewPowerLock(nil)
	p.now = func() time.Time { return now }

	if p.Held() {
		t.Error("new lock is held")
	}
	p.StayAwake(10 * time.Second)
	if !p.Held() {
		t.Error("lock not held after StayAwake")
	}
	now = now.Add(11 * time.Second)
	if p.Held() {
		t.Error("lock held past its deadline")
	}
	p.StayAwake(time.Second)
	p.Release()
	if p.Held() {
		t.Error("lock held after Release")
	}
}
