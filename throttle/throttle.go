// Package throttle turns a high-frequency signal into at most one call per
// rendering frame.
package throttle

import (
	"sync"
	"time"
)

// DefaultDelay absorbs bursts of notifications before a frame is requested
const DefaultDelay = 10 * time.Millisecond

// DefaultFrameInterval is one frame at 60 fps
const DefaultFrameInterval = time.Second / 60

// FrameScheduler runs fn once, at the start of the next frame
type FrameScheduler interface {
	RequestFrame(fn func())
}

// Frames schedules callbacks on frame boundaries measured from its epoch
type Frames struct {
	Interval time.Duration
	epoch    time.Time
}

func NewFrames(interval time.Duration) *Frames {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Frames{Interval: interval, epoch: time.Now()}
}

func (f *Frames) RequestFrame(fn func()) {
	wait := f.Interval - time.Since(f.epoch)%f.Interval
	time.AfterFunc(wait, fn)
}

// Throttle wraps fn so that Notify can be called arbitrarily often. Each
// Notify re-arms the debounce timer; when it fires a frame is requested
// unless one is already pending, in which case the signal is dropped.
type Throttle struct {
	mu      sync.Mutex
	fn      func()
	delay   time.Duration
	frames  FrameScheduler
	timer   *time.Timer
	ticking bool
	stopped bool
	gen     uint64
}

func New(fn func(), delay time.Duration, frames FrameScheduler) *Throttle {
	if frames == nil {
		frames = NewFrames(DefaultFrameInterval)
	}
	return &Throttle{
		fn:     fn,
		delay:  delay,
		frames: frames,
	}
}

func (t *Throttle) Notify() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.delay <= 0 {
		t.mu.Unlock()
		t.schedule()
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, t.schedule)
	t.mu.Unlock()
}

func (t *Throttle) schedule() {
	t.mu.Lock()
	if t.stopped || t.ticking {
		t.mu.Unlock()
		return
	}
	t.ticking = true
	gen := t.gen
	t.mu.Unlock()

	t.frames.RequestFrame(func() { t.frame(gen) })
}

func (t *Throttle) frame(gen uint64) {
	t.mu.Lock()
	if t.stopped || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.ticking = false
	t.mu.Unlock()

	t.fn()
}

// Pending reports whether a frame callback is scheduled
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticking
}

// Stop cancels the debounce timer and discards any pending frame.
// Notify is a no-op afterwards.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.ticking = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
	}
}
