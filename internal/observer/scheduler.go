package observer

import "time"

// DefaultFrameInterval approximates one display frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler runs a callback at the next frame opportunity.
type Scheduler interface {
	RequestFrame(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

// RequestFrame calls f(fn).
func (f SchedulerFunc) RequestFrame(fn func()) { f(fn) }

// FrameTicker schedules callbacks one frame interval from now on their own
// goroutine.
type FrameTicker struct {
	Interval time.Duration
}

// RequestFrame implements Scheduler.
func (t FrameTicker) RequestFrame(fn func()) {
	d := t.Interval
	if d <= 0 {
		d = DefaultFrameInterval
	}
	time.AfterFunc(d, fn)
}
