// Package timectrl paces the viewer's frame loop and exposes a clock
// abstraction so frame consumers can be tested without real time.
package timectrl

import (
	"sync"
	"time"
)

// Clock is an interface for accessing frame time. The render loop depends
// on this abstraction rather than a concrete controller type, enabling
// testability.
type Clock interface {
	// Now returns the time of the most recent tick.
	Now() time.Time
}

// Mode describes how the FrameController advances.
type Mode int

const (
	// Paced ticks at the configured frame interval.
	Paced Mode = iota
	// Unpaced ticks as quickly as the loop can run; used in tests and
	// headless benchmarks.
	Unpaced
)

// FrameController drives frame time and notifies registered listeners with
// the tick time and the elapsed delta since the previous tick.
type FrameController struct {
	mu       sync.RWMutex
	Interval time.Duration
	Mode     Mode

	currentTime time.Time
	listeners   []func(now time.Time, dt time.Duration)
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewFrameController constructs a controller ticking at the given interval.
func NewFrameController(interval time.Duration, mode Mode) *FrameController {
	return &FrameController{
		Interval:    interval,
		Mode:        mode,
		currentTime: time.Now(),
		stop:        make(chan struct{}),
	}
}

// Now returns the time of the most recent tick. Implements Clock.
func (fc *FrameController) Now() time.Time {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.currentTime
}

// AddListener registers a callback invoked on every tick. Listeners must be
// registered before Start.
func (fc *FrameController) AddListener(fn func(now time.Time, dt time.Duration)) {
	fc.listeners = append(fc.listeners, fn)
}

// Stop halts the controller. Safe to call more than once.
func (fc *FrameController) Stop() {
	fc.stopOnce.Do(func() { close(fc.stop) })
}

// Start runs the controller in a separate goroutine until Stop is called or,
// when duration > 0, until that much wall time has elapsed. It returns a
// channel that is closed when the controller finishes.
func (fc *FrameController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		last := time.Now()
		fc.mu.Lock()
		fc.currentTime = last
		fc.mu.Unlock()

		elapsed := time.Duration(0)

		var tickC <-chan time.Time
		if fc.Mode == Paced {
			ticker := time.NewTicker(fc.Interval)
			defer ticker.Stop()
			tickC = ticker.C
		}

		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			var now time.Time
			if tickC != nil {
				select {
				case <-fc.stop:
					return
				case now = <-tickC:
				}
			} else {
				select {
				case <-fc.stop:
					return
				default:
				}
				now = last.Add(fc.Interval)
			}

			dt := now.Sub(last)
			if dt <= 0 {
				dt = fc.Interval
			}
			last = now
			elapsed += dt

			fc.mu.Lock()
			fc.currentTime = now
			fc.mu.Unlock()

			for _, fn := range fc.listeners {
				fn(now, dt)
			}
		}
	}()
	return done
}
