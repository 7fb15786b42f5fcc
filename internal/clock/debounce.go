package clock

import (
	"sync"
	"time"
)

// Debouncer runs the most recently armed callback once its delay elapses
// without another Arm. Each Arm supersedes the pending one.
type Debouncer struct {
	clock Clock

	mu         sync.Mutex
	timer      Timer
	generation uint64
}

func NewDebouncer(c Clock) *Debouncer {
	return &Debouncer{clock: c}
}

// Arm schedules fn after delay, cancelling whatever was pending.
func (d *Debouncer) Arm(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.timer = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		current := gen == d.generation
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops the pending callback, if any. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation++
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}

// Pending reports whether a callback is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
