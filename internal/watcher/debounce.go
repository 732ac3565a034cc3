package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces a stream of events into single change signals. An
// install or uninstall touches many paths in quick succession; consumers
// reload wholesale, so one signal per quiet period is enough.
type Debouncer struct {
	delay  time.Duration
	signal chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	closeCh chan struct{}
	doneWg  sync.WaitGroup
}

// NewDebouncer consumes events and emits one signal on C after each
// burst, once no event has arrived for delay.
func NewDebouncer(events <-chan Event, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	d := &Debouncer{
		delay:   delay,
		signal:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}

	d.doneWg.Add(1)
	go d.loop(events)
	return d
}

// C returns the coalesced change channel. At most one signal is pending
// at a time; missed signals are absorbed.
func (d *Debouncer) C() <-chan struct{} {
	return d.signal
}

// Close stops the debouncer. A pending burst is discarded.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.closeCh)
	d.mu.Unlock()

	d.doneWg.Wait()
}

// loop restarts the trailing-edge timer on every event.
func (d *Debouncer) loop(events <-chan Event) {
	defer d.doneWg.Done()

	for {
		select {
		case <-d.closeCh:
			return

		case _, ok := <-events:
			if !ok {
				return
			}
			d.mu.Lock()
			if d.closed {
				d.mu.Unlock()
				return
			}
			if d.timer == nil {
				d.timer = time.AfterFunc(d.delay, d.fire)
			} else {
				d.timer.Reset(d.delay)
			}
			d.mu.Unlock()
		}
	}
}

// fire emits one signal unless one is already pending.
func (d *Debouncer) fire() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}
