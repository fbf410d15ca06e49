package scheduler

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

const DEFAULT_DEBOUNCE_DELAY = 400 * time.Millisecond

// Debouncer delays calls by key, scheduling a call for a key cancels the pending call of the key.
type Debouncer struct {
	delay time.Duration

	lock    sync.Mutex
	entries map[string]*debounceEntry
	stopped bool
}

type debounceEntry struct {
	debounced  func(f func())
	generation uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DEFAULT_DEBOUNCE_DELAY
	}
	return &Debouncer{
		delay:   delay,
		entries: map[string]*debounceEntry{},
	}
}

func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Schedule schedules a call of f after the delay, the pending call for key is cancelled. f is called in its own goroutine.
func (d *Debouncer) Schedule(key string, f func()) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.stopped {
		return
	}

	e, ok := d.entries[key]
	if !ok {
		e = &debounceEntry{debounced: debounce.New(d.delay)}
		d.entries[key] = e
	}
	e.generation++
	generation := e.generation

	e.debounced(func() {
		d.lock.Lock()
		current, ok := d.entries[key]
		fire := ok && current == e && e.generation == generation && !d.stopped
		if fire {
			delete(d.entries, key)
		}
		d.lock.Unlock()

		if fire {
			f()
		}
	})
}

// Cancel cancels the pending call for key, it reports whether a call was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	e, ok := d.entries[key]
	if !ok {
		return false
	}
	delete(d.entries, key)
	e.generation++
	return true
}

// Pending reports whether a call is pending for key.
func (d *Debouncer) Pending(key string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	_, ok := d.entries[key]
	return ok
}

// Stop cancels all pending calls, calls scheduled after Stop are ignored.
func (d *Debouncer) Stop() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.stopped = true
	for key, e := range d.entries {
		e.generation++
		delete(d.entries, key)
	}
}
