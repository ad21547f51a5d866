package watch

import (
	"context"
	"time"

	"semdex/internal/port"
)

// Debouncer coalesces raw filesystem events per path over a quiet window.
// Editors produce bursts (write, rename, chmod) for one save; downstream
// reindexing wants a single event per path once the burst settles.
type Debouncer struct {
	window time.Duration
	in     chan port.ChangeEvent
	out    chan port.ChangeEvent
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &Debouncer{
		window: window,
		in:     make(chan port.ChangeEvent, 64),
		out:    make(chan port.ChangeEvent, 64),
	}
}

// Add feeds a raw event in. Safe from any goroutine while Run is active.
func (d *Debouncer) Add(ev port.ChangeEvent) {
	d.in <- ev
}

// Events is the coalesced output. The channel closes when Run returns.
func (d *Debouncer) Events() <-chan port.ChangeEvent {
	return d.out
}

// Run collects events until the window passes with no new arrivals, then
// flushes one coalesced event per path in first-arrival order. Pending events
// are flushed on shutdown.
func (d *Debouncer) Run(ctx context.Context) {
	defer close(d.out)

	pending := make(map[string]port.ChangeType)
	var order []string

	timer := time.NewTimer(d.window)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	flush := func() {
		for _, path := range order {
			if t, ok := pending[path]; ok {
				d.out <- port.ChangeEvent{RelPath: path, Type: t}
			}
		}
		pending = make(map[string]port.ChangeType)
		order = nil
	}

	for {
		select {
		case <-ctx.Done():
			if armed && !timer.Stop() {
				<-timer.C
			}
			flush()
			return

		case ev := <-d.in:
			old, seen := pending[ev.RelPath]
			merged, keep := mergeChanges(old, seen, ev.Type)
			if keep {
				if !seen {
					order = append(order, ev.RelPath)
				}
				pending[ev.RelPath] = merged
			} else if seen {
				delete(pending, ev.RelPath)
			}

			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(d.window)
			armed = true

		case <-timer.C:
			armed = false
			flush()
		}
	}
}

// mergeChanges folds a new change into the pending one for the same path.
// A create followed by a delete cancels out entirely; a delete followed by a
// create is a modify; a create followed by writes is still a create.
// Otherwise the latest change wins.
func mergeChanges(old port.ChangeType, seen bool, next port.ChangeType) (port.ChangeType, bool) {
	if !seen {
		return next, true
	}
	switch {
	case old == port.ChangeCreate && next == port.ChangeDelete:
		return 0, false
	case old == port.ChangeDelete && next == port.ChangeCreate:
		return port.ChangeModify, true
	case old == port.ChangeCreate:
		return port.ChangeCreate, true
	default:
		return next, true
	}
}
