package watch

import (
	"context"
	"testing"
	"time"

	"semdex/internal/port"
)

func runDebouncer(t *testing.T, window time.Duration) (*Debouncer, context.CancelFunc) {
	t.Helper()
	d := NewDebouncer(window)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	return d, cancel
}

func collect(t *testing.T, d *Debouncer, n int) []port.ChangeEvent {
	t.Helper()
	var got []port.ChangeEvent
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case ev, ok := <-d.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, have %d", n, len(got))
		}
	}
	return got
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	d, cancel := runDebouncer(t, 20*time.Millisecond)
	defer cancel()

	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeCreate})
	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeModify})
	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeModify})

	got := collect(t, d, 1)
	if got[0].RelPath != "a.txt" || got[0].Type != port.ChangeCreate {
		t.Errorf("expected single create for a.txt, got %s %s", got[0].RelPath, got[0].Type)
	}

	select {
	case ev := <-d.Events():
		t.Errorf("unexpected extra event: %s %s", ev.RelPath, ev.Type)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerCreateDeleteCancels(t *testing.T) {
	d, cancel := runDebouncer(t, 20*time.Millisecond)
	defer cancel()

	d.Add(port.ChangeEvent{RelPath: "tmp.txt", Type: port.ChangeCreate})
	d.Add(port.ChangeEvent{RelPath: "tmp.txt", Type: port.ChangeDelete})
	d.Add(port.ChangeEvent{RelPath: "keep.txt", Type: port.ChangeModify})

	got := collect(t, d, 1)
	if got[0].RelPath != "keep.txt" {
		t.Errorf("expected only keep.txt to survive, got %s", got[0].RelPath)
	}
}

func TestDebouncerDeleteCreateIsModify(t *testing.T) {
	d, cancel := runDebouncer(t, 20*time.Millisecond)
	defer cancel()

	// An atomic save: the old file goes away and a new one appears.
	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeDelete})
	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeCreate})

	got := collect(t, d, 1)
	if got[0].Type != port.ChangeModify {
		t.Errorf("delete then create should coalesce to modify, got %s", got[0].Type)
	}
}

func TestDebouncerPreservesArrivalOrder(t *testing.T) {
	d, cancel := runDebouncer(t, 20*time.Millisecond)
	defer cancel()

	paths := []string{"c.txt", "a.txt", "b.txt"}
	for _, p := range paths {
		d.Add(port.ChangeEvent{RelPath: p, Type: port.ChangeModify})
	}

	got := collect(t, d, 3)
	for i, p := range paths {
		if got[i].RelPath != p {
			t.Errorf("position %d: expected %s, got %s", i, p, got[i].RelPath)
		}
	}
}

func TestDebouncerSeparateBursts(t *testing.T) {
	d, cancel := runDebouncer(t, 20*time.Millisecond)
	defer cancel()

	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeModify})
	first := collect(t, d, 1)

	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeModify})
	second := collect(t, d, 1)

	if first[0].RelPath != "a.txt" || second[0].RelPath != "a.txt" {
		t.Error("each burst should emit its own event")
	}
}

func TestDebouncerFlushesOnShutdown(t *testing.T) {
	d, cancel := runDebouncer(t, time.Hour)

	d.Add(port.ChangeEvent{RelPath: "a.txt", Type: port.ChangeModify})
	// Give Run a moment to pick the event up before cancelling.
	time.Sleep(20 * time.Millisecond)
	cancel()

	got := collect(t, d, 1)
	if len(got) != 1 || got[0].RelPath != "a.txt" {
		t.Error("pending event lost on shutdown")
	}
}
