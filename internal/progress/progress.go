// Package progress counts completed units of work (the plan plus one unit
// per chapter) and forwards each completion to a rendering sink.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

type Event struct {
	Completed int64
	Total     int64
	Label     string
}

// Sink receives one event per completed unit. Implementations must be safe
// for concurrent use.
type Sink interface {
	Observe(Event)
}

type discard struct{}

func (discard) Observe(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// Tracker is a monotonically increasing counter shared by the chapter
// workers. Done never blocks on anything but the sink.
type Tracker struct {
	completed atomic.Int64
	total     int64
	sink      Sink
}

func NewTracker(total int, sink Sink) *Tracker {
	if sink == nil {
		sink = Discard
	}
	return &Tracker{total: int64(total), sink: sink}
}

// Done records one completed unit. A nil Tracker ignores it.
func (t *Tracker) Done(label string) {
	if t == nil {
		return
	}
	n := t.completed.Add(1)
	t.sink.Observe(Event{Completed: n, Total: t.total, Label: label})
}

func (t *Tracker) Completed() int64 { return t.completed.Load() }
func (t *Tracker) Total() int64     { return t.total }

// Bar renders events as a single self-overwriting terminal line.
type Bar struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	last  int64
}

func NewBar(w io.Writer) *Bar { return &Bar{w: w, width: 30} }

func (b *Bar) Observe(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Events can arrive out of order from concurrent workers.
	if e.Completed < b.last {
		return
	}
	b.last = e.Completed
	fmt.Fprint(b.w, render(e, b.width))
	if e.Total > 0 && e.Completed >= e.Total {
		fmt.Fprintln(b.w)
	}
}

func render(e Event, width int) string {
	filled, pct := 0, 0
	if e.Total > 0 {
		filled = int(int64(width) * e.Completed / e.Total)
		pct = int(100 * e.Completed / e.Total)
	}
	if filled > width {
		filled = width
	}
	label := e.Label
	if r := []rune(label); len(r) > 40 {
		label = string(r[:37]) + "..."
	}
	return fmt.Sprintf("\r[%s%s] %d/%d (%d%%) %-40s",
		strings.Repeat("#", filled), strings.Repeat("-", width-filled),
		e.Completed, e.Total, pct, label)
}
