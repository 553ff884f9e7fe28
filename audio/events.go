package audio

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type eventKind uint8

const (
	evNoteOn eventKind = iota
	evNoteOff
	evClipStart
)

// ScheduledEvent is one absolute-time trigger produced by the control path and
// consumed once by the render path at or after its frame. Late events are
// clamped or dropped by the scheduler before they get here; the render path
// plays whatever it is handed.
type ScheduledEvent struct {
	kind  eventKind
	frame int64 // absolute engine frame

	pitch    int
	velocity int
	duration int64   // frames; <= 0 schedules no note-off
	fade     float64 // release fade override in seconds, for early releases
	relVel   int
	params   *NoteParams

	clip   *Buffer
	offset float64 // seconds into the clip's source material

	id  string
	gen uint64
}

// eventQueue hands events from the control path to the render path. The
// consumer side is lock-free; producers (REPL, scheduler, MIDI bridge)
// serialize among themselves with a mutex the render path never touches.
type eventQueue struct {
	events      []ScheduledEvent
	read, write *uint32

	pushMu sync.Mutex
}

func newEventQueue(size int) *eventQueue {
	if size <= 0 || size&(size-1) != 0 {
		panic("event queue size must be a power of 2")
	}
	return &eventQueue{
		events: make([]ScheduledEvent, size),
		read:   new(uint32),
		write:  new(uint32),
	}
}

func (q *eventQueue) push(ev ScheduledEvent) {
	q.pushMu.Lock()
	defer q.pushMu.Unlock()
	for atomic.LoadUint32(q.write)-atomic.LoadUint32(q.read) == uint32(len(q.events)) {
		runtime.Gosched()
	}
	write := atomic.LoadUint32(q.write)
	q.events[write%uint32(len(q.events))] = ev
	atomic.StoreUint32(q.write, write+1)
}

// drain consumes every queued event. Render path only.
func (q *eventQueue) drain(f func(ScheduledEvent)) {
	read := atomic.LoadUint32(q.read)
	write := atomic.LoadUint32(q.write)
	for read != write {
		f(q.events[read%uint32(len(q.events))])
		read++
	}
	atomic.StoreUint32(q.read, read)
}

// timeline is the render path's pending-event store: a fixed-capacity array
// kept sorted by frame. Events arrive in roughly ascending order within one
// scheduling call but not across calls, so the queue alone cannot provide
// time ordering.
type timeline struct {
	events []ScheduledEvent
	cap    int
}

func newTimeline(capacity int) *timeline {
	return &timeline{events: make([]ScheduledEvent, 0, capacity), cap: capacity}
}

// insert places ev in frame order. Returns false when the timeline is full;
// the caller drops the event and logs, it never grows the array.
func (t *timeline) insert(ev ScheduledEvent) bool {
	if len(t.events) == t.cap {
		return false
	}
	i := len(t.events)
	for i > 0 && t.events[i-1].frame > ev.frame {
		i--
	}
	t.events = append(t.events, ScheduledEvent{})
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = ev
	return true
}

// pop removes and returns the earliest event due before the given frame.
func (t *timeline) pop(before int64) (ScheduledEvent, bool) {
	if len(t.events) == 0 || t.events[0].frame >= before {
		return ScheduledEvent{}, false
	}
	ev := t.events[0]
	copy(t.events, t.events[1:])
	t.events = t.events[:len(t.events)-1]
	return ev, true
}

func (t *timeline) clear() {
	t.events = t.events[:0]
}

func (t *timeline) len() int { return len(t.events) }
