package audio

import (
	"context"
	"testing"
)

func TestEventQueue(t *testing.T) {
	q := newEventQueue(8)

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	var events []ScheduledEvent
	go func() {
		for {
			select {
			case <-ctx.Done():
				q.drain(func(ev ScheduledEvent) {
					events = append(events, ev)
				})
				done <- struct{}{}
				return
			default:
				q.drain(func(ev ScheduledEvent) {
					events = append(events, ev)
				})
			}
		}
	}()

	const numEvents = 1_000_000
	for n := 0; n < numEvents; n++ {
		q.push(ScheduledEvent{frame: int64(n)})
	}

	cancel()
	<-done

	if len(events) != numEvents {
		t.Fatalf("wrong number of events: want %v, got %v", numEvents, len(events))
	}
	prev := int64(-1)
	for _, ev := range events {
		if want, got := prev+1, ev.frame; want != got {
			t.Fatalf("discontinuous event frame: want %v, got %v", want, got)
		}
		prev++
	}
}

func TestTimelineOrdersAcrossInserts(t *testing.T) {
	tl := newTimeline(8)
	for _, frame := range []int64{50, 10, 30, 20} {
		if !tl.insert(ScheduledEvent{frame: frame}) {
			t.Fatalf("insert failed at frame %v", frame)
		}
	}

	var got []int64
	for {
		ev, ok := tl.pop(100)
		if !ok {
			break
		}
		got = append(got, ev.frame)
	}
	want := []int64{10, 20, 30, 50}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("wrong pop order: want %v, got %v", want, got)
		}
	}
}

func TestTimelinePopsOnlyDueEvents(t *testing.T) {
	tl := newTimeline(8)
	tl.insert(ScheduledEvent{frame: 10})

	if _, ok := tl.pop(10); ok {
		t.Error("popped an event not strictly before the block end")
	}
	if _, ok := tl.pop(11); !ok {
		t.Error("did not pop a due event")
	}
}

func TestTimelineCapacity(t *testing.T) {
	tl := newTimeline(2)
	tl.insert(ScheduledEvent{frame: 1})
	tl.insert(ScheduledEvent{frame: 2})
	if tl.insert(ScheduledEvent{frame: 3}) {
		t.Error("insert beyond capacity succeeded")
	}
	if want, got := 2, tl.len(); want != got {
		t.Errorf("wrong timeline length: want %v, got %v", want, got)
	}
}
