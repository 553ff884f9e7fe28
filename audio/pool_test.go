package audio

import (
	"testing"
)

// testVoice is a pool test double with a controllable amplitude and a fixed
// release duration.
type testVoice struct {
	id       int
	note     int
	velocity int
	start    float64
	phase    VoicePhase
	amp      float64
	relDur   float64
	stops    int
}

func (v *testVoice) Trigger(note, velocity int, now float64, _ SampleMapping, _ ADSR, _ *NoteParams) {
	v.note, v.velocity, v.start = note, velocity, now
	v.phase = PhaseSustain
	if v.amp == 0 {
		v.amp = 1
	}
}

func (v *testVoice) Release(now float64, _ int, fadeOverride float64) float64 {
	v.phase = PhaseRelease
	if fadeOverride > 0 {
		return fadeOverride
	}
	return v.relDur
}

func (v *testVoice) Stop(fade float64) {
	v.stops++
	if fade <= 0 {
		v.phase = PhaseIdle
	}
}

func (v *testVoice) Reset()              { v.phase = PhaseIdle }
func (v *testVoice) Process([][]float64) {}
func (v *testVoice) Phase() VoicePhase   { return v.phase }
func (v *testVoice) Note() int           { return v.note }
func (v *testVoice) Velocity() int       { return v.velocity }
func (v *testVoice) StartTime() float64  { return v.start }
func (v *testVoice) Amplitude() float64  { return v.amp }
func (v *testVoice) Dispose()            {}

func newTestPool(n int) (*VoicePool, []*testVoice) {
	tvs := make([]*testVoice, n)
	voices := make([]Voice, n)
	for i := range voices {
		tvs[i] = &testVoice{id: i, relDur: 0.1}
		voices[i] = tvs[i]
	}
	return NewVoicePool(voices), tvs
}

func checkConservation(t *testing.T, p *VoicePool, total int) {
	t.Helper()
	free, active, releasing := p.Counts()
	if free+active+releasing != total {
		t.Fatalf("voices leaked: free %d + active %d + releasing %d != %d",
			free, active, releasing, total)
	}
}

func TestPoolConservation(t *testing.T) {
	p, _ := newTestPool(4)
	checkConservation(t, p, 4)

	for note := 0; note < 3; note++ {
		v := p.Allocate(note, true, 0)
		if v == nil {
			t.Fatalf("allocation %d failed with voices free", note)
		}
		v.Trigger(note, 100, 0, SampleMapping{}, ADSR{}, nil)
		checkConservation(t, p, 4)
	}

	p.Release(1, 0, 0, 0)
	checkConservation(t, p, 4)

	p.advance(secondsToFrames(1))
	checkConservation(t, p, 4)

	free, active, releasing := p.Counts()
	if free != 2 || active != 2 || releasing != 0 {
		t.Errorf("wrong counts after return: free %d active %d releasing %d", free, active, releasing)
	}
}

func TestPoolExhaustionSteals(t *testing.T) {
	p, _ := newTestPool(16)
	for note := 0; note < 17; note++ {
		v := p.Allocate(note, true, float64(note))
		if v == nil {
			t.Fatalf("allocation for note %d failed", note)
		}
		v.Trigger(note, 100, float64(note), SampleMapping{}, ADSR{}, nil)
	}
	free, active, _ := p.Counts()
	if free != 0 || active != 16 {
		t.Errorf("wrong counts after steal: free %d active %d", free, active)
	}
}

func TestPoolStealsOldestQuietest(t *testing.T) {
	p, tvs := newTestPool(2)

	// An old quiet voice and a fresh loud one.
	v1 := p.Allocate(1, true, 0)
	v1.Trigger(1, 40, 0, SampleMapping{}, ADSR{}, nil)
	tvs[indexOf(t, tvs, v1)].amp = 0.1

	v2 := p.Allocate(2, true, 4)
	v2.Trigger(2, 127, 4, SampleMapping{}, ADSR{}, nil)
	tvs[indexOf(t, tvs, v2)].amp = 1

	got := p.Allocate(3, true, 5)
	if got != v1 {
		t.Error("steal picked the fresh loud voice over the old quiet one")
	}
}

func TestPoolStealsReleasingFirst(t *testing.T) {
	p, tvs := newTestPool(2)

	v1 := p.Allocate(1, true, 0)
	v1.Trigger(1, 100, 0, SampleMapping{}, ADSR{}, nil)
	v2 := p.Allocate(2, true, 0)
	v2.Trigger(2, 100, 0, SampleMapping{}, ADSR{}, nil)

	tvs[indexOf(t, tvs, v1)].amp = 0.9
	p.Release(2, 0, 0, 0) // v2 releasing, quieter by phase weighting
	tvs[indexOf(t, tvs, v2)].amp = 0.2

	got := p.Allocate(3, true, 1)
	if got != v2 {
		t.Error("steal did not prefer the releasing voice")
	}
	checkConservation(t, p, 2)
}

func TestPoolChoke(t *testing.T) {
	p, _ := newTestPool(4)

	v1 := p.Allocate(60, false, 0)
	v1.Trigger(60, 100, 0, SampleMapping{}, ADSR{}, nil)
	v2 := p.Allocate(60, false, 1)
	if v2 == nil {
		t.Fatal("choked allocation failed")
	}
	if v1.(*testVoice).stops == 0 {
		t.Error("previous voice on the note was not choked")
	}

	free, active, _ := p.Counts()
	if active != 1 {
		t.Errorf("expected one active voice after choke, got %d", active)
	}
	if free != 3 {
		t.Errorf("expected three free voices after choke, got %d", free)
	}
}

func TestPoolReleaseUnknownNote(t *testing.T) {
	p, _ := newTestPool(2)
	p.Release(99, 0, 0, 0)
	checkConservation(t, p, 2)
}

func TestPoolStopAllCancelsPending(t *testing.T) {
	p, _ := newTestPool(4)
	for note := 0; note < 3; note++ {
		v := p.Allocate(note, true, 0)
		v.Trigger(note, 100, 0, SampleMapping{}, ADSR{}, nil)
	}
	p.Release(0, 0, 0, 0)
	p.Release(1, 0, 0, 0)

	p.StopAll()
	free, active, releasing := p.Counts()
	if free != 4 || active != 0 || releasing != 0 {
		t.Errorf("wrong counts after StopAll: free %d active %d releasing %d", free, active, releasing)
	}

	// The cancelled pending returns must not re-free anything.
	p.advance(secondsToFrames(10))
	checkConservation(t, p, 4)
	free, _, _ = p.Counts()
	if free != 4 {
		t.Errorf("stale pending return changed the free list: free %d", free)
	}
}

func TestPoolDoubleAdvance(t *testing.T) {
	p, _ := newTestPool(2)
	v := p.Allocate(1, true, 0)
	v.Trigger(1, 100, 0, SampleMapping{}, ADSR{}, nil)
	p.Release(1, 0, 0, 0)

	p.advance(secondsToFrames(1))
	p.advance(secondsToFrames(2))
	free, _, _ := p.Counts()
	if free != 2 {
		t.Errorf("double advance corrupted the free list: free %d", free)
	}
}

func indexOf(t *testing.T, tvs []*testVoice, v Voice) int {
	t.Helper()
	for i, tv := range tvs {
		if Voice(tv) == v {
			return i
		}
	}
	t.Fatal("voice not found in pool")
	return -1
}
