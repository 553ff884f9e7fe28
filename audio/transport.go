package audio

import "sync/atomic"

// Clock is the time source the scheduler works against: a monotonic audio
// clock in seconds, a transport position in steps, and the tempo needed to
// convert between them. Transport is the production implementation; tests
// substitute fakes.
type Clock interface {
	Now() float64
	Position() float64
	Tempo() float64
	StepSeconds() float64
}

// Positions are measured in sixteenth-note steps.
const stepsPerBeat = 4

// Transport is a sample-frame clock advanced by the output sink. Position is
// measured in steps from the last Reset, so pausing the stream pauses the
// transport.
type Transport struct {
	bpm    *atomic.Value
	frames int64 // atomic; total frames rendered
	origin int64 // atomic; frame where position 0 lives
}

func NewTransport(props *Props) *Transport {
	return &Transport{
		bpm: props.MustRegister("bpm", setFloat64(1, 500), 120.0),
	}
}

// Advance moves the clock forward by n rendered frames. Called by the sink,
// once per callback, before the sources render.
func (t *Transport) Advance(n int) {
	atomic.AddInt64(&t.frames, int64(n))
}

// Reset moves transport position 0 to the current frame.
func (t *Transport) Reset() {
	atomic.StoreInt64(&t.origin, atomic.LoadInt64(&t.frames))
}

func (t *Transport) Frame() int64 {
	return atomic.LoadInt64(&t.frames)
}

func (t *Transport) Now() float64 {
	return framesToSeconds(t.Frame())
}

func (t *Transport) Position() float64 {
	elapsed := framesToSeconds(t.Frame() - atomic.LoadInt64(&t.origin))
	return elapsed / t.StepSeconds()
}

func (t *Transport) Tempo() float64 {
	return loadFloat(t.bpm)
}

func (t *Transport) StepSeconds() float64 {
	return 60.0 / (t.Tempo() * stepsPerBeat)
}
