package audio

import (
	"errors"
	"math"
)

const (
	blockSize  = 16 // this gives about 0.35ms accuracy for scheduled events
	sampleRate = 44100
	bufferSize = 512
	numOutputs = 2
)

// Engine format constants as hosts and offline renderers see them.
const (
	SampleRate = sampleRate
	BufferSize = bufferSize
	NumOutputs = numOutputs
)

// Default number of voices per instrument pool.
const numVoices = 16

// Errors that the engine recovers from locally. None of them ever crosses the
// render callback as a panic; they show up as a skipped note and a log line.
var (
	ErrPoolExhausted  = errors.New("voice pool exhausted")
	ErrMissingBuffer  = errors.New("no decoded buffer for sample")
	ErrInvalidMapping = errors.New("no sample mapped to note")
	ErrPastDue        = errors.New("event time already passed")
)

// VoicePhase is the lifecycle phase of a voice's envelope.
type VoicePhase int

const (
	PhaseIdle VoicePhase = iota
	PhaseAttack
	PhaseDecay
	PhaseSustain
	PhaseRelease
)

// Voice is one unit of sound generation. A pool owns a fixed set of them and
// reuses them across notes; implementations keep no state between triggers
// other than what Reset clears. sampleVoice is the only implementation today,
// but the pool is written against this interface so that other voice types
// (wavetable, FM) can share it.
type Voice interface {
	// Trigger starts a new note at time now (seconds on the audio clock).
	// If the voice is still sounding it fades the old material out over a
	// couple of milliseconds instead of cutting it.
	Trigger(note, velocity int, now float64, mapping SampleMapping, env ADSR, params *NoteParams)

	// Release moves the voice into its release phase and reports the
	// effective release duration in seconds. fadeOverride > 0 forces that
	// duration; otherwise it is the configured release scaled down by the
	// release velocity.
	Release(now float64, releaseVelocity int, fadeOverride float64) float64

	// Stop fades the voice to silence over fade seconds (0 means hard cut)
	// without going through the release phase.
	Stop(fade float64)

	// Reset returns the voice to the idle state, ready for reuse.
	Reset()

	// Process renders one block and adds it to out (one plane per channel).
	// An idle voice writes nothing.
	Process(out [][]float64)

	Phase() VoicePhase
	Note() int
	Velocity() int
	StartTime() float64

	// Amplitude is the phase-weighted amplitude estimate used by voice
	// stealing: attack is protected, release is deprioritized.
	Amplitude() float64

	Dispose()
}

// ADSR holds envelope settings as they apply to one trigger. Attack and decay
// are in seconds, sustain is a 0-1 level.
type ADSR struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// NoteParams are the optional per-note parameters. The zero value of every
// field is the default: center pan, no loop, forward playback, no slide, no
// bend, playback from the start of the sample.
type NoteParams struct {
	Pan float64 // -1 hard left .. 1 hard right

	Loop               bool
	LoopStart, LoopEnd float64 // seconds into the source buffer

	// Reverse plays the segment from its end backwards. Reverse combined
	// with Loop falls back to a reversed one-shot, and slide is ignored
	// while reversed.
	Reverse bool

	SlideTo   int     // target MIDI note for the glide
	SlideTime float64 // glide duration in seconds; 0 disables the slide

	Bend []BendPoint

	// StartOffset is a fraction (0-1) into the playable segment. StartMod
	// adds velocity/127 * StartMod on top; velocity stands in for an LFO
	// here. The result is clamped to leave at least 1ms of material.
	StartOffset float64
	StartMod    float64

	// OffsetSeconds positions playback at an absolute offset into the
	// source, taking precedence over StartOffset. Used for mid-clip resume.
	OffsetSeconds float64

	// PreserveDuration requests a time-stretched buffer so that pitch
	// shifting keeps the original duration.
	PreserveDuration bool

	// noteDuration is filled in by the instrument when the note's length is
	// known; the bend curve is normalized over it.
	noteDuration float64
}

// BendPoint is one point of a pitch-bend curve: a semitone offset reached at
// a normalized position (0-1) within the note's duration. Successive points
// become successive playback-rate ramps.
type BendPoint struct {
	Time      float64
	Semitones float64
}

// playbackRate converts a semitone shift to a playback-rate multiplier.
func playbackRate(semitones float64) float64 {
	return math.Pow(2, semitones/12.0)
}

func secondsToFrames(t float64) int64 {
	return int64(math.Round(t * sampleRate))
}

func framesToSeconds(f int64) float64 {
	return float64(f) / sampleRate
}
