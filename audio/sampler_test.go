package audio

import (
	"math"
	"testing"
)

func TestPlaybackRate(t *testing.T) {
	tests := []struct {
		semitones float64
		want      float64
	}{
		{-24, 0.25},
		{-12, 0.5},
		{0, 1},
		{12, 2},
		{24, 4},
		{1, math.Pow(2, 1.0/12)},
		{-1, math.Pow(2, -1.0/12)},
	}
	for _, test := range tests {
		if got := playbackRate(test.semitones); math.Abs(got-test.want) > 1e-9 {
			t.Errorf("playbackRate(%v): want %v, got %v", test.semitones, test.want, got)
		}
	}
}

func triggerTestVoice(params *NoteParams, transpose int, frames int) *sampleVoice {
	buf := NewBuffer(1, frames, sampleRate)
	for i := range buf.Data[0] {
		buf.Data[0][i] = 1
	}
	v := newSampleVoice(0)
	mapping := SampleMapping{Buffer: buf, BaseNote: 60, Transpose: transpose}
	v.Trigger(60+transpose, 100, 0, mapping, ADSR{Sustain: 1, Release: 0.2}, params)
	return v
}

func TestVoiceTransposeSetsRate(t *testing.T) {
	v := triggerTestVoice(nil, 12, sampleRate)
	if want, got := 2.0, v.rate; math.Abs(want-got) > 1e-9 {
		t.Errorf("wrong playback rate: want %v, got %v", want, got)
	}
}

func TestReverseLoopFallsBackToOneShot(t *testing.T) {
	v := triggerTestVoice(&NoteParams{Reverse: true, Loop: true}, 0, sampleRate)
	if v.head.loop {
		t.Error("reverse voice still looping")
	}
	if !v.head.reverse {
		t.Error("voice not reversed")
	}
}

func TestReverseStartsFromEnd(t *testing.T) {
	v := triggerTestVoice(&NoteParams{Reverse: true}, 0, 1000)
	if want, got := 999.0, v.head.pos; want != got {
		t.Errorf("reverse start position: want %v, got %v", want, got)
	}
}

func TestStartOffsetLeavesMaterial(t *testing.T) {
	v := triggerTestVoice(&NoteParams{StartOffset: 1.0}, 0, sampleRate)
	remaining := v.head.segEnd - v.head.pos
	if remaining < minAttack*sampleRate-1e-6 {
		t.Errorf("start offset left %v frames, want at least %v", remaining, minAttack*sampleRate)
	}
}

func TestStartModScalesWithVelocity(t *testing.T) {
	buf := NewBuffer(1, sampleRate, sampleRate)
	params := &NoteParams{StartMod: 0.5}
	mapping := SampleMapping{Buffer: buf, BaseNote: 60}

	quiet := newSampleVoice(0)
	quiet.Trigger(60, 1, 0, mapping, ADSR{Sustain: 1}, params)
	loud := newSampleVoice(1)
	loud.Trigger(60, 127, 0, mapping, ADSR{Sustain: 1}, params)

	if quiet.head.pos >= loud.head.pos {
		t.Errorf("start modulation did not scale with velocity: quiet %v, loud %v",
			quiet.head.pos, loud.head.pos)
	}
}

func TestOffsetSecondsWins(t *testing.T) {
	v := triggerTestVoice(&NoteParams{OffsetSeconds: 0.5, StartOffset: 0.1}, 0, sampleRate)
	if want, got := 0.5*sampleRate, v.head.pos; math.Abs(want-got) > 1 {
		t.Errorf("absolute offset ignored: want pos %v, got %v", want, got)
	}
}

func TestSlideDisabledWhenReversed(t *testing.T) {
	v := triggerTestVoice(&NoteParams{Reverse: true, SlideTo: 72, SlideTime: 0.1}, 0, sampleRate)
	if v.slideRemain != 0 {
		t.Error("slide armed on a reversed voice")
	}
}

func TestSlideConvergesOnTarget(t *testing.T) {
	v := triggerTestVoice(&NoteParams{SlideTo: 72, SlideTime: 0.01}, 0, sampleRate)
	for i := 0; i < int(0.02*sampleRate); i++ {
		v.curRate()
	}
	if want, got := 2.0, v.rate; math.Abs(want-got) > 1e-6 {
		t.Errorf("slide did not converge: want rate %v, got %v", want, got)
	}
}

func TestReleaseVelocityScaling(t *testing.T) {
	v := triggerTestVoice(nil, 0, sampleRate)
	if want, got := 0.2, v.Release(0, 0, 0); math.Abs(want-got) > 1e-9 {
		t.Errorf("release with velocity 0: want %v, got %v", want, got)
	}

	v = triggerTestVoice(nil, 0, sampleRate)
	if want, got := 0.1, v.Release(0, 127, 0); math.Abs(want-got) > 1e-9 {
		t.Errorf("release with velocity 127: want %v, got %v", want, got)
	}

	v = triggerTestVoice(nil, 0, sampleRate)
	if want, got := 0.05, v.Release(0, 0, 0.05); math.Abs(want-got) > 1e-9 {
		t.Errorf("release with override: want %v, got %v", want, got)
	}
}

func TestAmplitudeWeighting(t *testing.T) {
	v := &sampleVoice{}
	v.env.val = 0.5

	v.env.state = stateAttack
	if want, got := 0.75, v.Amplitude(); want != got {
		t.Errorf("attack amplitude: want %v, got %v", want, got)
	}
	v.env.state = stateSustain
	if want, got := 0.5, v.Amplitude(); want != got {
		t.Errorf("sustain amplitude: want %v, got %v", want, got)
	}
	v.env.state = stateRelease
	if want, got := 0.25, v.Amplitude(); want != got {
		t.Errorf("release amplitude: want %v, got %v", want, got)
	}
	v.env.state = stateInit
	if want, got := 0.0, v.Amplitude(); want != got {
		t.Errorf("idle amplitude: want %v, got %v", want, got)
	}
}

func TestOneShotEndsWithMaterial(t *testing.T) {
	v := triggerTestVoice(nil, 0, 128)
	out := [][]float64{make([]float64, 256), make([]float64, 256)}
	v.Process(out)
	v.Process(out)
	if v.Phase() != PhaseIdle {
		t.Errorf("voice still in phase %v after its material ran out", v.Phase())
	}
}

func TestLoopKeepsPlaying(t *testing.T) {
	v := triggerTestVoice(&NoteParams{Loop: true}, 0, 128)
	out := [][]float64{make([]float64, 1024), make([]float64, 1024)}
	v.Process(out)
	if v.head.done {
		t.Error("looping voice ran out of material")
	}
	if v.head.pos < 0 || v.head.pos >= 128 {
		t.Errorf("loop position escaped the buffer: %v", v.head.pos)
	}
}

func TestRetriggerKeepsTail(t *testing.T) {
	v := triggerTestVoice(nil, 0, sampleRate)
	out := [][]float64{make([]float64, 64), make([]float64, 64)}
	v.Process(out)

	buf := NewBuffer(1, sampleRate, sampleRate)
	v.Trigger(62, 100, 1, SampleMapping{Buffer: buf, BaseNote: 60, Transpose: 2}, ADSR{Sustain: 1}, nil)
	if v.tailGain <= 0 {
		t.Error("retrigger dropped the previous material instead of fading it")
	}
}

func TestPanGains(t *testing.T) {
	tests := []struct {
		pan          float64
		wantL, wantR float64
	}{
		{0, 1, 1},
		{-1, 1, 0},
		{1, 0, 1},
		{-2, 1, 0}, // clamped
	}
	for _, test := range tests {
		l, r := panGains(test.pan)
		if l != test.wantL || r != test.wantR {
			t.Errorf("panGains(%v): want (%v, %v), got (%v, %v)",
				test.pan, test.wantL, test.wantR, l, r)
		}
	}
}

func TestBendCurveRamps(t *testing.T) {
	params := &NoteParams{Bend: []BendPoint{{Time: 0.5, Semitones: 12}, {Time: 1, Semitones: 0}}}
	params.noteDuration = 0.1
	v := triggerTestVoice(params, 0, sampleRate)

	if want, got := 2, len(v.bend); want != got {
		t.Fatalf("wrong number of bend segments: want %v, got %v", want, got)
	}
	// Halfway through the first segment the rate multiplier is between the
	// endpoints.
	v.frame = v.bend[0].end / 2
	mul := v.bendMul()
	if mul <= 1 || mul >= 2 {
		t.Errorf("mid-bend multiplier out of range: %v", mul)
	}
	// Past the last segment it holds the final value.
	v.frame = v.bend[1].end + 1000
	if want, got := 1.0, v.bendMul(); math.Abs(want-got) > 1e-9 {
		t.Errorf("post-bend multiplier: want %v, got %v", want, got)
	}
}
