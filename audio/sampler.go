package audio

import "math"

const (
	// Fade used when a sounding voice has to be cut: choking, stealing,
	// retriggering. Short enough to be inaudible, long enough to avoid a click.
	chokeFade = 0.002

	// Headroom applied below velocity scaling, as a safety margin against
	// source material that is already close to full scale.
	headroom = 0.85
)

// playhead tracks a position inside a source buffer. The rate is passed in per
// frame so slides and bends can modulate it while the head keeps the loop and
// direction bookkeeping.
type playhead struct {
	buf     *Buffer
	pos     float64 // fractional frame position in the source
	reverse bool

	loop               bool
	loopStart, loopEnd float64 // frames
	segStart, segEnd   float64 // frames

	done bool
}

// step reads the current frame and advances by rate source frames.
func (p *playhead) step(rate float64) (float64, float64) {
	if p.done || p.buf == nil {
		return 0, 0
	}
	l, r := p.buf.stereoSample(p.pos)

	if p.reverse {
		p.pos -= rate
		if p.pos <= p.segStart {
			p.done = true
		}
		return l, r
	}

	p.pos += rate
	if p.loop {
		if p.pos >= p.loopEnd {
			width := p.loopEnd - p.loopStart
			if width > 1 {
				p.pos = p.loopStart + math.Mod(p.pos-p.loopStart, width)
			} else {
				p.pos = p.loopStart
			}
		}
	} else if p.pos >= p.segEnd-1 {
		p.done = true
	}
	return l, r
}

type bendSeg struct {
	start, end int64   // frames since trigger
	from, to   float64 // rate multipliers
}

type sampleVoice struct {
	slot int

	head playhead

	// tail is the previous playback fading out after a retrigger, so that
	// reusing a sounding voice doesn't click.
	tail     playhead
	tailRate float64
	tailGain float64
	tailStep float64

	env  envelope
	gain float64
	panL float64
	panR float64

	note      int
	velocity  int
	startTime float64

	rate        float64 // current playback rate, evolved by the slide
	slideStep   float64
	slideRemain int64

	bend    []bendSeg
	bendIdx int
	frame   int64 // frames rendered since trigger
}

func newSampleVoice(slot int) *sampleVoice {
	return &sampleVoice{slot: slot, panL: 1, panR: 1}
}

func (v *sampleVoice) Trigger(note, velocity int, now float64, mapping SampleMapping, env ADSR, params *NoteParams) {
	if params == nil {
		params = &NoteParams{}
	}

	// A still-sounding voice keeps ringing as a short fading tail while the
	// new note starts, instead of being cut hard.
	if v.env.active() && !v.head.done {
		v.tail = v.head
		v.tailRate = v.rate
		v.tailGain = v.env.val * v.gain
		v.tailStep = v.tailGain / (chokeFade * sampleRate)
	}

	buf := mapping.Buffer
	v.note = note
	v.velocity = velocity
	v.startTime = now
	v.gain = headroom * float64(velocity) / 127.0
	v.panL, v.panR = panGains(params.Pan)
	v.frame = 0
	v.bend = nil
	v.bendIdx = 0
	v.slideRemain = 0

	semitones := float64(mapping.Transpose)
	srcRatio := buf.Rate / sampleRate
	v.rate = playbackRate(semitones) * srcRatio

	frames := float64(buf.Frames())
	segStart, segEnd := 0.0, frames
	loopStart := clamp(params.LoopStart*buf.Rate, 0, frames)
	loopEnd := clamp(params.LoopEnd*buf.Rate, 0, frames)
	if loopEnd <= loopStart {
		loopStart, loopEnd = segStart, segEnd
	}
	if params.Reverse || params.Loop {
		// The loop region doubles as the playable segment when one is given.
		if params.LoopEnd > params.LoopStart {
			segStart, segEnd = loopStart, loopEnd
		}
	}

	v.head = playhead{
		buf:       buf,
		reverse:   params.Reverse,
		loop:      params.Loop && !params.Reverse, // reverse+loop falls back to a one-shot
		loopStart: loopStart,
		loopEnd:   loopEnd,
		segStart:  segStart,
		segEnd:    segEnd,
	}
	v.head.pos = startPosition(buf, params, velocity, segStart, segEnd)

	if params.SlideTime > 0 && params.SlideTo > 0 && !params.Reverse {
		target := playbackRate(semitones+float64(params.SlideTo-note)) * srcRatio
		n := int64(params.SlideTime * sampleRate)
		if n > 0 && target > 0 && v.rate > 0 {
			v.slideStep = math.Pow(target/v.rate, 1/float64(n))
			v.slideRemain = n
		}
	}

	if len(params.Bend) > 0 {
		v.bend = buildBendSegs(params.Bend, bendSpanFrames(buf, params, v.head.pos, v.rate))
	}

	v.env = envelope{
		attack:  env.Attack,
		decay:   env.Decay,
		sustain: env.Sustain,
		release: env.Release,
	}
	v.env.startAttack()
}

// startPosition resolves the sample-start offset. OffsetSeconds wins when set;
// otherwise the fractional offset (plus its velocity-driven perturbation) is
// scaled across the segment. Either way at least 1ms of material remains.
func startPosition(buf *Buffer, params *NoteParams, velocity int, segStart, segEnd float64) float64 {
	minMaterial := minAttack * buf.Rate
	maxOffset := segEnd - segStart - minMaterial
	if maxOffset < 0 {
		maxOffset = 0
	}

	var offset float64
	if params.OffsetSeconds > 0 {
		offset = clamp(params.OffsetSeconds*buf.Rate, 0, maxOffset)
	} else {
		frac := clamp(params.StartOffset+params.StartMod*float64(velocity)/127.0, 0, 1)
		offset = frac * maxOffset
	}

	if params.Reverse {
		pos := segEnd - 1 - offset
		if pos < segStart+minMaterial {
			pos = math.Min(segStart+minMaterial, segEnd-1)
		}
		return pos
	}
	return segStart + offset
}

// bendSpanFrames is the duration the bend curve is normalized over: the note's
// duration when known, otherwise the remaining playable material.
func bendSpanFrames(buf *Buffer, params *NoteParams, startPos, rate float64) int64 {
	if params.noteDuration > 0 {
		return int64(params.noteDuration * sampleRate)
	}
	if rate <= 0 {
		rate = 1
	}
	remaining := float64(buf.Frames()) - startPos
	return int64(remaining / rate)
}

func buildBendSegs(points []BendPoint, span int64) []bendSeg {
	segs := make([]bendSeg, 0, len(points))
	prevTime, prevSemi := 0.0, 0.0
	for _, p := range points {
		segs = append(segs, bendSeg{
			start: int64(prevTime * float64(span)),
			end:   int64(p.Time * float64(span)),
			from:  playbackRate(prevSemi),
			to:    playbackRate(p.Semitones),
		})
		prevTime, prevSemi = p.Time, p.Semitones
	}
	return segs
}

func (v *sampleVoice) bendMul() float64 {
	for v.bendIdx < len(v.bend) && v.frame >= v.bend[v.bendIdx].end {
		v.bendIdx++
	}
	if v.bendIdx >= len(v.bend) {
		return v.bend[len(v.bend)-1].to
	}
	seg := v.bend[v.bendIdx]
	if v.frame <= seg.start || seg.end <= seg.start {
		return seg.from
	}
	t := float64(v.frame-seg.start) / float64(seg.end-seg.start)
	return seg.from + (seg.to-seg.from)*t
}

// curRate returns the playback rate for the current frame and advances the
// slide and bend state.
func (v *sampleVoice) curRate() float64 {
	rate := v.rate
	if v.slideRemain > 0 {
		v.rate *= v.slideStep
		v.slideRemain--
	}
	if len(v.bend) > 0 {
		rate *= v.bendMul()
	}
	v.frame++
	return rate
}

func (v *sampleVoice) Release(now float64, releaseVelocity int, fadeOverride float64) float64 {
	eff := fadeOverride
	if eff <= 0 {
		// Higher release velocity shortens the release, down to half.
		eff = v.env.release * (1 - float64(releaseVelocity)/127.0*0.5)
	}
	v.env.startRelease(eff)
	return eff
}

func (v *sampleVoice) Stop(fade float64) {
	if fade <= 0 {
		v.env.reset()
		v.head.done = true
		v.tailGain = 0
		return
	}
	v.env.startRelease(fade)
}

func (v *sampleVoice) Reset() {
	v.env.reset()
	v.head = playhead{}
	v.tail = playhead{}
	v.tailGain = 0
	v.bend = nil
	v.note = 0
	v.velocity = 0
	v.startTime = 0
	v.slideRemain = 0
}

func (v *sampleVoice) Process(out [][]float64) {
	if !v.env.active() && v.tailGain <= 0 {
		return
	}
	n := len(out[0])
	for i := 0; i < n; i++ {
		var l, r float64

		if v.env.active() {
			e := v.env.value()
			if v.head.done {
				// One-shot ran out of material before the envelope did.
				v.env.reset()
			} else {
				hl, hr := v.head.step(v.curRate())
				amp := e * v.gain
				l += hl * amp * v.panL
				r += hr * amp * v.panR
			}
		}

		if v.tailGain > 0 {
			tl, tr := v.tail.step(v.tailRate)
			l += tl * v.tailGain * v.panL
			r += tr * v.tailGain * v.panR
			v.tailGain -= v.tailStep
		}

		out[0][i] += l
		out[1][i] += r
	}
}

func (v *sampleVoice) Phase() VoicePhase {
	switch v.env.state {
	case stateAttack:
		return PhaseAttack
	case stateDecay:
		return PhaseDecay
	case stateSustain:
		return PhaseSustain
	case stateRelease:
		return PhaseRelease
	}
	return PhaseIdle
}

func (v *sampleVoice) Note() int          { return v.note }
func (v *sampleVoice) Velocity() int      { return v.velocity }
func (v *sampleVoice) StartTime() float64 { return v.startTime }

// Amplitude weights the raw envelope value by phase: attack-phase voices are
// protected from stealing, releasing voices are preferred victims.
func (v *sampleVoice) Amplitude() float64 {
	switch v.env.state {
	case stateAttack:
		return v.env.val * 1.5
	case stateRelease:
		return v.env.val * 0.5
	case stateInit:
		return 0
	}
	return v.env.val
}

func (v *sampleVoice) Dispose() {
	v.Reset()
}

func panGains(pan float64) (float64, float64) {
	pan = clamp(pan, -1, 1)
	return math.Min(1, 1-pan), math.Min(1, 1+pan)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
