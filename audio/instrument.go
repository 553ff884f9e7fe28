package audio

import (
	"log"
	"math"
	"sync"
	"sync/atomic"
)

const (
	propLevel      = "level"
	propEnvAttack  = "env.attack"
	propEnvDecay   = "env.decay"
	propEnvSustain = "env.sustain"
	propEnvRelease = "env.release"
	propChoke      = "choke"     // monophonic per-pitch behavior (cut itself)
	propStretch    = "stretch"   // preserve duration when pitch shifting
	propTranspose  = "transpose" // semitones added to every triggered note

	// PropSampleMap holds the instrument's *SampleMapper.
	PropSampleMap = "samples.map"
)

// Reserved pool key for audio-clip voices, outside the MIDI note range.
const clipPitch = 128

// Instrument is a multi-sample playback instrument: a fixed voice pool, a
// note-to-buffer map and a per-instrument event timeline. The control path
// pushes timed events through a lock-free queue; the render path consumes them
// block by block in Process.
type Instrument struct {
	*Props
	name    string
	clock   *Transport
	pool    *VoicePool
	queue   *eventQueue
	pending *timeline
	stretch *TimeStretchCache

	samples    *atomic.Value
	level      *atomic.Value
	envAttack  *atomic.Value
	envDecay   *atomic.Value
	envSustain *atomic.Value
	envRelease *atomic.Value
	choke      *atomic.Value
	stretchOn  *atomic.Value
	transpose  *atomic.Value

	automation atomic.Value // map[string]*Automation
	autoMu     sync.Mutex

	cancels  atomic.Value // map[string]uint64: minimum accepted generation per id
	cancelMu sync.Mutex

	stopReq int32

	buf   [][]float64
	block [][]float64
}

// NewSampler builds a sampler instrument with its own pool of voices. The
// time-stretch cache is injected so tests can substitute their own and so
// multiple engine instances don't share hidden state; nil disables stretching.
func NewSampler(name string, props *Props, clock *Transport, stretch *TimeStretchCache) *Instrument {
	voices := make([]Voice, numVoices)
	for n := range voices {
		voices[n] = newSampleVoice(n)
	}
	return NewInstrument(name, props, clock, stretch, voices)
}

func NewInstrument(name string, props *Props, clock *Transport, stretch *TimeStretchCache, voices []Voice) *Instrument {
	i := &Instrument{
		Props:   props,
		name:    name,
		clock:   clock,
		pool:    NewVoicePool(voices),
		queue:   newEventQueue(256),
		pending: newTimeline(1024),
		stretch: stretch,

		samples:    props.MustRegister(PropSampleMap, setSampleMap, BuildSampleMap(nil)),
		level:      props.MustRegister(propLevel, setLevel, 0.0),
		envAttack:  props.MustRegister(propEnvAttack, setEnvParam, 0.0),
		envDecay:   props.MustRegister(propEnvDecay, setEnvParam, 0.0),
		envSustain: props.MustRegister(propEnvSustain, setSustain, 1.0),
		envRelease: props.MustRegister(propEnvRelease, setEnvParam, 0.1),
		choke:      props.MustRegister(propChoke, setBool, false),
		stretchOn:  props.MustRegister(propStretch, setBool, false),
		transpose:  props.MustRegister(propTranspose, setInt, 0),

		buf:   make([][]float64, numOutputs),
		block: make([][]float64, numOutputs),
	}
	for ch := range i.buf {
		i.buf[ch] = make([]float64, bufferSize)
	}
	return i
}

func (i *Instrument) Name() string { return i.name }

// SetSamples replaces the instrument's sample set; the note map is rebuilt
// once and swapped in atomically.
func (i *Instrument) SetSamples(samples []Sample) error {
	return i.Set(PropSampleMap, BuildSampleMap(samples))
}

// TriggerNote schedules a note-on at time t (seconds on the audio clock) and,
// when duration > 0, the matching note-off. The engine owns params after the
// call. A zero or negative duration plays the sample as a pure trigger: no
// note-off is scheduled and the voice rings until released or stolen.
func (i *Instrument) TriggerNote(pitch, velocity int, t, duration float64, params *NoteParams) {
	var durFrames int64
	if duration > 0 {
		durFrames = secondsToFrames(duration)
	}
	i.queue.push(ScheduledEvent{
		kind:     evNoteOn,
		frame:    secondsToFrames(t),
		pitch:    pitch,
		velocity: velocity,
		duration: durFrames,
		params:   params,
	})
	if duration > 0 {
		i.queue.push(ScheduledEvent{
			kind:  evNoteOff,
			frame: secondsToFrames(t + duration),
			pitch: pitch,
		})
	}
}

// ReleaseNote schedules a note-off at time t.
func (i *Instrument) ReleaseNote(pitch int, t float64, releaseVelocity int) {
	i.queue.push(ScheduledEvent{
		kind:   evNoteOff,
		frame:  secondsToFrames(t),
		pitch:  pitch,
		relVel: releaseVelocity,
	})
}

// StopAll cuts everything at the next render callback: pending events are
// discarded and every voice stops with no release phase.
func (i *Instrument) StopAll() {
	atomic.StoreInt32(&i.stopReq, 1)
}

func (i *Instrument) Dispose() {
	i.pool.Dispose()
}

// SetAutomation attaches a read-only automation lane ("pan", "bend", ...)
// sampled by the scheduler at note-schedule time.
func (i *Instrument) SetAutomation(param string, a *Automation) {
	i.autoMu.Lock()
	defer i.autoMu.Unlock()
	old, _ := i.automation.Load().(map[string]*Automation)
	m := make(map[string]*Automation, len(old)+1)
	for k, v := range old {
		m[k] = v
	}
	m[param] = a
	i.automation.Store(m)
}

func (i *Instrument) automationFor(param string) *Automation {
	m, _ := i.automation.Load().(map[string]*Automation)
	return m[param]
}

func (i *Instrument) chokeEnabled() bool { return loadBool(i.choke) }

// cancel invalidates all queued and pending events scheduled under id with a
// generation below gen. The render path checks this before executing events.
func (i *Instrument) cancel(id string, gen uint64) {
	i.cancelMu.Lock()
	defer i.cancelMu.Unlock()
	old, _ := i.cancels.Load().(map[string]uint64)
	m := make(map[string]uint64, len(old)+1)
	for k, v := range old {
		m[k] = v
	}
	m[id] = gen
	i.cancels.Store(m)
}

func (i *Instrument) accepts(ev ScheduledEvent) bool {
	if ev.id == "" {
		return true
	}
	m, _ := i.cancels.Load().(map[string]uint64)
	if m == nil {
		return true
	}
	return ev.gen >= m[ev.id]
}

// InstrumentState is a diagnostics snapshot for UI metering.
type InstrumentState struct {
	FreeVoices      int
	ActiveVoices    int
	ReleasingVoices int
	Samples         int
}

func (i *Instrument) State() InstrumentState {
	free, active, releasing := i.pool.Counts()
	return InstrumentState{
		FreeVoices:      free,
		ActiveVoices:    active,
		ReleasingVoices: releasing,
		Samples:         i.samples.Load().(*SampleMapper).Size(),
	}
}

// Process renders one callback buffer. Runs on the render path: no locks, no
// allocation in the steady state, and no panics on runtime data.
func (i *Instrument) Process(out [][]float32) {
	if atomic.CompareAndSwapInt32(&i.stopReq, 1, 0) {
		i.pending.clear()
		i.queue.drain(func(ScheduledEvent) {})
		i.pool.StopAll()
	}

	i.queue.drain(func(ev ScheduledEvent) {
		if !i.accepts(ev) {
			return
		}
		if !i.pending.insert(ev) {
			log.Printf("%s: event timeline full, dropping event", i.name)
		}
	})

	base := i.clock.Frame()
	n := len(out[0])
	for b := 0; b < n; b += blockSize {
		end := b + blockSize
		if end > n {
			end = n
		}
		blockEnd := base + int64(end)
		now := framesToSeconds(base + int64(b))

		for {
			ev, ok := i.pending.pop(blockEnd)
			if !ok {
				break
			}
			if !i.accepts(ev) {
				continue
			}
			switch ev.kind {
			case evNoteOn, evClipStart:
				i.trigger(ev, now)
			case evNoteOff:
				i.pool.Release(ev.pitch, now, ev.relVel, ev.fade)
			}
		}

		i.pool.advance(blockEnd)

		for ch := range i.block {
			i.block[ch] = i.buf[ch][b:end]
		}
		for _, v := range i.pool.Voices() {
			v.Process(i.block)
		}
	}

	db := loadFloat(i.level)
	gain := math.Pow(10, db/20.0)
	for ch := range i.buf {
		plane := i.buf[ch][:n]
		for k := range plane {
			out[ch][k] += float32(gain * plane[k])
			plane[k] = 0
		}
	}
}

// trigger resolves and starts one note on the render path. Every failure mode
// here is a dropped note and a log line, never a panic: overload has to
// degrade, not halt the engine.
func (i *Instrument) trigger(ev ScheduledEvent, now float64) {
	var mapping SampleMapping
	params := ev.params
	if params == nil {
		params = &NoteParams{}
	}

	if ev.kind == evClipStart {
		if ev.clip == nil {
			log.Printf("%s: %v: clip has no buffer", i.name, ErrMissingBuffer)
			return
		}
		mapping = SampleMapping{Buffer: ev.clip, BaseNote: ev.pitch}
		params.OffsetSeconds = ev.offset
	} else {
		mapper := i.samples.Load().(*SampleMapper)
		m, err := mapper.Resolve(ev.pitch, ev.velocity)
		if err != nil {
			log.Printf("%s: note %d: %v", i.name, ev.pitch, err)
			return
		}
		if m.Buffer == nil {
			log.Printf("%s: note %d: %v", i.name, ev.pitch, ErrMissingBuffer)
			return
		}
		mapping = m
		mapping.Transpose += loadInt(i.transpose)
	}

	if i.stretch != nil && (params.PreserveDuration || loadBool(i.stretchOn)) && mapping.Transpose != 0 {
		if buf, ready := i.stretch.GetOrCreate(mapping.Buffer, float64(mapping.Transpose)); ready {
			mapping.Buffer = buf
			mapping.Transpose = 0
		}
		// Not ready: plain playback-rate shift for this one trigger, the
		// corrected buffer serves the next one.
	}

	if ev.duration > 0 {
		params.noteDuration = framesToSeconds(ev.duration)
	}

	allowPoly := !i.chokeEnabled()
	v := i.pool.Allocate(ev.pitch, allowPoly, now)
	if v == nil {
		log.Printf("%s: %v, dropping note %d", i.name, ErrPoolExhausted, ev.pitch)
		return
	}

	env := ADSR{
		Attack:  loadFloat(i.envAttack),
		Decay:   loadFloat(i.envDecay),
		Sustain: loadFloat(i.envSustain),
		Release: loadFloat(i.envRelease),
	}
	v.Trigger(ev.pitch, ev.velocity, now, mapping, env, params)
}
