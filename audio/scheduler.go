package audio

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Jitter at a loop boundary can make a note "barely late"; anything within
// this window is clamped to now instead of dropped.
const lateTolerance = 0.1

// Note is one declarative note event within a pattern, timed in steps from
// the pattern start.
type Note struct {
	Step     float64
	Pitch    int
	Velocity int

	// Steps is the explicit note length in steps and takes priority.
	// When zero, Duration is consulted: a legacy string like "4n", "8t" or
	// "2m" parsed against the tempo, or "trigger" (also the empty string)
	// for a pure trigger with no note-off.
	Steps    float64
	Duration string

	Params *NoteParams
}

// LoopWindow describes the looping pattern region, in steps.
type LoopWindow struct {
	Enabled    bool
	Start, End float64
}

func (w LoopWindow) length() float64 { return w.End - w.Start }

// Clip is an audio clip placed on the timeline.
type Clip struct {
	ID     string
	Buffer *Buffer
	Start  float64 // timeline position in steps
	Steps  float64 // playable length in steps
	Offset float64 // seconds already into the source material at Start
	Pan    float64
}

// Scheduler translates pattern-relative note and clip events into
// absolute-time triggers against an instrument. It runs entirely on the
// control path, ahead of the audio deadline.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	gens    map[string]uint64
	targets map[string][]*Instrument
	clipKey map[string]int
	nextKey int
}

func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{
		clock:   clock,
		gens:    make(map[string]uint64),
		targets: make(map[string][]*Instrument),
		clipKey: make(map[string]int),
		nextKey: clipPitch,
	}
}

// ScheduleNotes converts each note's pattern time to an absolute engine time
// against baseTime (the engine time corresponding to the current transport
// position) and queues the note-on/note-off pairs. Notes are processed in
// ascending start order so overlap choking sees earlier notes first. Events
// that land in the past are adjusted forward by one loop length when looping,
// clamped when barely late, and dropped otherwise; nothing is played
// retroactively. reason only shows up in the logs. Returns the number of
// notes scheduled.
func (s *Scheduler) ScheduleNotes(inst *Instrument, id string, notes []Note, baseTime float64, window LoopWindow, reason string) int {
	sorted := make([]Note, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Step < sorted[j].Step })

	pos := s.clock.Position()
	stepSec := s.clock.StepSeconds()
	loopLen := window.length() * stepSec
	gen := s.generation(id, inst)
	choke := inst.chokeEnabled()
	panAuto := inst.automationFor("pan")
	bendAuto := inst.automationFor("bend")

	type sounding struct {
		start, end float64
		open       bool // trigger-only: no known end
	}
	last := make(map[int]sounding)

	count := 0
	for _, n := range sorted {
		abs := baseTime + (n.Step-pos)*stepSec
		if abs < baseTime && window.Enabled && loopLen > 0 {
			abs += loopLen
		}
		if abs < baseTime-lateTolerance {
			log.Printf("sched: %v: dropping note %d at step %v (%s)", ErrPastDue, n.Pitch, n.Step, reason)
			continue
		}
		if abs < baseTime {
			abs = baseTime
		}

		dur, hasOff := resolveDuration(n, stepSec, s.clock.Tempo())

		var params *NoteParams
		if n.Params != nil {
			cp := *n.Params
			params = &cp
		}
		if panAuto != nil || bendAuto != nil {
			if params == nil {
				params = &NoteParams{}
			}
			if panAuto != nil {
				params.Pan = panAuto.ValueAt(n.Step)
			}
			if bendAuto != nil && len(params.Bend) == 0 {
				if semis := bendAuto.ValueAt(n.Step); semis != 0 {
					params.Bend = []BendPoint{{Time: 1, Semitones: semis}}
				}
			}
		}

		// Overlap choke: instead of letting the pool hard-cut the previous
		// note of this pitch, schedule an early release whose fade-out
		// completes exactly at the new note's start, consuming up to half
		// the overlap.
		if prior, ok := last[n.Pitch]; choke && ok && !prior.open && abs < prior.end {
			overlap := prior.end - abs
			fade := math.Min(overlap*0.5, abs-prior.start)
			if fade < chokeFade {
				fade = chokeFade
			}
			inst.queue.push(ScheduledEvent{
				kind:  evNoteOff,
				frame: secondsToFrames(abs - fade),
				pitch: n.Pitch,
				fade:  fade,
				id:    id,
				gen:   gen,
			})
		}

		var durFrames int64
		if hasOff {
			durFrames = secondsToFrames(dur)
		}
		inst.queue.push(ScheduledEvent{
			kind:     evNoteOn,
			frame:    secondsToFrames(abs),
			pitch:    n.Pitch,
			velocity: n.Velocity,
			duration: durFrames,
			params:   params,
			id:       id,
			gen:      gen,
		})
		if hasOff {
			// The release always lands strictly after its note-on.
			inst.queue.push(ScheduledEvent{
				kind:  evNoteOff,
				frame: secondsToFrames(abs + dur),
				pitch: n.Pitch,
				id:    id,
				gen:   gen,
			})
		}

		last[n.Pitch] = sounding{start: abs, end: abs + dur, open: !hasOff}
		count++
	}
	return count
}

// ScheduleClip places an audio clip. When playback starts partway through
// the clip's range, as when resuming after a pause, the elapsed time is added
// to the source offset and subtracted from the remaining duration instead of
// restarting the clip from its beginning.
func (s *Scheduler) ScheduleClip(inst *Instrument, clip Clip, baseTime float64) error {
	if clip.Buffer == nil {
		return fmt.Errorf("clip %s: %w", clip.ID, ErrMissingBuffer)
	}
	pos := s.clock.Position()
	stepSec := s.clock.StepSeconds()

	start := baseTime + (clip.Start-pos)*stepSec
	offset := clip.Offset
	dur := clip.Steps * stepSec

	if start < baseTime {
		elapsed := baseTime - start
		if elapsed >= dur {
			return fmt.Errorf("clip %s: %w", clip.ID, ErrPastDue)
		}
		offset += elapsed
		dur -= elapsed
		start = baseTime
	}

	gen := s.generation(clip.ID, inst)
	key := s.keyForClip(clip.ID)
	inst.queue.push(ScheduledEvent{
		kind:     evClipStart,
		frame:    secondsToFrames(start),
		pitch:    key,
		velocity: 127,
		duration: secondsToFrames(dur),
		clip:     clip.Buffer,
		offset:   offset,
		params:   &NoteParams{Pan: clip.Pan},
		id:       clip.ID,
		gen:      gen,
	})
	inst.queue.push(ScheduledEvent{
		kind:  evNoteOff,
		frame: secondsToFrames(start + dur),
		pitch: key,
		id:    clip.ID,
		gen:   gen,
	})
	return nil
}

// Clear invalidates everything scheduled under id that has not played yet.
func (s *Scheduler) Clear(id string) {
	s.mu.Lock()
	s.gens[id]++
	gen := s.gens[id]
	targets := s.targets[id]
	s.mu.Unlock()
	for _, inst := range targets {
		inst.cancel(id, gen)
	}
}

func (s *Scheduler) generation(id string, inst *Instrument) uint64 {
	if id == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets[id] {
		if t == inst {
			return s.gens[id]
		}
	}
	s.targets[id] = append(s.targets[id], inst)
	return s.gens[id]
}

// keyForClip maps a clip id to a stable pool key outside the MIDI note range,
// so concurrent clips don't release each other's voices.
func (s *Scheduler) keyForClip(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.clipKey[id]; ok {
		return key
	}
	key := s.nextKey
	s.nextKey++
	s.clipKey[id] = key
	return key
}

func resolveDuration(n Note, stepSec, bpm float64) (float64, bool) {
	if n.Steps > 0 {
		return n.Steps * stepSec, true
	}
	switch n.Duration {
	case "", "trigger":
		return 0, false
	}
	dur, err := parseDuration(n.Duration, bpm)
	if err != nil {
		log.Printf("sched: %v, treating note %d as trigger", err, n.Pitch)
		return 0, false
	}
	return dur, true
}

// parseDuration converts legacy string durations to seconds against the
// tempo: "4n" is a quarter note, "8t" an eighth triplet, "2m" two measures,
// and a trailing dot extends by half ("4n.").
func parseDuration(s string, bpm float64) (float64, error) {
	orig := s
	dotted := strings.HasSuffix(s, ".")
	s = strings.TrimSuffix(s, ".")
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	unit := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || num <= 0 {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}

	beat := 60.0 / bpm
	var dur float64
	switch unit {
	case 'n':
		dur = beat * 4 / float64(num)
	case 't':
		dur = beat * 4 / float64(num) * 2 / 3
	case 'm':
		dur = beat * 4 * float64(num)
	default:
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	if dotted {
		dur *= 1.5
	}
	return dur, nil
}
