package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pulsedaw/pulse/audio"
	"github.com/pulsedaw/pulse/shell"
)

type command struct {
	name  string
	help  string
	run   func(*env, []shell.Node) (string, error)
	arity int // -n means len(args) must be >= n
}

var commands []command

// Assigned in init to break the initialization cycle between commands and
// helpCommand, which iterates the table.
func init() {
	commands = []command{
		{"help", "list commands", helpCommand, 0},
		{"add", "add <name>: add a sampler device", addCommand, 1},
		{"load-kit", "load-kit <device> <dir>: load a directory of samples", loadKitCommand, 2},
		{"load-sound", "load-sound <device> <file> <note>: map one sample file", loadSoundCommand, 3},
		{"set", "set <device> <prop> <value>", setCommand, 3},
		{"get", "get <device> <prop>", getCommand, 2},
		{"props", "props <device>: list properties", propsCommand, 1},
		{"preset", "preset <device> <name>: apply a preset", presetCommand, 2},
		{"bpm", "bpm <tempo>", bpmCommand, 1},
		{"play", "play <device> <steps> <pattern> [duration]: play a pattern once", playCommand, -3},
		{"loop", "loop <id> <device> <steps> <pattern> [duration]: loop a pattern", loopCommand, -4},
		{"clip", "clip <id> <device> <file> <start> <steps> [offset]: place an audio clip", clipCommand, -5},
		{"clear", "clear <id>: cancel a loop or pending events under id", clearCommand, 1},
		{"stop", "stop <device|all>: cut playback", stopCommand, 1},
		{"state", "state <device>: voice pool diagnostics", stateCommand, 1},
	}
}

func helpCommand(e *env, args []shell.Node) (string, error) {
	var b strings.Builder
	for _, cmd := range commands {
		fmt.Fprintf(&b, "%-12s %s\n", cmd.name, cmd.help)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func addCommand(e *env, args []shell.Node) (string, error) {
	var name string
	if err := readArgs(args, &name); err != nil {
		return "", err
	}
	_, err := e.addDevice(name)
	return "", err
}

func loadKitCommand(e *env, args []shell.Node) (string, error) {
	var device, dir string
	if err := readArgs(args, &device, &dir); err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	n, err := e.loadKit(inst, dir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("loaded %d samples", n), nil
}

func loadSoundCommand(e *env, args []shell.Node) (string, error) {
	var device, file string
	var note int
	if err := readArgs(args, &device, &file, &note); err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	buf, err := e.store.Load(file)
	if err != nil {
		return "", err
	}
	return "", e.addSamples(inst, audio.Sample{
		Name:       filepath.Base(file),
		Note:       note,
		Buffer:     buf,
		RoundRobin: -1,
	})
}

func setCommand(e *env, args []shell.Node) (string, error) {
	var device, prop string
	if err := readArgs(args[:2], &device, &prop); err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	switch v := args[2].(type) {
	case shell.Int:
		return "", inst.Set(prop, v.Value)
	case shell.Float:
		return "", inst.Set(prop, v.Value)
	case shell.String:
		return "", inst.Set(prop, v.Value)
	case shell.Identifier:
		switch v.Value {
		case "true", "on":
			return "", inst.Set(prop, true)
		case "false", "off":
			return "", inst.Set(prop, false)
		}
		return "", inst.Set(prop, v.Value)
	default:
		return "", fmt.Errorf("unsupported property value: %v", v)
	}
}

func getCommand(e *env, args []shell.Node) (string, error) {
	var device, prop string
	if err := readArgs(args, &device, &prop); err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	v, err := inst.Get(prop)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", v), nil
}

func propsCommand(e *env, args []shell.Node) (string, error) {
	var device string
	if err := readArgs(args, &device); err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	return strings.Join(inst.Keys(), "\n"), nil
}

func presetCommand(e *env, args []shell.Node) (string, error) {
	var device, name string
	if err := readArgs(args, &device, &name); err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	return "", audio.LoadPreset(name, inst)
}

func bpmCommand(e *env, args []shell.Node) (string, error) {
	var bpm float64
	if err := readArgs(args, &bpm); err != nil {
		return "", err
	}
	return "", e.props.Set("bpm", bpm)
}

func playCommand(e *env, args []shell.Node) (string, error) {
	var device string
	var steps float64
	var pattern []shell.Node
	if err := readArgs(args[:3], &device, &steps, &pattern); err != nil {
		return "", err
	}
	dur, err := optionalDuration(args[3:])
	if err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	notes, err := patternNotes(pattern, steps, dur)
	if err != nil {
		return "", err
	}
	pos := e.transport.Position()
	for i := range notes {
		notes[i].Step += pos
	}
	n := e.sched.ScheduleNotes(inst, "", notes, e.transport.Now(), audio.LoopWindow{}, "play")
	return fmt.Sprintf("%d notes", n), nil
}

func loopCommand(e *env, args []shell.Node) (string, error) {
	var id, device string
	var steps float64
	var pattern []shell.Node
	if err := readArgs(args[:4], &id, &device, &steps, &pattern); err != nil {
		return "", err
	}
	dur, err := optionalDuration(args[4:])
	if err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	notes, err := patternNotes(pattern, steps, dur)
	if err != nil {
		return "", err
	}
	e.startLoop(id, inst, notes, steps)
	return "", nil
}

func clipCommand(e *env, args []shell.Node) (string, error) {
	var id, device, file string
	var start, steps float64
	if err := readArgs(args[:5], &id, &device, &file, &start, &steps); err != nil {
		return "", err
	}
	var offset float64
	if len(args) > 5 {
		if err := readArgs(args[5:], &offset); err != nil {
			return "", err
		}
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	buf, err := e.store.Load(file)
	if err != nil {
		return "", err
	}
	clip := audio.Clip{
		ID:     id,
		Buffer: buf,
		Start:  e.transport.Position() + start,
		Steps:  steps,
		Offset: offset,
	}
	return "", e.sched.ScheduleClip(inst, clip, e.transport.Now())
}

func clearCommand(e *env, args []shell.Node) (string, error) {
	var id string
	if err := readArgs(args, &id); err != nil {
		return "", err
	}
	e.stopLoop(id)
	e.sched.Clear(id)
	return "", nil
}

func stopCommand(e *env, args []shell.Node) (string, error) {
	var device string
	if err := readArgs(args, &device); err != nil {
		return "", err
	}
	if device == "all" {
		e.mu.Lock()
		for id, done := range e.loops {
			close(done)
			delete(e.loops, id)
		}
		devices := make([]*audio.Instrument, 0, len(e.devices))
		for _, d := range e.devices {
			devices = append(devices, d)
		}
		e.mu.Unlock()
		for _, d := range devices {
			d.StopAll()
		}
		return "", nil
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	inst.StopAll()
	return "", nil
}

func stateCommand(e *env, args []shell.Node) (string, error) {
	var device string
	if err := readArgs(args, &device); err != nil {
		return "", err
	}
	inst, err := e.lookup(device)
	if err != nil {
		return "", err
	}
	st := inst.State()
	return fmt.Sprintf("samples: %d  voices free: %d  active: %d  releasing: %d",
		st.Samples, st.FreeVoices, st.ActiveVoices, st.ReleasingVoices), nil
}

var sampleExts = map[string]bool{".wav": true, ".mp3": true, ".ogg": true}

// loadKit loads every supported sample file in dir, decoding the note,
// velocity layer and round-robin index from the filename conventions.
func (e *env) loadKit(inst *audio.Instrument, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var samples []audio.Sample
	for _, entry := range entries {
		if entry.IsDir() || !sampleExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		buf, err := e.store.Load(path)
		if err != nil {
			log.Printf("load-kit: %v", err)
			continue
		}
		name := shell.ParseSampleName(path)
		note := name.Note
		if note < 0 {
			note = 60
		}
		rr := name.RoundRobin
		if rr == 0 {
			rr = -1
		}
		samples = append(samples, audio.Sample{
			Name:       entry.Name(),
			Note:       note,
			Buffer:     buf,
			VelLo:      name.VelLo,
			VelHi:      name.VelHi,
			RoundRobin: rr,
		})
	}
	if len(samples) == 0 {
		return 0, fmt.Errorf("no samples in %s", dir)
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return len(samples), e.addSamples(inst, samples...)
}

func (e *env) addSamples(inst *audio.Instrument, samples ...audio.Sample) error {
	e.mu.Lock()
	e.kits[inst.Name()] = append(e.kits[inst.Name()], samples...)
	all := e.kits[inst.Name()]
	e.mu.Unlock()
	return inst.SetSamples(all)
}

// noteDur is the per-note length a pattern command applies to every note:
// explicit steps, a duration literal, or neither (pure triggers).
type noteDur struct {
	steps    float64
	duration string
}

func optionalDuration(args []shell.Node) (noteDur, error) {
	var d noteDur
	switch len(args) {
	case 0:
		return d, nil
	case 1:
	default:
		return d, fmt.Errorf("too many arguments")
	}
	switch v := args[0].(type) {
	case shell.Duration:
		d.duration = v.Value
	case shell.Int:
		d.steps = float64(v.Value)
	case shell.Float:
		d.steps = v.Value
	default:
		return d, fmt.Errorf("expected a duration, got %v", v)
	}
	return d, nil
}

// patternNotes spreads the pattern's elements evenly over steps: a note name
// or number plays at its slot, '.' rests, and a nested array subdivides its
// slot. Notes are timed in steps from the pattern start.
func patternNotes(pattern []shell.Node, steps float64, dur noteDur) ([]audio.Note, error) {
	var notes []audio.Note
	pos := 0.0
	if err := evalPattern(pattern, steps, &pos, dur, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func evalPattern(pattern []shell.Node, divSteps float64, pos *float64, dur noteDur, notes *[]audio.Note) error {
	if len(pattern) == 0 {
		return fmt.Errorf("empty pattern")
	}
	slot := divSteps / float64(len(pattern))
	for _, item := range pattern {
		switch v := item.(type) {
		case shell.Note:
			*notes = append(*notes, audio.Note{
				Step:     *pos,
				Pitch:    v.Number,
				Velocity: 100,
				Steps:    dur.steps,
				Duration: dur.duration,
			})
			*pos += slot
		case shell.Int:
			if v.Value < 0 || v.Value > 127 {
				return fmt.Errorf("note out of range: %d", v.Value)
			}
			*notes = append(*notes, audio.Note{
				Step:     *pos,
				Pitch:    v.Value,
				Velocity: 100,
				Steps:    dur.steps,
				Duration: dur.duration,
			})
			*pos += slot
		case shell.Rest:
			*pos += slot
		case shell.Array:
			if err := evalPattern(v.Nodes, slot, pos, dur, notes); err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid %v in pattern", v)
		}
	}
	return nil
}

// startLoop schedules the pattern one pass at a time, each pass pushed just
// ahead of its loop boundary so tempo changes take effect on the next pass.
func (e *env) startLoop(id string, inst *audio.Instrument, notes []audio.Note, steps float64) {
	e.stopLoop(id)
	done := make(chan struct{})
	e.mu.Lock()
	e.loops[id] = done
	e.mu.Unlock()

	go func() {
		const lead = 0.1 // seconds of scheduling headroom per pass
		boundary := math.Ceil(e.transport.Position())
		for pass := 0; ; pass++ {
			window := audio.LoopWindow{Enabled: true, Start: boundary, End: boundary + steps}
			shifted := make([]audio.Note, len(notes))
			for i, n := range notes {
				shifted[i] = n
				shifted[i].Step = boundary + n.Step
			}
			e.sched.ScheduleNotes(inst, id, shifted, e.transport.Now(), window,
				fmt.Sprintf("%s pass %d", id, pass))
			boundary += steps
			wait := (boundary-e.transport.Position())*e.transport.StepSeconds() - lead
			if wait < 0 {
				wait = 0
			}
			t := time.NewTimer(time.Duration(wait * float64(time.Second)))
			select {
			case <-done:
				t.Stop()
				return
			case <-t.C:
			}
		}
	}()
}

func (e *env) stopLoop(id string) {
	e.mu.Lock()
	done, ok := e.loops[id]
	if ok {
		delete(e.loops, id)
	}
	e.mu.Unlock()
	if ok {
		close(done)
		e.sched.Clear(id)
	}
}
