package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/pulsedaw/pulse/assets"
	"github.com/pulsedaw/pulse/audio"
	"github.com/pulsedaw/pulse/shell"
)

// sink abstracts the realtime output backend.
type sink interface {
	AddSources(...audio.Source)
	Start() error
	Stop() error
}

// env is everything the commands operate on: the engine-wide props (bpm),
// the clock, the scheduler and the named devices.
type env struct {
	props     *audio.Props
	transport *audio.Transport
	sched     *audio.Scheduler
	store     *assets.Store
	stretch   *audio.TimeStretchCache
	out       sink

	mu      sync.Mutex
	devices map[string]*audio.Instrument
	kits    map[string][]audio.Sample
	loops   map[string]chan struct{}
}

func newEnv(bpm float64) (*env, error) {
	props := audio.NewProps()
	e := &env{
		props:     props,
		transport: audio.NewTransport(props),
		store:     assets.NewStore(),
		stretch:   audio.NewTimeStretchCache(0),
		devices:   make(map[string]*audio.Instrument),
		kits:      make(map[string][]audio.Sample),
		loops:     make(map[string]chan struct{}),
	}
	e.sched = audio.NewScheduler(e.transport)
	if err := props.Set("bpm", bpm); err != nil {
		return nil, err
	}
	e.addDevice("sampler")
	return e, nil
}

func (e *env) dispose() {
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
		d.Dispose()
	}
	e.stretch.Close()
}

func (e *env) addDevice(name string) (*audio.Instrument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.devices[name]; ok {
		return nil, fmt.Errorf("device already exists: %s", name)
	}
	inst := audio.NewSampler(name, audio.NewProps(), e.transport, e.stretch)
	e.devices[name] = inst
	if e.out != nil {
		e.out.AddSources(inst)
	}
	return inst, nil
}

func (e *env) device(name string) *audio.Instrument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devices[name]
}

func (e *env) lookup(name string) (*audio.Instrument, error) {
	if inst := e.device(name); inst != nil {
		return inst, nil
	}
	return nil, fmt.Errorf("unknown device: %s", name)
}

func (e *env) sources() []audio.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	sources := make([]audio.Source, 0, len(e.devices))
	for _, d := range e.devices {
		sources = append(sources, d)
	}
	return sources
}

func (e *env) eval(input string) (string, error) {
	command, err := shell.Parse(input)
	if err != nil {
		return "", err
	}
	if command == nil {
		return "", nil
	}
	for _, cmd := range commands {
		if command.Name != cmd.name {
			continue
		}
		if cmd.arity < 0 {
			arity := -cmd.arity
			if len(command.Args) < arity {
				return "", fmt.Errorf("%s: wrong number of arguments: need at least %v, got %v",
					cmd.name, arity, len(command.Args))
			}
		} else if len(command.Args) != cmd.arity {
			return "", fmt.Errorf("%s: wrong number of arguments: want %v, got %v",
				cmd.name, cmd.arity, len(command.Args))
		}
		result, err := cmd.run(e, command.Args)
		if err != nil {
			return result, fmt.Errorf("%s: %w", cmd.name, err)
		}
		return result, nil
	}
	return "", fmt.Errorf("unknown command: %s", command.Name)
}

func repl(e *env) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if result, err := e.eval(line); err != nil {
			fmt.Println(err)
		} else if result != "" {
			fmt.Println(result)
		}
	}
}

// readArgs copies command arguments into typed destinations: *string takes an
// identifier or string, *int a number or note name, *float64 a number, and
// *[]shell.Node an array.
func readArgs(args []shell.Node, slots ...interface{}) error {
	if len(args) != len(slots) {
		return errors.New("not enough arguments")
	}
	for n, arg := range args {
		switch p := slots[n].(type) {
		case *string:
			switch s := arg.(type) {
			case shell.String:
				*p = s.Value
			case shell.Identifier:
				*p = s.Value
			default:
				return fmt.Errorf("argument %d: expected a string or identifier", n+1)
			}
		case *int:
			switch v := arg.(type) {
			case shell.Int:
				*p = v.Value
			case shell.Note:
				*p = v.Number
			default:
				return fmt.Errorf("argument %d: expected a number or note", n+1)
			}
		case *float64:
			switch v := arg.(type) {
			case shell.Int:
				*p = float64(v.Value)
			case shell.Float:
				*p = v.Value
			default:
				return fmt.Errorf("argument %d: expected a number", n+1)
			}
		case *[]shell.Node:
			arr, ok := arg.(shell.Array)
			if !ok {
				return fmt.Errorf("argument %d: expected an array", n+1)
			}
			*p = arr.Nodes
		default:
			panic(fmt.Sprintf("readArgs: unhandled destination type: %T", p))
		}
	}
	return nil
}
