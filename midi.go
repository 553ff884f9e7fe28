package main

import (
	"context"
	"fmt"
	"log"

	"gitlab.com/gomidi/rtmididrv"

	"github.com/pulsedaw/pulse/audio"
)

const (
	midiNoteOff = 0x80
	midiNoteOn  = 0x90
)

// listenMIDI opens the first MIDI input port and routes note messages to the
// instrument, timed at the audio clock's current read. Blocks until ctx is
// cancelled.
func listenMIDI(ctx context.Context, inst *audio.Instrument, clock audio.Clock) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("midi: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return fmt.Errorf("midi: %w", err)
	}
	if len(ins) == 0 {
		return fmt.Errorf("midi: no input ports")
	}
	in := ins[0]
	if err := in.Open(); err != nil {
		return fmt.Errorf("midi: %w", err)
	}
	defer in.Close()
	log.Printf("midi: listening on %s", in.String())

	err = in.SetListener(func(data []byte, deltaMicroseconds int64) {
		if len(data) < 3 {
			return
		}
		status := data[0] & 0xf0
		note, velocity := int(data[1]), int(data[2])
		now := clock.Now()
		switch {
		case status == midiNoteOn && velocity > 0:
			inst.TriggerNote(note, velocity, now, 0, nil)
		case status == midiNoteOff || status == midiNoteOn:
			// Note-on with velocity 0 is the running-status note-off.
			inst.ReleaseNote(note, now, velocity)
		}
	})
	if err != nil {
		return fmt.Errorf("midi: %w", err)
	}
	defer in.StopListening()

	<-ctx.Done()
	return nil
}
