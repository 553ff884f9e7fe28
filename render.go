package main

import (
	"fmt"
	"log"
	"os"

	goaudio "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"

	"github.com/pulsedaw/pulse/audio"
)

// renderFile bounces the scheduled content offline: the devices are processed
// buffer by buffer, faster than realtime, and the mix is written as a 16-bit
// stereo WAV. One bar is four beats.
func renderFile(e *env, path string, bars int) error {
	if bars <= 0 {
		return fmt.Errorf("render: bars must be positive, got %d", bars)
	}
	seconds := float64(bars) * 4 * 60.0 / e.transport.Tempo()
	frames := int(seconds * audio.SampleRate)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, audio.SampleRate, 16, audio.NumOutputs, 1)
	defer enc.Close()

	sources := e.sources()
	planes := make([][]float32, audio.NumOutputs)
	for ch := range planes {
		planes[ch] = make([]float32, audio.BufferSize)
	}
	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: audio.NumOutputs,
			SampleRate:  audio.SampleRate,
		},
		Data:           make([]int, audio.BufferSize*audio.NumOutputs),
		SourceBitDepth: 16,
	}

	for done := 0; done < frames; {
		n := frames - done
		if n > audio.BufferSize {
			n = audio.BufferSize
		}
		for ch := range planes {
			plane := planes[ch][:n]
			for i := range plane {
				plane[i] = 0
			}
		}
		block := [][]float32{planes[0][:n], planes[1][:n]}
		for _, source := range sources {
			source.Process(block)
		}
		e.transport.Advance(n)

		intBuf.Data = intBuf.Data[:n*audio.NumOutputs]
		for i := 0; i < n; i++ {
			intBuf.Data[i*2] = pcm16(planes[0][i])
			intBuf.Data[i*2+1] = pcm16(planes[1][i])
		}
		if err := enc.Write(intBuf); err != nil {
			return err
		}
		done += n
	}

	log.Printf("rendered %d bars (%.1fs) to %s", bars, seconds, path)
	return nil
}

func pcm16(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(v * 32767)
}
