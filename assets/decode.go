package assets

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/youpy/go-riff"
	wav "github.com/youpy/go-wav"

	"github.com/pulsedaw/pulse/audio"
)

// Decode reads a WAV, MP3 or OGG file into a planar float64 buffer. Files
// with more than two channels keep only the first two.
func Decode(path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWav(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg":
		return decodeOgg(f)
	default:
		return nil, fmt.Errorf("unsupported sample format: %s", filepath.Ext(path))
	}
}

func decodeWav(f riff.RIFFReader) (*audio.Buffer, error) {
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, err
	}
	channels := int(format.NumChannels)
	if channels > 2 {
		channels = 2
	}
	data := make([][]float64, channels)

	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, sample := range samples {
			for ch := 0; ch < channels; ch++ {
				data[ch] = append(data[ch], r.FloatValue(sample, uint(ch)))
			}
		}
	}
	return &audio.Buffer{Data: data, Rate: float64(format.SampleRate)}, nil
}

// go-mp3 always yields 16-bit little-endian stereo frames.
func decodeMP3(f io.Reader) (*audio.Buffer, error) {
	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}

	frames := len(raw) / 4
	data := [][]float64{make([]float64, frames), make([]float64, frames)}
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		data[0][i] = float64(l) / (1 << 15)
		data[1][i] = float64(r) / (1 << 15)
	}
	return &audio.Buffer{Data: data, Rate: float64(d.SampleRate())}, nil
}

func decodeOgg(f io.Reader) (*audio.Buffer, error) {
	interleaved, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, err
	}
	channels := format.Channels
	keep := channels
	if keep > 2 {
		keep = 2
	}
	frames := len(interleaved) / channels
	data := make([][]float64, keep)
	for ch := range data {
		data[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < keep; ch++ {
			data[ch][i] = float64(interleaved[i*channels+ch])
		}
	}
	return &audio.Buffer{Data: data, Rate: float64(format.SampleRate)}, nil
}
