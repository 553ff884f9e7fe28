package audio

import (
	"encoding/binary"
	"math"

	"github.com/ebitengine/oto/v3"
)

// OtoSink is an alternative output backend for systems without portaudio.
// oto pulls interleaved samples through an io.Reader, so the sink renders the
// planar engine output in bufferSize chunks and interleaves on the way out.
type OtoSink struct {
	sources   sourceSet
	transport *Transport
	ctx       *oto.Context
	player    *oto.Player

	planes [][]float32
}

func NewOtoSink(transport *Transport) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: numOutputs,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &OtoSink{transport: transport, ctx: ctx}
	s.planes = make([][]float32, numOutputs)
	for ch := range s.planes {
		s.planes[ch] = make([]float32, bufferSize)
	}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

func (s *OtoSink) AddSources(sources ...Source) {
	s.sources.add(sources)
}

func (s *OtoSink) Start() error {
	s.player.Play()
	return nil
}

func (s *OtoSink) Stop() error {
	return s.player.Close()
}

const bytesPerFrame = 4 * numOutputs

func (s *OtoSink) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	done := 0
	for done < frames {
		n := frames - done
		if n > bufferSize {
			n = bufferSize
		}
		for ch := range s.planes {
			plane := s.planes[ch][:n]
			for i := range plane {
				plane[i] = 0
			}
		}
		block := [][]float32{s.planes[0][:n], s.planes[1][:n]}
		for _, source := range s.sources.load() {
			source.Process(block)
		}
		s.transport.Advance(n)

		for i := 0; i < n; i++ {
			off := (done + i) * bytesPerFrame
			binary.LittleEndian.PutUint32(p[off:], math.Float32bits(s.planes[0][i]))
			binary.LittleEndian.PutUint32(p[off+4:], math.Float32bits(s.planes[1][i]))
		}
		done += n
	}
	return frames * bytesPerFrame, nil
}
