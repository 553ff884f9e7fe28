package audio

import (
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// Source renders audio into planar float32 output buffers.
type Source interface {
	Process([][]float32)
}

// sourceSet holds the sink's sources behind an atomic.Value so the control
// path can add devices while the stream is running.
type sourceSet struct {
	mu  sync.Mutex
	val atomic.Value // []Source
}

func (s *sourceSet) add(sources []Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, _ := s.val.Load().([]Source)
	all := make([]Source, 0, len(old)+len(sources))
	all = append(all, old...)
	all = append(all, sources...)
	s.val.Store(all)
}

func (s *sourceSet) load() []Source {
	v, _ := s.val.Load().([]Source)
	return v
}

// Sink drives the engine from a portaudio stream. It owns the transport
// clock: one Advance per callback, after the sources have rendered, so that
// during rendering the clock reads as the start of the current buffer.
type Sink struct {
	sources   sourceSet
	transport *Transport
	stream    *portaudio.Stream
}

func NewSink(transport *Transport) (*Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	s := &Sink{transport: transport}
	stream, err := portaudio.OpenDefaultStream(0, numOutputs, sampleRate, bufferSize, s.Process)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	s.stream = stream
	return s, nil
}

func (s *Sink) AddSources(sources ...Source) {
	s.sources.add(sources)
}

func (s *Sink) Start() error {
	return s.stream.Start()
}

func (s *Sink) Stop() error {
	s.stream.Close()
	portaudio.Terminate()
	return nil
}

func (s *Sink) Process(samples [][]float32) {
	for i := range samples {
		for j := range samples[i] {
			samples[i][j] = 0.
		}
	}
	for _, source := range s.sources.load() {
		source.Process(samples)
	}
	s.transport.Advance(len(samples[0]))
}
