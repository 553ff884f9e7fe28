// Package assets decodes sample files into engine buffers and keeps them
// around keyed by path. It is the engine's decoded-PCM provider: decoding
// happens here, off the render path, and the engine only ever reads the
// resulting buffers.
package assets

import (
	"fmt"
	"sync"

	"github.com/pulsedaw/pulse/audio"
)

type Store struct {
	mu     sync.RWMutex
	sounds map[string]*audio.Buffer
}

func NewStore() *Store {
	return &Store{sounds: make(map[string]*audio.Buffer)}
}

// Load decodes the file at path unless it is already cached.
func (s *Store) Load(path string) (*audio.Buffer, error) {
	s.mu.RLock()
	buf, ok := s.sounds[path]
	s.mu.RUnlock()
	if ok {
		return buf, nil
	}

	buf, err := Decode(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	s.mu.Lock()
	s.sounds[path] = buf
	s.mu.Unlock()
	return buf, nil
}

// Get looks up a previously loaded buffer by its id.
func (s *Store) Get(id string) (*audio.Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf, ok := s.sounds[id]
	return buf, ok
}

// Put registers an already decoded buffer, e.g. one produced in memory.
func (s *Store) Put(id string, buf *audio.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sounds[id] = buf
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sounds)
}
