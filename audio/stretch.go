package audio

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	// Shifts below this are inaudible as a duration error; the source buffer
	// is returned unchanged.
	stretchThreshold = 0.1

	// Cached entries above this count are evicted FIFO.
	defaultStretchLimit = 100
)

type stretchKey struct {
	frames   int
	rate     int
	channels int
	semis    int // semitones rounded to the nearest 0.5, stored doubled
}

// stretchEntry is either pending (buf nil, computation underway) or resolved.
// The pending placeholder is what stops two concurrent triggers from starting
// the same stretch twice.
type stretchEntry struct {
	buf *Buffer
}

// TimeStretchCache memoizes pitch-shifted, duration-preserving copies of
// source buffers. Lookup is lock-free (copy-on-write map behind an
// atomic.Value) so the render path can consult it; the actual stretching runs
// on a background worker and is picked up by later triggers.
type TimeStretchCache struct {
	entries atomic.Value
	mu      sync.Mutex // serializes map writers
	order   []stretchKey
	limit   int
	reqs    chan stretchReq
	quit    chan struct{}
}

type stretchReq struct {
	buf   *Buffer
	semis float64
	key   stretchKey
}

func NewTimeStretchCache(limit int) *TimeStretchCache {
	if limit <= 0 {
		limit = defaultStretchLimit
	}
	c := &TimeStretchCache{
		limit: limit,
		reqs:  make(chan stretchReq, 64),
		quit:  make(chan struct{}),
	}
	c.entries.Store(map[stretchKey]*stretchEntry{})
	go c.worker()
	return c
}

func (c *TimeStretchCache) Close() {
	close(c.quit)
}

// GetOrCreate returns the duration-correct, pitch-shifted version of buf when
// it is cached, or buf itself with ready=false while the stretch computes in
// the background. The caller is expected to fall back to plain playback-rate
// shifting for that one trigger; the next trigger at the same shift gets the
// corrected buffer.
func (c *TimeStretchCache) GetOrCreate(buf *Buffer, semitones float64) (*Buffer, bool) {
	if buf == nil || math.Abs(semitones) < stretchThreshold {
		return buf, true
	}
	key := keyFor(buf, semitones)
	m := c.entries.Load().(map[stretchKey]*stretchEntry)
	if e, ok := m[key]; ok {
		if e.buf != nil {
			return e.buf, true
		}
		return buf, false
	}
	select {
	case c.reqs <- stretchReq{buf: buf, semis: semitones, key: key}:
	default:
		// Worker backlog is full; a later trigger will request it again.
	}
	return buf, false
}

// Len is the number of resolved cache entries.
func (c *TimeStretchCache) Len() int {
	n := 0
	for _, e := range c.entries.Load().(map[stretchKey]*stretchEntry) {
		if e.buf != nil {
			n++
		}
	}
	return n
}

func keyFor(buf *Buffer, semitones float64) stretchKey {
	return stretchKey{
		frames:   buf.Frames(),
		rate:     int(buf.Rate),
		channels: buf.Channels(),
		semis:    int(math.Round(semitones * 2)),
	}
}

func (c *TimeStretchCache) worker() {
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.reqs:
			if !c.markPending(req.key) {
				continue
			}
			semis := float64(req.key.semis) / 2
			c.resolve(req.key, stretchBuffer(req.buf, semis))
		}
	}
}

// markPending inserts the pending placeholder; false when the key is already
// pending or resolved (duplicate request).
func (c *TimeStretchCache) markPending(key stretchKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.entries.Load().(map[stretchKey]*stretchEntry)
	if _, ok := old[key]; ok {
		return false
	}
	c.entries.Store(copyWith(old, key, &stretchEntry{}))
	return true
}

func (c *TimeStretchCache) resolve(key stretchKey, buf *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.entries.Load().(map[stretchKey]*stretchEntry)
	m := copyWith(old, key, &stretchEntry{buf: buf})
	c.order = append(c.order, key)
	for len(c.order) > c.limit {
		delete(m, c.order[0])
		c.order = c.order[1:]
	}
	c.entries.Store(m)
}

func copyWith(old map[stretchKey]*stretchEntry, key stretchKey, e *stretchEntry) map[stretchKey]*stretchEntry {
	m := make(map[stretchKey]*stretchEntry, len(old)+1)
	for k, v := range old {
		m[k] = v
	}
	m[key] = e
	return m
}

// stretchBuffer pitch-shifts src by the given semitones while preserving its
// duration: the source is rendered at the target playback rate into a
// shorter or longer intermediate, which is then resampled back to the original
// frame count. Both passes use linear interpolation.
func stretchBuffer(src *Buffer, semitones float64) *Buffer {
	rate := playbackRate(semitones)
	frames := src.Frames()
	channels := src.Channels()

	rlen := int(math.Round(float64(frames) / rate))
	if rlen < 2 {
		rlen = 2
	}
	rendered := NewBuffer(channels, rlen, src.Rate)
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < rlen; i++ {
			rendered.Data[ch][i] = src.Sample(ch, float64(i)*rate)
		}
	}

	out := NewBuffer(channels, frames, src.Rate)
	step := float64(rlen-1) / float64(frames-1)
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < frames; i++ {
			out.Data[ch][i] = rendered.Sample(ch, float64(i)*step)
		}
	}
	return out
}
