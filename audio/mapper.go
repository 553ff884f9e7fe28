package audio

import "sort"

// Sample is a raw sample definition as it comes out of kit loading: a buffer
// bound to the MIDI note it was recorded at, optionally restricted to a
// velocity range and tagged with a round-robin index.
type Sample struct {
	Name   string
	Note   int
	Buffer *Buffer

	// VelLo/VelHi delimit a velocity layer (inclusive). Both zero means the
	// sample has no layer and matches any velocity.
	VelLo, VelHi int

	// RoundRobin groups alternate takes of the same note; -1 when unused.
	RoundRobin int
}

func (s Sample) layered() bool { return s.VelHi > 0 }

// SampleMapping is the immutable resolved binding for one note: which buffer
// to play and how many semitones to shift it.
type SampleMapping struct {
	Buffer     *Buffer
	BaseNote   int
	Transpose  int // semitones; note - BaseNote
	VelLo      int
	VelHi      int
	RoundRobin int
}

// SampleMapper resolves (note, velocity) to a SampleMapping. The map is built
// once from the raw sample set and cached for the instrument's lifetime; a
// changed sample set means building a new mapper.
type SampleMapper struct {
	byNote   [128][]SampleMapping
	layered  bool
	counters [128]int
	size     int
}

// BuildSampleMap sorts the raw samples by note and builds the lookup table.
// When any sample declares a velocity range the mapper works in layered mode:
// only notes with samples of their own resolve, by velocity. Otherwise every
// MIDI note maps to its nearest-neighbor sample, ties broken by input order.
func BuildSampleMap(samples []Sample) *SampleMapper {
	m := &SampleMapper{size: len(samples)}
	if len(samples) == 0 {
		return m
	}

	type indexed struct {
		Sample
		order int
	}
	sorted := make([]indexed, len(samples))
	for i, s := range samples {
		sorted[i] = indexed{s, i}
		if s.layered() {
			m.layered = true
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Note < sorted[j].Note })

	if m.layered {
		for _, s := range sorted {
			if s.Note < 0 || s.Note > 127 {
				continue
			}
			m.byNote[s.Note] = append(m.byNote[s.Note], mappingFor(s.Sample, s.Note))
		}
		m.sortRoundRobin()
		return m
	}

	for note := 0; note < 128; note++ {
		best := sorted[0]
		bestDist := abs(note - best.Note)
		for _, s := range sorted[1:] {
			d := abs(note - s.Note)
			if d < bestDist || (d == bestDist && s.order < best.order) {
				best, bestDist = s, d
			}
		}
		// Every sample sharing the winning base note is a candidate, so
		// round-robin variants survive the nearest-neighbor pass.
		for _, s := range sorted {
			if s.Note == best.Note {
				m.byNote[note] = append(m.byNote[note], mappingFor(s.Sample, note))
			}
		}
	}
	m.sortRoundRobin()
	return m
}

func mappingFor(s Sample, note int) SampleMapping {
	return SampleMapping{
		Buffer:     s.Buffer,
		BaseNote:   s.Note,
		Transpose:  note - s.Note,
		VelLo:      s.VelLo,
		VelHi:      s.VelHi,
		RoundRobin: s.RoundRobin,
	}
}

func (m *SampleMapper) sortRoundRobin() {
	for note := range m.byNote {
		cands := m.byNote[note]
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].RoundRobin < cands[j].RoundRobin
		})
	}
}

// Resolve picks the mapping for a note and velocity. It reports
// ErrInvalidMapping instead of failing silently when nothing is mapped.
// Repeated resolves for the same note cycle deterministically through the
// round-robin candidates in index order.
func (m *SampleMapper) Resolve(note, velocity int) (SampleMapping, error) {
	if note < 0 || note > 127 {
		return SampleMapping{}, ErrInvalidMapping
	}
	cands := m.byNote[note]
	if len(cands) == 0 {
		return SampleMapping{}, ErrInvalidMapping
	}

	matches := func(c SampleMapping) bool {
		return !layeredMapping(c) || (velocity >= c.VelLo && velocity <= c.VelHi)
	}
	if m.layered {
		// Exact velocity match first, else the nearest declared layer.
		// Counted in place so resolution stays allocation-free on the
		// render path.
		n := countMatching(cands, matches)
		if n == 0 {
			bestDist := -1
			for _, c := range cands {
				if d := velocityDistance(c, velocity); bestDist == -1 || d < bestDist {
					bestDist = d
				}
			}
			matches = func(c SampleMapping) bool {
				return velocityDistance(c, velocity) == bestDist
			}
			n = countMatching(cands, matches)
		}
		if n == 0 {
			return SampleMapping{}, ErrInvalidMapping
		}
		idx := m.counters[note] % n
		m.counters[note]++
		return nthMatching(cands, matches, idx), nil
	}

	idx := m.counters[note] % len(cands)
	m.counters[note]++
	return cands[idx], nil
}

func countMatching(cands []SampleMapping, match func(SampleMapping) bool) int {
	n := 0
	for _, c := range cands {
		if match(c) {
			n++
		}
	}
	return n
}

func nthMatching(cands []SampleMapping, match func(SampleMapping) bool, idx int) SampleMapping {
	for _, c := range cands {
		if match(c) {
			if idx == 0 {
				return c
			}
			idx--
		}
	}
	return SampleMapping{}
}

func layeredMapping(c SampleMapping) bool { return c.VelHi > 0 }

func velocityDistance(c SampleMapping, velocity int) int {
	if velocity < c.VelLo {
		return c.VelLo - velocity
	}
	if velocity > c.VelHi {
		return velocity - c.VelHi
	}
	return 0
}

// Size is the number of raw samples the map was built from.
func (m *SampleMapper) Size() int { return m.size }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
