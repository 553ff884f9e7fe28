package shell

import (
	"path/filepath"
	"strconv"
	"strings"
)

// SampleName is the metadata encoded in a sample filename. Kit directories
// use underscore-separated fields after the instrument name:
//
//	piano_c4.wav            root note c4
//	piano_c4_v090.wav       declared velocity 90
//	piano_c4_v064-127.wav   velocity layer 64..127
//	piano_c4_v090_rr2.wav   second round-robin variation
//
// Fields other than the instrument name are optional and may appear in any
// order.
type SampleName struct {
	Instrument string
	Note       int // -1 when the name carries no note
	VelLo      int
	VelHi      int // 0 when the name carries no velocity
	RoundRobin int
}

// ParseSampleName decodes the conventions above from a file path. Unrecognized
// fields become part of the instrument name, so free-form names like
// "kick_tight.wav" still load.
func ParseSampleName(path string) SampleName {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	out := SampleName{Note: -1}
	var nameParts []string
	for _, part := range strings.Split(base, "_") {
		switch {
		case parseNotePart(part, &out):
		case parseVelocityPart(part, &out):
		case parseRoundRobinPart(part, &out):
		default:
			nameParts = append(nameParts, part)
		}
	}
	out.Instrument = strings.Join(nameParts, "_")
	return out
}

func parseNotePart(part string, out *SampleName) bool {
	if out.Note >= 0 {
		return false
	}
	n, ok := NoteNumber(part)
	if !ok {
		return false
	}
	out.Note = n
	return true
}

// v090 declares a single velocity, v064-127 a full layer range.
func parseVelocityPart(part string, out *SampleName) bool {
	if out.VelHi > 0 || len(part) < 2 || (part[0] != 'v' && part[0] != 'V') {
		return false
	}
	lo, hi, found := strings.Cut(part[1:], "-")
	loN, err := strconv.Atoi(lo)
	if err != nil || loN < 1 || loN > 127 {
		return false
	}
	hiN := loN
	if found {
		hiN, err = strconv.Atoi(hi)
		if err != nil || hiN < loN || hiN > 127 {
			return false
		}
	}
	out.VelLo, out.VelHi = loN, hiN
	return true
}

func parseRoundRobinPart(part string, out *SampleName) bool {
	if out.RoundRobin > 0 {
		return false
	}
	s := strings.ToLower(part)
	if !strings.HasPrefix(s, "rr") {
		return false
	}
	n, err := strconv.Atoi(s[2:])
	if err != nil || n < 1 {
		return false
	}
	out.RoundRobin = n
	return true
}
