package shell

import (
	"reflect"
	"testing"
)

func TestParseSampleName(t *testing.T) {
	tests := []struct {
		path string
		want SampleName
	}{
		{
			"piano_c4.wav",
			SampleName{Instrument: "piano", Note: 60},
		},
		{
			"samples/piano_c4_v090.wav",
			SampleName{Instrument: "piano", Note: 60, VelLo: 90, VelHi: 90},
		},
		{
			"piano_c4_v064-127.wav",
			SampleName{Instrument: "piano", Note: 60, VelLo: 64, VelHi: 127},
		},
		{
			"piano_c4_v090_rr2.wav",
			SampleName{Instrument: "piano", Note: 60, VelLo: 90, VelHi: 90, RoundRobin: 2},
		},
		{
			"piano_a#3_rr1.ogg",
			SampleName{Instrument: "piano", Note: 58, RoundRobin: 1},
		},
		{
			// Unrecognized fields stay part of the name.
			"kick_tight.wav",
			SampleName{Instrument: "kick_tight", Note: -1},
		},
		{
			"snare.wav",
			SampleName{Instrument: "snare", Note: -1},
		},
		{
			// Field order does not matter.
			"rr3_v010-063_c2_epiano.mp3",
			SampleName{Instrument: "epiano", Note: 36, VelLo: 10, VelHi: 63, RoundRobin: 3},
		},
		{
			// Out-of-range velocity is not a velocity field.
			"pad_v900.wav",
			SampleName{Instrument: "pad_v900", Note: -1},
		},
	}
	for _, test := range tests {
		if got := ParseSampleName(test.path); !reflect.DeepEqual(test.want, got) {
			t.Errorf("ParseSampleName(%q):\nwant: %+v\ngot:  %+v", test.path, test.want, got)
		}
	}
}
