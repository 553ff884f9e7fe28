package audio

import (
	"errors"
	"testing"
)

func testBuf() *Buffer { return NewBuffer(1, 64, sampleRate) }

func TestMapperNearestNeighbor(t *testing.T) {
	bufLow, bufHigh := testBuf(), testBuf()
	m := BuildSampleMap([]Sample{
		{Name: "low", Note: 60, Buffer: bufLow, RoundRobin: -1},
		{Name: "high", Note: 67, Buffer: bufHigh, RoundRobin: -1},
	})

	tests := []struct {
		note      int
		wantBase  int
		wantTrans int
	}{
		{60, 60, 0},
		{62, 60, 2},
		{63, 60, 3},  // closer to 60
		{65, 67, -2}, // closer to 67
		{0, 60, -60},
		{127, 67, 60},
	}
	for _, test := range tests {
		got, err := m.Resolve(test.note, 100)
		if err != nil {
			t.Fatalf("note %d: %v", test.note, err)
		}
		if got.BaseNote != test.wantBase || got.Transpose != test.wantTrans {
			t.Errorf("note %d: want base %d transpose %d, got base %d transpose %d",
				test.note, test.wantBase, test.wantTrans, got.BaseNote, got.Transpose)
		}
	}
}

func TestMapperTieBreaksByInputOrder(t *testing.T) {
	first, second := testBuf(), testBuf()
	m := BuildSampleMap([]Sample{
		{Name: "first", Note: 60, Buffer: first, RoundRobin: -1},
		{Name: "second", Note: 64, Buffer: second, RoundRobin: -1},
	})

	// 62 is equidistant from both; the earlier declaration wins.
	got, err := m.Resolve(62, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got.Buffer != first {
		t.Errorf("tie broken wrong: want base 60, got base %d", got.BaseNote)
	}
}

func TestMapperVelocityLayers(t *testing.T) {
	soft, loud := testBuf(), testBuf()
	m := BuildSampleMap([]Sample{
		{Name: "soft", Note: 60, Buffer: soft, VelLo: 1, VelHi: 63, RoundRobin: -1},
		{Name: "loud", Note: 60, Buffer: loud, VelLo: 64, VelHi: 127, RoundRobin: -1},
	})

	got, err := m.Resolve(60, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got.Buffer != loud {
		t.Error("velocity 100 did not resolve to the loud layer")
	}

	got, err = m.Resolve(60, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got.Buffer != soft {
		t.Error("velocity 10 did not resolve to the soft layer")
	}

	// Layered mode resolves only declared notes.
	if _, err := m.Resolve(61, 100); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("expected ErrInvalidMapping for unmapped note, got %v", err)
	}
}

func TestMapperNearestDeclaredVelocity(t *testing.T) {
	low, high := testBuf(), testBuf()
	m := BuildSampleMap([]Sample{
		{Name: "low", Note: 60, Buffer: low, VelLo: 10, VelHi: 20, RoundRobin: -1},
		{Name: "high", Note: 60, Buffer: high, VelLo: 50, VelHi: 60, RoundRobin: -1},
	})

	// 70 sits in no declared layer; the nearest one wins.
	got, err := m.Resolve(60, 70)
	if err != nil {
		t.Fatal(err)
	}
	if got.Buffer != high {
		t.Error("velocity 70 did not fall back to the nearest layer")
	}
}

func TestMapperRoundRobinCycles(t *testing.T) {
	bufs := []*Buffer{testBuf(), testBuf(), testBuf()}
	// Declared out of order on purpose.
	m := BuildSampleMap([]Sample{
		{Name: "rr3", Note: 60, Buffer: bufs[2], RoundRobin: 3},
		{Name: "rr1", Note: 60, Buffer: bufs[0], RoundRobin: 1},
		{Name: "rr2", Note: 60, Buffer: bufs[1], RoundRobin: 2},
	})

	want := []*Buffer{bufs[0], bufs[1], bufs[2], bufs[0], bufs[1], bufs[2]}
	for i, w := range want {
		got, err := m.Resolve(60, 100)
		if err != nil {
			t.Fatal(err)
		}
		if got.Buffer != w {
			t.Fatalf("resolve %d: wrong round-robin candidate", i)
		}
	}
}

func TestMapperEmpty(t *testing.T) {
	m := BuildSampleMap(nil)
	if _, err := m.Resolve(60, 100); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("expected ErrInvalidMapping, got %v", err)
	}
	if _, err := m.Resolve(-1, 100); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("expected ErrInvalidMapping for out-of-range note, got %v", err)
	}
}
