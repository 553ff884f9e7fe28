package shell

import (
	"reflect"
	"testing"
)

func tokenTypes(tokens []token) []tokenType {
	types := make([]tokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.typ
	}
	return types
}

func TestLex(t *testing.T) {
	tests := []struct {
		input string
		want  []tokenType
	}{
		{
			"play piano 4 [c4 . e4 g4] 8n",
			[]tokenType{typeIdentifier, typeIdentifier, typeInt, typeLBracket,
				typeNote, typeRest, typeNote, typeNote, typeRBracket, typeDuration, typeEOF},
		},
		{
			"set piano env.release 0.2",
			[]tokenType{typeIdentifier, typeIdentifier, typeIdentifier, typeFloat, typeEOF},
		},
		{
			`load-sound piano "kick 2.wav" c1`,
			[]tokenType{typeIdentifier, typeIdentifier, typeString, typeNote, typeEOF},
		},
		{
			"bpm 120",
			[]tokenType{typeIdentifier, typeInt, typeEOF},
		},
		{
			"set piano level -6.5",
			[]tokenType{typeIdentifier, typeIdentifier, typeIdentifier, typeFloat, typeEOF},
		},
		{
			"x a#3 bb2 4n. 8t",
			[]tokenType{typeIdentifier, typeNote, typeNote, typeDuration, typeDuration, typeEOF},
		},
		{
			"f [1, 2, 3]",
			[]tokenType{typeIdentifier, typeLBracket, typeInt, typeComma, typeInt,
				typeComma, typeInt, typeRBracket, typeEOF},
		},
		{
			"f .5",
			[]tokenType{typeIdentifier, typeFloat, typeEOF},
		},
	}
	for _, test := range tests {
		tokens, err := lex(test.input)
		if err != nil {
			t.Errorf("lex(%q): %v", test.input, err)
			continue
		}
		if got := tokenTypes(tokens); !reflect.DeepEqual(test.want, got) {
			t.Errorf("lex(%q):\nwant: %v\ngot:  %v", test.input, test.want, got)
		}
	}
}

func TestLexErrors(t *testing.T) {
	for _, input := range []string{
		`f "unterminated`,
		"f !",
		"f $x",
	} {
		if _, err := lex(input); err == nil {
			t.Errorf("lex(%q): expected error", input)
		}
	}
}

func TestNoteNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"c4", 60, true},
		{"C4", 60, true},
		{"a4", 69, true},
		{"a#3", 58, true},
		{"bb2", 46, true},
		{"eb2", 39, true},
		{"c-1", 0, true},
		{"g9", 127, true},
		{"a9", 0, false}, // above the MIDI range
		{"h4", 0, false},
		{"c", 0, false},
		{"c#", 0, false},
		{"", 0, false},
	}
	for _, test := range tests {
		got, ok := NoteNumber(test.name)
		if ok != test.ok {
			t.Errorf("NoteNumber(%q): ok = %v, want %v", test.name, ok, test.ok)
			continue
		}
		if ok && got != test.want {
			t.Errorf("NoteNumber(%q): want %v, got %v", test.name, test.want, got)
		}
	}
}
