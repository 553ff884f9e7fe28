package shell

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  *Command
	}{
		{
			"set piano env.release 0.2",
			&Command{Name: "set", Args: []Node{
				Identifier{"piano"}, Identifier{"env.release"}, Float{0.2},
			}},
		},
		{
			"play piano 4 [c4 . e4 g4] 8n",
			&Command{Name: "play", Args: []Node{
				Identifier{"piano"},
				Int{4},
				Array{Nodes: []Node{
					Note{Name: "c4", Number: 60},
					Rest{},
					Note{Name: "e4", Number: 64},
					Note{Name: "g4", Number: 67},
				}},
				Duration{"8n"},
			}},
		},
		{
			`load-sound piano "kick 2.wav" c1`,
			&Command{Name: "load-sound", Args: []Node{
				Identifier{"piano"}, String{"kick 2.wav"}, Note{Name: "c1", Number: 24},
			}},
		},
		{
			"loop beat drums 8 [36 [38 38] . 42]",
			&Command{Name: "loop", Args: []Node{
				Identifier{"beat"},
				Identifier{"drums"},
				Int{8},
				Array{Nodes: []Node{
					Int{36},
					Array{Nodes: []Node{Int{38}, Int{38}}},
					Rest{},
					Int{42},
				}},
			}},
		},
		{
			"bpm 120",
			&Command{Name: "bpm", Args: []Node{Int{120}}},
		},
		{
			"set piano level -6.5",
			&Command{Name: "set", Args: []Node{
				Identifier{"piano"}, Identifier{"level"}, Float{-6.5},
			}},
		},
		{"", nil},
		{"   ", nil},
	}
	for _, test := range tests {
		got, err := Parse(test.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", test.input, err)
			continue
		}
		if !reflect.DeepEqual(test.want, got) {
			t.Errorf("Parse(%q):\nwant: %+v\ngot:  %+v", test.input, test.want, got)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"4 piano",     // command name must be an identifier
		"play [1 2",   // unterminated array
		`f "no close`, // unterminated string
	} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q): expected error", input)
		}
	}
}
