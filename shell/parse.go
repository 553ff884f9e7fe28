package shell

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is an argument in a parsed command.
type Node interface{ node() }

type Identifier struct{ Value string }

type Int struct{ Value int }

type Float struct{ Value float64 }

type String struct{ Value string }

// Note is a note-name literal resolved to its MIDI number.
type Note struct {
	Name   string
	Number int
}

// Duration is a musical duration literal like "4n", "8t" or "2m.".
type Duration struct{ Value string }

// Rest is the '.' placeholder inside a pattern.
type Rest struct{}

type Array struct{ Nodes []Node }

func (Identifier) node() {}
func (Int) node()        {}
func (Float) node()      {}
func (String) node()     {}
func (Note) node()       {}
func (Duration) node()   {}
func (Rest) node()       {}
func (Array) node()      {}

// Command is a single REPL line: a command name followed by arguments.
type Command struct {
	Name string
	Args []Node
}

// Parse lexes and parses one REPL line. Empty lines yield a nil command.
func Parse(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseCommand()
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != typeEOF {
		p.pos++
	}
	return t
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) parseCommand() (*Command, error) {
	name := p.next()
	if name.typ != typeIdentifier {
		return nil, fmt.Errorf("expected command name, got %q", name.text)
	}
	cmd := &Command{Name: name.text}
	for p.peek().typ != typeEOF {
		arg, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		cmd.Args = append(cmd.Args, arg)
	}
	return cmd, nil
}

func (p *parser) parseNode() (Node, error) {
	switch t := p.next(); t.typ {
	case typeInt:
		v, err := strconv.Atoi(t.text)
		if err != nil {
			return nil, err
		}
		return Int{v}, nil
	case typeFloat:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, err
		}
		return Float{v}, nil
	case typeString:
		return String{strings.Trim(t.text, `"`)}, nil
	case typeNote:
		n, ok := NoteNumber(t.text)
		if !ok {
			return nil, fmt.Errorf("note out of range: %s", t.text)
		}
		return Note{Name: strings.ToLower(t.text), Number: n}, nil
	case typeDuration:
		return Duration{t.text}, nil
	case typeRest:
		return Rest{}, nil
	case typeIdentifier:
		return Identifier{t.text}, nil
	case typeLBracket:
		return p.parseArray()
	default:
		return nil, fmt.Errorf("unexpected token %q", t.text)
	}
}

func (p *parser) parseArray() (Node, error) {
	var arr Array
	for {
		switch p.peek().typ {
		case typeRBracket:
			p.next()
			return arr, nil
		case typeComma:
			p.next()
		case typeEOF:
			return nil, fmt.Errorf("unterminated array")
		default:
			n, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			arr.Nodes = append(arr.Nodes, n)
		}
	}
}
