// Package shell implements the REPL command language: a small lexer and
// parser for commands like
//
//	play piano 4 [c4 . e4 g4] 8n
//	set piano env.release 0.2
//	load-sound piano "kick 2.wav" c1
//
// plus the sample-filename conventions used when loading kits.
package shell

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	typeUnknown tokenType = iota
	typeInt
	typeFloat
	typeIdentifier
	typeString
	typeNote
	typeDuration
	typeRest
	typeLBracket
	typeRBracket
	typeComma
	typeEOF
)

const eof = -1

var simpleTokens = map[rune]tokenType{
	'[': typeLBracket,
	']': typeRBracket,
	',': typeComma,
}

type token struct {
	typ  tokenType
	pos  int
	text string
}

func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	return l.lex()
}

type lexer struct {
	input string

	width int
	start int
	pos   int

	tokens []token
	err    error
}

func (l *lexer) lex() ([]token, error) {
	for {
		switch r := l.next(); {
		case r == eof:
			l.yieldToken(typeEOF)
			return l.tokens, l.err
		case unicode.IsLetter(r) || isWordRune(r) || r == '-':
			l.lexWord(r)
		case r == '"':
			l.lexString()
		case r == '.':
			l.lexRest()
		case r == ' ':
			l.ignoreSpace()
		default:
			if typ, ok := simpleTokens[r]; ok {
				l.yieldToken(typ)
			} else {
				l.invalidChar(r)
			}
		}
		if l.err != nil {
			return l.tokens, l.err
		}
	}
}

func (l *lexer) next() rune {
	if len(l.input) == l.pos {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += l.width
	return r
}

func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) yieldToken(t tokenType) {
	s := l.input[l.start:l.pos]
	l.tokens = append(l.tokens, token{t, l.pos, s})
	l.start = l.pos
	l.width = 0
}

func (l *lexer) errorf(format string, args ...interface{}) {
	l.err = fmt.Errorf(format, args...)
}

func (l *lexer) invalidChar(r rune) {
	l.errorf("unexpected character: %#U", r)
}

func (l *lexer) ignoreSpace() {
	for l.peek() == ' ' {
		l.next()
	}
	l.start = l.pos
}

// lexWord consumes a run of word runes and classifies it afterwards: number,
// duration literal, note name or plain identifier. Classifying after the fact
// keeps the lexer simple in the face of words like "a4" (a note), "4n" (a
// duration) and "env.release" (an identifier).
func (l *lexer) lexWord(first rune) {
	for {
		r := l.next()
		if isWordRune(r) || unicode.IsLetter(r) || (r == '.' && isDigit(l.peek())) {
			continue
		}
		if r == '.' && isIdentRune(l.peek()) {
			continue
		}
		if r == '.' && dottedPattern.MatchString(l.input[l.start:l.pos]) {
			// trailing dot of a dotted duration like "4n."
			break
		}
		l.backup()
		break
	}

	word := l.input[l.start:l.pos]
	switch {
	case intPattern.MatchString(word):
		l.yieldToken(typeInt)
	case floatPattern.MatchString(word):
		l.yieldToken(typeFloat)
	case durationPattern.MatchString(word):
		l.yieldToken(typeDuration)
	case notePattern.MatchString(word):
		l.yieldToken(typeNote)
	case identPattern.MatchString(word):
		l.yieldToken(typeIdentifier)
	default:
		l.errorf("invalid token %q at position %d", word, l.start)
	}
}

func (l *lexer) lexString() {
	for {
		switch l.next() {
		case '"':
			l.yieldToken(typeString)
			return
		case eof:
			l.errorf("unterminated string at position %d", l.start)
			return
		}
	}
}

// A lone '.' is a rest inside patterns; '.5' is a float.
func (l *lexer) lexRest() {
	if isDigit(l.peek()) {
		l.lexWord('.')
		return
	}
	l.yieldToken(typeRest)
}

var (
	intPattern      = regexp.MustCompile(`^-?[0-9]+$`)
	floatPattern    = regexp.MustCompile(`^-?[0-9]*\.[0-9]+$`)
	durationPattern = regexp.MustCompile(`^[0-9]+[ntm]\.?$`)
	dottedPattern   = regexp.MustCompile(`^[0-9]+[ntm]\.$`)
	notePattern     = regexp.MustCompile(`^[a-gA-G][#b]?-?[0-9]$`)
	identPattern    = regexp.MustCompile(`^[a-zA-Z_-][a-zA-Z0-9._#-]*$`)
)

func isWordRune(r rune) bool {
	return isDigit(r) || r == '_' || r == '#'
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

var noteOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// NoteNumber converts a note name like "c4", "a#3" or "eb2" to its MIDI note
// number (c4 = 60).
func NoteNumber(name string) (int, bool) {
	s := strings.ToLower(name)
	if len(s) < 2 {
		return 0, false
	}
	offset, ok := noteOffsets[s[0]]
	if !ok {
		return 0, false
	}
	rest := s[1:]
	switch rest[0] {
	case '#':
		offset++
		rest = rest[1:]
	case 'b':
		offset--
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return 0, false
	}
	neg := false
	if rest[0] == '-' {
		neg = true
		rest = rest[1:]
	}
	if len(rest) != 1 || !isDigit(rune(rest[0])) {
		return 0, false
	}
	octave := int(rest[0] - '0')
	if neg {
		octave = -octave
	}
	n := (octave+1)*12 + offset
	if n < 0 || n > 127 {
		return 0, false
	}
	return n, true
}
