package expression

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed expression string.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse expression %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

// Parse parses an expression string. Whitespace between tokens is ignored.
func Parse(s string) (Expression, error) {
	p := &parser{input: s}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return x, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(s string) Expression {
	x, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return x
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool  { return p.pos >= len(p.input) }
func (p *parser) peek() byte { return p.input[p.pos] }

func (p *parser) errorf(format string, args ...interface{}) *ParseError {
	return &ParseError{Input: p.input, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseExpr() (Expression, error) {
	name, opts, err := p.parseTerm("repository name")
	if err != nil {
		return nil, err
	}
	var x Expression = &Repository{Name: name, Options: opts}

	for {
		p.skipSpace()
		if p.eof() {
			return x, nil
		}
		switch op := p.peek(); op {
		case '>':
			p.pos++
			space, opts, err := p.parseTerm("project space")
			if err != nil {
				return nil, err
			}
			x = &Translate{Inner: x, ToProjectSpace: space, Options: opts}
		case '|':
			p.pos++
			editor, opts, err := p.parseTerm("editor name")
			if err != nil {
				return nil, err
			}
			x = &Edit{Inner: x, Editor: editor, Options: opts}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseTerm(what string) (string, Options, error) {
	p.skipSpace()
	name := p.scanIdentifier()
	if name == "" {
		if p.eof() {
			return "", Options{}, p.errorf("expected %s, got end of input", what)
		}
		return "", Options{}, p.errorf("expected %s, got %q", what, p.peek())
	}
	p.skipSpace()
	if p.eof() || p.peek() != '(' {
		return name, Options{}, nil
	}
	opts, err := p.parseOptionList()
	return name, opts, err
}

func (p *parser) parseOptionList() (Options, error) {
	p.pos++ // '('
	var items []Option
	for {
		p.skipSpace()
		start := p.pos
		key := p.scanIdentifier()
		if key == "" {
			return Options{}, p.errorf("expected option key")
		}
		for _, it := range items {
			if it.Key == key {
				p.pos = start
				return Options{}, p.errorf("duplicate option %q", key)
			}
		}
		p.skipSpace()
		if p.eof() || p.peek() != '=' {
			return Options{}, p.errorf("expected '=' after option %q", key)
		}
		p.pos++
		p.skipSpace()
		value, err := p.scanValue()
		if err != nil {
			return Options{}, err
		}
		items = append(items, Option{Key: key, Value: value})

		p.skipSpace()
		if p.eof() {
			return Options{}, p.errorf("unterminated option list")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return Options{items: items}, nil
		default:
			return Options{}, p.errorf("expected ',' or ')', got %q", p.peek())
		}
	}
}

func (p *parser) scanIdentifier() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.peek()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) scanValue() (string, error) {
	if p.eof() {
		return "", p.errorf("expected option value, got end of input")
	}
	if p.peek() != '"' {
		start := p.pos
		for !p.eof() && isBarewordByte(p.peek()) {
			p.pos++
		}
		if p.pos == start {
			return "", p.errorf("expected option value, got %q", p.peek())
		}
		return p.input[start:p.pos], nil
	}

	p.pos++ // opening quote
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated quoted value")
		}
		c := p.peek()
		switch c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.eof() || (p.peek() != '"' && p.peek() != '\\') {
				return "", p.errorf("invalid escape in quoted value")
			}
			b.WriteByte(p.peek())
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
}
