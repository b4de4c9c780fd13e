package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports malformed schema text.
type SyntaxError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("schema: %s at offset %d in %q", e.Reason, e.Pos, e.Input)
}

// Parse reads schema text of the form
//
//	[name]<att:type [NOT NULL|NULL] [DEFAULT v] [COMPRESSION 'c'],...> [dim=lo:hi,chunk,overlap,...]
//
// Dimension items may also use the "dim=lo:hi:overlap:chunk" form and may be
// separated by ';'. A bare dimension name means 0:* with automatic chunking.
func Parse(text string) (*Schema, error) {
	p := &parser{src: text}
	s, err := p.schema()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *Schema {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

type parser struct {
	src string
	pos int
}

func (p *parser) fail(format string, args ...any) error {
	return &SyntaxError{Input: p.src, Pos: p.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.fail("expected %q", c)
	}
	p.pos++
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	if p.pos >= len(p.src) || !isIdentStart(p.src[p.pos]) {
		return "", p.fail("expected name")
	}
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// keyword consumes kw (case-insensitive) when it is the next word.
func (p *parser) keyword(kw string) bool {
	p.skipSpace()
	end := p.pos + len(kw)
	if end > len(p.src) || !strings.EqualFold(p.src[p.pos:end], kw) {
		return false
	}
	if end < len(p.src) && isIdentPart(p.src[end]) {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) schema() (*Schema, error) {
	s := &Schema{}
	if isIdentStart(p.peek()) {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		s.Name = name
	}
	if err := p.expect('<'); err != nil {
		return nil, err
	}
	for {
		a, err := p.attribute()
		if err != nil {
			return nil, err
		}
		s.Attributes = append(s.Attributes, a)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		break
	}
	if err := p.expect('['); err != nil {
		return nil, err
	}
	if p.peek() != ']' {
		for {
			d, err := p.dimension()
			if err != nil {
				return nil, err
			}
			s.Dimensions = append(s.Dimensions, d)
			if c := p.peek(); c == ',' || c == ';' {
				p.pos++
				continue
			}
			break
		}
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	if p.peek() != 0 {
		return nil, p.fail("unexpected trailing input")
	}
	return s, nil
}

func (p *parser) attribute() (Attribute, error) {
	name, err := p.ident()
	if err != nil {
		return Attribute{}, err
	}
	if err := p.expect(':'); err != nil {
		return Attribute{}, err
	}
	typ, err := p.ident()
	if err != nil {
		return Attribute{}, p.fail("expected type for attribute %q", name)
	}
	a := Attribute{Name: name, Type: Type(strings.ToLower(typ)), Nullable: true}
	for {
		switch {
		case p.keyword("NOT"):
			if !p.keyword("NULL") {
				return Attribute{}, p.fail("expected NULL after NOT")
			}
			a.Nullable = false
		case p.keyword("NULL"):
			a.Nullable = true
		case p.keyword("DEFAULT"):
			v, err := p.rawValue()
			if err != nil {
				return Attribute{}, err
			}
			a.Default = v
		case p.keyword("COMPRESSION"):
			v, err := p.rawValue()
			if err != nil {
				return Attribute{}, err
			}
			a.Compression = strings.Trim(v, "'")
		default:
			if c := p.peek(); c != ',' && c != '>' {
				return Attribute{}, p.fail("unexpected token in attribute %q", name)
			}
			return a, nil
		}
	}
}

// rawValue reads a quoted string or a run of characters up to a delimiter.
func (p *parser) rawValue() (string, error) {
	p.skipSpace()
	start := p.pos
	if p.pos < len(p.src) && p.src[p.pos] == '\'' {
		p.pos++
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			p.pos++
			if c == '\\' && p.pos < len(p.src) {
				p.pos++
				continue
			}
			if c == '\'' {
				return p.src[start:p.pos], nil
			}
		}
		return "", p.fail("unterminated string")
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == ',' || c == '>' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", p.fail("expected value")
	}
	return p.src[start:p.pos], nil
}

func (p *parser) dimension() (Dimension, error) {
	name, err := p.ident()
	if err != nil {
		return Dimension{}, err
	}
	d := Dimension{Name: name, Low: 0, High: MaxCoordinate}
	if p.peek() != '=' {
		return d, nil
	}
	p.pos++
	if d.Low, err = p.coordinate(MinCoordinate); err != nil {
		return Dimension{}, err
	}
	if err := p.expect(':'); err != nil {
		return Dimension{}, err
	}
	if d.High, err = p.coordinate(MaxCoordinate); err != nil {
		return Dimension{}, err
	}
	switch p.peek() {
	case ':':
		// lo:hi:overlap[:chunk]
		p.pos++
		if d.Overlap, err = p.integer(); err != nil {
			return Dimension{}, err
		}
		if p.peek() == ':' {
			p.pos++
			if d.Chunk, err = p.chunk(); err != nil {
				return Dimension{}, err
			}
		}
	case ',':
		// lo:hi,chunk,overlap; a following name starts the next dimension
		save := p.pos
		p.pos++
		if !p.numberAhead() {
			p.pos = save
			return d, nil
		}
		if d.Chunk, err = p.chunk(); err != nil {
			return Dimension{}, err
		}
		save = p.pos
		if p.peek() == ',' {
			p.pos++
			if !p.numberAhead() {
				p.pos = save
				return d, nil
			}
			if d.Overlap, err = p.integer(); err != nil {
				return Dimension{}, err
			}
		}
	}
	return d, nil
}

func (p *parser) numberAhead() bool {
	switch c := p.peek(); {
	case c == '*' || c == '?' || c == '-':
		return true
	case c >= '0' && c <= '9':
		return true
	}
	return false
}

func (p *parser) token() string {
	p.skipSpace()
	start := p.pos
	if p.pos < len(p.src) && (p.src[p.pos] == '-' || p.src[p.pos] == '+') {
		p.pos++
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '*' || c == '?' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) coordinate(star int64) (int64, error) {
	tok := p.token()
	if tok == "*" {
		return star, nil
	}
	if tok == "-*" {
		return MinCoordinate, nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, p.fail("invalid coordinate %q", tok)
	}
	return v, nil
}

func (p *parser) chunk() (int64, error) {
	tok := p.token()
	if tok == "*" || tok == "?" {
		return 0, nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || v < 0 {
		return 0, p.fail("invalid chunk size %q", tok)
	}
	return v, nil
}

func (p *parser) integer() (int64, error) {
	tok := p.token()
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, p.fail("invalid integer %q", tok)
	}
	return v, nil
}
