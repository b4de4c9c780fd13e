package schema

import (
	"strconv"
	"strings"
)

// Render produces canonical schema text, prefixed by the array name when set.
//
//	name<a:int64 NOT NULL,b:string>[i=0:2,1000,0,j=0:*,*,0]
//
// Parse(Render(s)) yields a schema equal to s.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.Name)
	renderBody(&b, s)
	return b.String()
}

// RenderAnonymous renders s without the array name, the form accepted by
// operators that take a schema operand (cast, redimension, build, ...).
func RenderAnonymous(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	renderBody(&b, s)
	return b.String()
}

// String implements fmt.Stringer using Render.
func (s *Schema) String() string { return Render(s) }

func renderBody(b *strings.Builder, s *Schema) {
	b.WriteByte('<')
	for i, a := range s.Attributes {
		if i > 0 {
			b.WriteByte(',')
		}
		renderAttribute(b, a)
	}
	b.WriteString(">[")
	for i, d := range s.Dimensions {
		if i > 0 {
			b.WriteByte(',')
		}
		renderDimension(b, d)
	}
	b.WriteByte(']')
}

func renderAttribute(b *strings.Builder, a Attribute) {
	b.WriteString(a.Name)
	b.WriteByte(':')
	b.WriteString(string(a.Type))
	if !a.Nullable {
		b.WriteString(" NOT NULL")
	}
	if a.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(a.Default)
	}
	if a.Compression != "" {
		b.WriteString(" COMPRESSION '")
		b.WriteString(a.Compression)
		b.WriteByte('\'')
	}
}

func renderDimension(b *strings.Builder, d Dimension) {
	b.WriteString(d.Name)
	b.WriteByte('=')
	b.WriteString(renderCoordinate(d.Low, false))
	b.WriteByte(':')
	b.WriteString(renderCoordinate(d.High, true))
	b.WriteByte(',')
	if d.Chunk == 0 {
		b.WriteByte('*')
	} else {
		b.WriteString(strconv.FormatInt(d.Chunk, 10))
	}
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(d.Overlap, 10))
}

func renderCoordinate(v int64, high bool) string {
	switch {
	case high && v == MaxCoordinate:
		return "*"
	case v == MinCoordinate:
		return "-*"
	}
	return strconv.FormatInt(v, 10)
}
