// Package vmath provides the small value types carried by variants and
// attributes: vectors, quaternions, colors, rects, and matrices. All types
// are plain structs with value semantics; textual form is space-separated
// components that round-trip exactly.
package vmath

import (
	"strconv"
	"strings"
)

func ftoa(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func atof(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

// splitFloats parses exactly n space-separated float components.
func splitFloats(s string, n int) ([]float32, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, &ParseError{Text: s, Want: n, Got: len(fields)}
	}
	out := make([]float32, n)
	for i, f := range fields {
		v, err := atof(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// splitInts parses exactly n space-separated int components.
func splitInts(s string, n int) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, &ParseError{Text: s, Want: n, Got: len(fields)}
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ParseError reports a component-count mismatch while parsing a value type.
type ParseError struct {
	Text string
	Want int
	Got  int
}

func (e *ParseError) Error() string {
	return "vmath: expected " + strconv.Itoa(e.Want) + " components, got " +
		strconv.Itoa(e.Got) + " in " + strconv.Quote(e.Text)
}

func joinFloats(vals ...float32) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(ftoa(v))
	}
	return b.String()
}

func joinInts(vals ...int) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// Lerp interpolates between a and b by t in [0, 1].
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
