// Package waveform converts raw oscilloscope sample codes into calibrated
// voltages and times.
package waveform

import (
	"fmt"
	"strconv"
	"strings"
)

// preambleFields is the number of comma-separated fields in a ":WAV:PRE?"
// reply. Fields 0 and 1 (format and acquisition type) are not used.
const preambleFields = 10

// Preamble describes how to convert the raw codes of one capture into
// physical units.
type Preamble struct {
	Points     int     `json:"points"`
	Count      int     `json:"count"`
	XIncrement float64 `json:"x_increment"`
	XOrigin    float64 `json:"x_origin"`
	XReference float64 `json:"x_reference"`
	YIncrement float64 `json:"y_increment"`
	YOrigin    int     `json:"y_origin"`
	YReference int     `json:"y_reference"`
}

// MalformedPreambleError reports a preamble reply that could not be parsed.
type MalformedPreambleError struct {
	Text  string
	Field string
	Err   error
}

func (e *MalformedPreambleError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed preamble %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("malformed preamble %q: field %s: %v", e.Text, e.Field, e.Err)
}

func (e *MalformedPreambleError) Unwrap() error { return e.Err }

// Parse decodes a ":WAV:PRE?" reply.
func Parse(text string) (Preamble, error) {
	elems := strings.Split(strings.TrimSpace(text), ",")
	if len(elems) < preambleFields {
		return Preamble{}, &MalformedPreambleError{
			Text: text,
			Err:  fmt.Errorf("got %d fields, want %d", len(elems), preambleFields),
		}
	}

	p := preambleParser{text: text, elems: elems}
	pre := Preamble{
		Points:     p.int(2, "points"),
		Count:      p.int(3, "count"),
		XIncrement: p.float(4, "x_increment"),
		XOrigin:    p.float(5, "x_origin"),
		XReference: p.float(6, "x_reference"),
		YIncrement: p.float(7, "y_increment"),
		YOrigin:    p.int(8, "y_origin"),
		YReference: p.int(9, "y_reference"),
	}
	if p.err != nil {
		return Preamble{}, p.err
	}
	if pre.Points < 0 {
		return Preamble{}, &MalformedPreambleError{Text: text, Field: "points", Err: fmt.Errorf("negative point count %d", pre.Points)}
	}
	return pre, nil
}

// preambleParser keeps the first field error so Parse reads as a list.
type preambleParser struct {
	text  string
	elems []string
	err   error
}

func (p *preambleParser) int(i int, name string) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(p.elems[i]))
	if err != nil {
		p.err = &MalformedPreambleError{Text: p.text, Field: name, Err: err}
	}
	return v
}

func (p *preambleParser) float(i int, name string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.elems[i]), 64)
	if err != nil {
		p.err = &MalformedPreambleError{Text: p.text, Field: name, Err: err}
	}
	return v
}

// Normalize maps raw codes to volts: (code - (YOrigin + YReference)) * YIncrement.
func (p Preamble) Normalize(raw []byte) []float64 {
	offset := float64(p.YOrigin + p.YReference)
	out := make([]float64, len(raw))
	for i, c := range raw {
		out[i] = (float64(c) - offset) * p.YIncrement
	}
	return out
}

// TimeAxis returns Points sample times starting at zero.
func (p Preamble) TimeAxis() []float64 {
	return p.TimeAxisFrom(0)
}

// TimeAxisFrom returns Points sample times starting at origin.
func (p Preamble) TimeAxisFrom(origin float64) []float64 {
	if p.Points <= 0 {
		return []float64{}
	}
	out := make([]float64, p.Points)
	for i := range out {
		out[i] = origin + float64(i)*p.XIncrement
	}
	return out
}
