package waveform

import (
	"fmt"
	"strings"
)

// TimeBase selects where a decoded time axis starts.
type TimeBase int

const (
	// RelativeTime starts the axis at zero. This is the default.
	RelativeTime TimeBase = iota
	// ReferencedTime offsets the axis by the preamble's x reference.
	ReferencedTime
)

func (b TimeBase) String() string {
	switch b {
	case ReferencedTime:
		return "reference"
	default:
		return "relative"
	}
}

// ParseTimeBase accepts "relative" (or empty) and "reference".
func ParseTimeBase(s string) (TimeBase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relative":
		return RelativeTime, nil
	case "reference", "referenced":
		return ReferencedTime, nil
	}
	return RelativeTime, fmt.Errorf("unknown time base %q: expected relative or reference", s)
}

func (b TimeBase) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *TimeBase) UnmarshalText(text []byte) error {
	v, err := ParseTimeBase(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b TimeBase) origin(p Preamble) float64 {
	if b == ReferencedTime {
		return p.XReference
	}
	return 0
}

// Waveform is a calibrated capture: Voltages[i] was sampled at Times[i].
type Waveform struct {
	Voltages []float64 `json:"voltages"`
	Times    []float64 `json:"times"`
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Voltages) }

// Decode calibrates raw against p. The time axis always has len(raw)
// points regardless of p.Points.
func Decode(p Preamble, raw []byte, base TimeBase) Waveform {
	p.Points = len(raw)
	return Waveform{
		Voltages: p.Normalize(raw),
		Times:    p.TimeAxisFrom(base.origin(p)),
	}
}
