// Package units formats measurements with SI engineering prefixes.
package units

import (
	"math"
	"strconv"
)

// Base units used in reports.
const (
	Second = "s"
	Volt   = "V"
	Hertz  = "Hz"
	DBm    = "dBm"
)

// ValidUnits contains the base units Format understands.
var ValidUnits = []string{Second, Volt, Hertz, DBm}

// IsValid checks if unit is one of ValidUnits.
func IsValid(unit string) bool {
	for _, u := range ValidUnits {
		if unit == u {
			return true
		}
	}
	return false
}

var prefixes = []struct {
	exp    int
	symbol string
}{
	{9, "G"},
	{6, "M"},
	{3, "k"},
	{0, ""},
	{-3, "m"},
	{-6, "µ"},
	{-9, "n"},
	{-12, "p"},
}

// Scale returns v expressed in the largest engineering prefix that keeps
// the magnitude at or above 1, with the prefixed unit. Zero, NaN, Inf and
// logarithmic units (dBm) are returned unchanged.
func Scale(v float64, unit string) (float64, string) {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) || unit == DBm {
		return v, unit
	}
	abs := math.Abs(v)
	for _, p := range prefixes {
		f := math.Pow10(p.exp)
		// allow for values like 999.9999999 that are 1 of the next prefix
		if abs >= f*(1-1e-9) {
			return v / f, p.symbol + unit
		}
	}
	last := prefixes[len(prefixes)-1]
	return v / math.Pow10(last.exp), last.symbol + unit
}

// Format renders v with four significant digits and an SI prefix, e.g.
// Format(0.00125, Second) is "1.25 ms".
func Format(v float64, unit string) string {
	scaled, u := Scale(v, unit)
	return strconv.FormatFloat(scaled, 'g', 4, 64) + " " + u
}
