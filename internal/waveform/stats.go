package waveform

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the usual scope measurements for one channel, in volts.
type Summary struct {
	Samples    int     `json:"samples"`
	Min        float64 `json:"v_min"`
	Max        float64 `json:"v_max"`
	PeakToPeak float64 `json:"v_pp"`
	Mean       float64 `json:"v_avg"`
	RMS        float64 `json:"v_rms"`
	StdDev     float64 `json:"v_std"`
	Duration   float64 `json:"duration_s"`
}

// Summarize measures w. An empty waveform yields a zero Summary.
func Summarize(w Waveform) Summary {
	n := w.Len()
	if n == 0 {
		return Summary{}
	}
	v := w.Voltages
	s := Summary{
		Samples: n,
		Min:     floats.Min(v),
		Max:     floats.Max(v),
		Mean:    stat.Mean(v, nil),
		RMS:     math.Sqrt(floats.Dot(v, v) / float64(n)),
	}
	if n > 1 {
		s.StdDev = math.Sqrt(stat.PopVariance(v, nil))
	}
	s.PeakToPeak = s.Max - s.Min
	if len(w.Times) > 1 {
		s.Duration = w.Times[len(w.Times)-1] - w.Times[0]
	}
	return s
}
