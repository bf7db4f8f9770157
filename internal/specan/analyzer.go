// Package specan drives swept-tuned spectrum analyzers over SCPI.
package specan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/benchlink/internal/visa"
)

// Trigger selects the sweep trigger source for one measurement.
type Trigger int

const (
	// TriggerUnchanged leaves the analyzer's trigger source alone.
	TriggerUnchanged Trigger = iota
	// TriggerExternal waits for a rising edge on the external input.
	TriggerExternal
	// TriggerImmediate free-runs.
	TriggerImmediate
)

// Settings describes one measurement. Zero bandwidths and sweep time
// leave the analyzer on its automatic coupling.
type Settings struct {
	Center    float64       `json:"center_hz"`
	Span      float64       `json:"span_hz"`
	RBW       int           `json:"rbw_hz,omitempty"`
	VBW       int           `json:"vbw_hz,omitempty"`
	SweepTime time.Duration `json:"sweep_time,omitempty"`
	Trigger   Trigger       `json:"trigger,omitempty"`
}

// Trace is one sweep. Axis holds frequencies in Hz for swept
// measurements and seconds for zero span.
type Trace struct {
	Power []float64 `json:"power_dbm"`
	Axis  []float64 `json:"axis"`
}

// Len returns the number of trace points.
func (t Trace) Len() int { return len(t.Power) }

var ErrBadSpan = errors.New("span must be positive")

// Analyzer is a spectrum analyzer reached over a Link.
type Analyzer struct {
	visa.Device
}

// New creates an Analyzer.
func New(link visa.Link) *Analyzer {
	return &Analyzer{Device: visa.Device{Link: link}}
}

// Sweep measures s.Span around s.Center and returns power against
// frequency.
func (a *Analyzer) Sweep(s Settings) (Trace, error) {
	if s.Span <= 0 {
		return Trace{}, fmt.Errorf("%w: %g Hz", ErrBadSpan, s.Span)
	}
	power, err := a.measure(s, s.Span)
	if err != nil {
		return Trace{}, err
	}
	return Trace{Power: power, Axis: frequencyAxis(s.Center, s.Span, len(power))}, nil
}

// ZeroSpan parks the analyzer on s.Center and returns power against time
// over one sweep. s.Span is ignored.
func (a *Analyzer) ZeroSpan(s Settings) (Trace, error) {
	power, err := a.measure(s, 0)
	if err != nil {
		return Trace{}, err
	}
	sweep, err := a.QueryFloat(":SWEep:TIME?")
	if err != nil {
		return Trace{}, err
	}
	return Trace{Power: power, Axis: linspace(0, sweep, len(power))}, nil
}

// Displayed reads the trace currently on screen with its frequency axis.
func (a *Analyzer) Displayed() (Trace, error) {
	span, err := a.QueryFloat(":FREQuency:SPAN?")
	if err != nil {
		return Trace{}, err
	}
	center, err := a.QueryFloat(":FREQuency:CENTer?")
	if err != nil {
		return Trace{}, err
	}
	if err := a.Link.Write(":FORMat:TRACe:DATA ASCii"); err != nil {
		return Trace{}, err
	}
	power, err := a.readTrace()
	if err != nil {
		return Trace{}, err
	}
	return Trace{Power: power, Axis: frequencyAxis(center, span, len(power))}, nil
}

// PeakFrequency moves marker 1 to the highest point of the trace and
// returns its frequency in Hz.
func (a *Analyzer) PeakFrequency() (float64, error) {
	if err := a.Link.Write(":CALCulate:MARKer1:MAXimum"); err != nil {
		return 0, err
	}
	return a.QueryFloat(":CALCulate:MARKer1:X?")
}

func (a *Analyzer) measure(s Settings, span float64) (power []float64, err error) {
	cmds := []string{
		":FREQuency:SPAN " + formatHz(span),
		":FREQuency:CENTer " + formatHz(s.Center),
		bandwidth(":BANDwidth:RESolution", s.RBW),
		bandwidth(":BANDwidth:VIDeo", s.VBW),
	}
	if s.SweepTime > 0 {
		cmds = append(cmds, ":SENSe:SWEep:TIME "+strconv.FormatFloat(s.SweepTime.Seconds(), 'g', -1, 64))
	} else {
		cmds = append(cmds, ":SENSe:SWEep:TIME:AUTO ON")
	}
	cmds = append(cmds, ":DISPlay:WINdow:TRACe:Y:SCALe:SPACing LOGarithmic")
	for _, c := range cmds {
		if err := a.Link.Write(c); err != nil {
			return nil, err
		}
	}

	restore, err := a.setTrigger(s.Trigger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			err = errors.Join(err, rerr)
			power = nil
		}
	}()

	cmds = []string{":CONFigure:ACPower"}
	if span == 0 {
		// Integrate channel power over the whole sweep.
		cmds = append(cmds, ":TPOWer:LLIMit 0")
		if s.SweepTime > 0 {
			cmds = append(cmds, ":TPOWer:RLIMit "+strconv.FormatFloat(s.SweepTime.Seconds(), 'g', -1, 64))
		}
	}
	cmds = append(cmds, ":FORMat:TRACe:DATA ASCii")
	for _, c := range cmds {
		if err := a.Link.Write(c); err != nil {
			return nil, err
		}
	}
	return a.readTrace()
}

// setTrigger applies t and returns a func that puts the previous source
// back.
func (a *Analyzer) setTrigger(t Trigger) (func() error, error) {
	noop := func() error { return nil }
	if t == TriggerUnchanged {
		return noop, nil
	}
	previous, err := a.Link.Query(":TRIGger:SEQuence:SOURce?")
	if err != nil {
		return nil, err
	}
	previous = strings.ToUpper(strings.TrimSpace(previous))
	// Any source other than free run counts as triggered.
	triggered := previous != "IMM" && previous != "IMMEDIATE"

	switch {
	case t == TriggerExternal && !triggered:
		for _, c := range []string{
			":TRIGger:SEQuence:SOURce EXTernal",
			":TRIGger:SEQuence:EXTernal:SLOPe POSitive",
		} {
			if err := a.Link.Write(c); err != nil {
				return nil, err
			}
		}
	case t == TriggerImmediate && triggered:
		if err := a.Link.Write(":TRIGger:SEQuence:SOURce IMMediate"); err != nil {
			return nil, err
		}
	default:
		return noop, nil
	}
	return func() error {
		return a.Link.Write(":TRIGger:SEQuence:SOURce " + previous)
	}, nil
}

// readTrace holds the sweep while trace 1 is read, then resumes it.
func (a *Analyzer) readTrace() ([]float64, error) {
	if err := a.Link.Write(":INITiate:PAUSe"); err != nil {
		return nil, err
	}
	reply, err := a.Link.Query(":TRACe? TRACE1")
	if err != nil {
		return nil, err
	}
	power, err := ParseTrace(reply)
	if err != nil {
		return nil, &visa.TransportError{Op: "query", Command: ":TRACe? TRACE1", Err: err}
	}
	for _, c := range []string{":TRACe:AVERage:CLEar", ":INITiate:RESume"} {
		if err := a.Link.Write(c); err != nil {
			return nil, err
		}
	}
	return power, nil
}

// ParseTrace parses an ASCII trace reply of comma-separated dBm values,
// optionally preceded by a "#9nnnnnnnnn" block header.
func ParseTrace(text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "#") {
		if len(text) < 2 || text[1] < '1' || text[1] > '9' {
			return nil, fmt.Errorf("bad trace header in %.16q", text)
		}
		width := int(text[1] - '0')
		if len(text) < 2+width {
			return nil, fmt.Errorf("truncated trace header in %q", text)
		}
		text = strings.TrimSpace(text[2+width:])
	}
	if text == "" {
		return []float64{}, nil
	}
	fields := strings.Split(text, ",")
	out := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("trace point %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func bandwidth(header string, hz int) string {
	if hz <= 0 {
		return header + ":AUTO ON"
	}
	return header + " " + strconv.Itoa(hz)
}

func formatHz(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func frequencyAxis(center, span float64, n int) []float64 {
	return linspace(center-span/2, center+span/2, n)
}

func linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return []float64{}
	case n == 1:
		return []float64{(lo + hi) / 2}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
