package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/benchlink/internal/db"
	"github.com/banshee-data/benchlink/internal/specan"
	"github.com/banshee-data/benchlink/internal/units"
	"github.com/banshee-data/benchlink/internal/visa"
)

func handleSpectrum(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("spectrum", flag.ContinueOnError)
	cf := registerCommonFlags(fs)
	center := fs.Float64("center", 0, "Center frequency in Hz")
	span := fs.Float64("span", 0, "Span in Hz")
	rbw := fs.Int("rbw", 0, "Resolution bandwidth in Hz (0 for auto)")
	vbw := fs.Int("vbw", 0, "Video bandwidth in Hz (0 for auto)")
	sweep := fs.Duration("sweep-time", 0, "Sweep time (0 for auto)")
	trigger := fs.String("trigger", "", "Trigger source for this sweep: ext, imm or empty to leave it")
	zeroSpan := fs.Bool("zero-span", false, "Measure power against time at the center frequency")
	displayed := fs.Bool("displayed", false, "Read the trace on screen without reprogramming")
	peak := fs.Bool("peak", false, "Also report the marker peak frequency")
	store := fs.Bool("store", false, "Store the trace in the database")
	asJSON := fs.Bool("json", false, "Print JSON instead of a summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}

	settings := cfg.GetSpectrumSettings()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "center":
			settings.Center = *center
		case "span":
			settings.Span = *span
		case "rbw":
			settings.RBW = *rbw
		case "vbw":
			settings.VBW = *vbw
		case "sweep-time":
			settings.SweepTime = *sweep
		}
	})
	if settings.Trigger, err = parseTrigger(*trigger); err != nil {
		return err
	}

	var link visa.Link
	if cf.dev {
		link = simulatedAnalyzer(settings)
	} else {
		l, closeLink, err := openLink(cfg, false)
		if err != nil {
			return err
		}
		defer closeLink()
		link = l
	}

	a := specan.New(link)
	var tr specan.Trace
	switch {
	case *displayed:
		tr, err = a.Displayed()
	case *zeroSpan:
		tr, err = a.ZeroSpan(settings)
	default:
		tr, err = a.Sweep(settings)
	}
	if err != nil {
		return err
	}

	var peakHz float64
	if *peak {
		if peakHz, err = a.PeakFrequency(); err != nil {
			return err
		}
	}

	var id string
	if *store {
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return err
		}
		defer database.Close()
		if id, err = database.InsertSpectrum(instrumentName(link), settings, tr, time.Now()); err != nil {
			return err
		}
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ID     string       `json:"id,omitempty"`
			PeakHz float64      `json:"peak_hz,omitempty"`
			Trace  specan.Trace `json:"trace"`
		}{id, peakHz, tr})
	}

	axisUnit := units.Hertz
	if *zeroSpan {
		axisUnit = units.Second
	}
	fmt.Fprintf(out, "%d points", tr.Len())
	if tr.Len() > 0 {
		i := floats.MaxIdx(tr.Power)
		fmt.Fprintf(out, "  max %s at %s", units.Format(tr.Power[i], units.DBm), units.Format(tr.Axis[i], axisUnit))
	}
	if *peak {
		fmt.Fprintf(out, "  marker %s", units.Format(peakHz, units.Hertz))
	}
	if id != "" {
		fmt.Fprintf(out, "  id %s", id)
	}
	fmt.Fprintln(out)
	return nil
}

func parseTrigger(s string) (specan.Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return specan.TriggerUnchanged, nil
	case "ext", "external":
		return specan.TriggerExternal, nil
	case "imm", "immediate":
		return specan.TriggerImmediate, nil
	}
	return specan.TriggerUnchanged, fmt.Errorf("unknown trigger %q: expected ext or imm", s)
}

// simulatedAnalyzer scripts an analyzer showing a single carrier at the
// center frequency over a -90 dBm floor.
func simulatedAnalyzer(s specan.Settings) *visa.MockLink {
	const points = 601
	values := make([]string, points)
	for i := range values {
		x := float64(i-points/2) / 10
		values[i] = fmt.Sprintf("%.2f", -90+70*math.Exp(-x*x))
	}
	sweep := s.SweepTime.Seconds()
	if sweep <= 0 {
		sweep = 0.1
	}
	span := s.Span
	if span <= 0 {
		span = 1e6
	}
	return visa.NewMockLink(map[string]string{
		"*IDN?":                     "BENCHLINK,SIMSA,SIM0000002,1.0.0",
		":TRACe? TRACE1":            "#9000000000" + strings.Join(values, ", "),
		":SWEep:TIME?":              fmt.Sprintf("%g", sweep),
		":FREQuency:SPAN?":          fmt.Sprintf("%g", span),
		":FREQuency:CENTer?":        fmt.Sprintf("%g", s.Center),
		":CALCulate:MARKer1:X?":     fmt.Sprintf("%g", s.Center),
		":TRIGger:SEQuence:SOURce?": "IMM",
	})
}
