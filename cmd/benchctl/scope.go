package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/benchlink/internal/config"
	"github.com/banshee-data/benchlink/internal/db"
	"github.com/banshee-data/benchlink/internal/scope"
	"github.com/banshee-data/benchlink/internal/units"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

type channelReport struct {
	ID       string            `json:"id,omitempty"`
	Channel  int               `json:"channel"`
	Preamble waveform.Preamble `json:"preamble"`
	Summary  waveform.Summary  `json:"summary"`
}

func registerScopeFlags(fs *flag.FlagSet) {
	fs.String("channels", "1", "Comma separated channels to read, e.g. 1,3")
	fs.Int("depth", 0, "Memory depth to program before reading (0 keeps the scope's)")
	fs.Int("limit", scope.DefaultTransferLimit, "Samples per binary transfer")
	fs.String("time-base", "relative", "Time axis origin: relative or reference")
	fs.Int("divisions", scope.DefaultDivisions, "Horizontal divisions on screen (displayed only)")
}

func handleScope(args []string, out io.Writer, displayed bool) error {
	name := "scope"
	if displayed {
		name = "displayed"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cf := registerCommonFlags(fs)
	registerScopeFlags(fs)
	store := fs.Bool("store", false, "Store captures in the database")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	xinc := fs.Float64("xinc", 0, "Waveform sample interval in seconds to program first (0 leaves it)")
	yinc := fs.Float64("yinc", 0, "Waveform volts per code to program first (0 leaves it)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}

	link, closeLink, err := openLink(cfg, cf.dev)
	if err != nil {
		return err
	}
	defer closeLink()

	s := newScope(link, cfg)
	if *xinc > 0 {
		if _, err := s.SetXIncrement(*xinc); err != nil {
			return err
		}
	}
	if *yinc > 0 {
		if _, err := s.SetYIncrement(*yinc); err != nil {
			return err
		}
	}
	var captures []scope.Capture
	if displayed {
		captures, err = s.AcquireDisplayed(cfg.GetChannels(), cfg.GetDisplayDivisions())
	} else {
		captures, err = s.Acquire(cfg.GetChannels(), cfg.GetMemoryDepth())
	}
	if err != nil {
		return err
	}

	reports := make([]channelReport, 0, len(captures))
	for _, c := range captures {
		reports = append(reports, channelReport{
			Channel:  c.Channel,
			Preamble: c.Preamble,
			Summary:  waveform.Summarize(c.Waveform),
		})
	}

	if *store {
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return err
		}
		defer database.Close()
		instrument := instrumentName(link)
		for i, c := range captures {
			id, err := database.InsertCapture(instrument, c)
			if err != nil {
				return err
			}
			reports[i].ID = id
		}
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		printChannel(out, r)
	}
	return nil
}

func newScope(link visa.Link, cfg *config.AcquisitionConfig) *scope.Scope {
	s := scope.New(link)
	s.Reader.TransferLimit = cfg.GetTransferLimit()
	s.Reader.TimeBase = cfg.GetTimeBase()
	return s
}

func printChannel(out io.Writer, r channelReport) {
	sum := r.Summary
	fmt.Fprintf(out, "CH%d  %d samples  dt %s  span %s  Vpp %s  Vavg %s  Vrms %s",
		r.Channel, sum.Samples,
		units.Format(r.Preamble.XIncrement, units.Second),
		units.Format(sum.Duration, units.Second),
		units.Format(sum.PeakToPeak, units.Volt),
		units.Format(sum.Mean, units.Volt),
		units.Format(sum.RMS, units.Volt),
	)
	if r.ID != "" {
		fmt.Fprintf(out, "  id %s", r.ID)
	}
	fmt.Fprintln(out)
}
