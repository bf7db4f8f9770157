package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/benchlink/internal/config"
	"github.com/banshee-data/benchlink/internal/debugserver"
	"github.com/banshee-data/benchlink/internal/scope"
	"github.com/banshee-data/benchlink/internal/visa"
)

type commonFlags struct {
	configPath string
	address    string
	serialPort string
	timeout    time.Duration
	dbPath     string
	dev        bool
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "Acquisition config file (.json)")
	fs.StringVar(&cf.address, "address", "", "Instrument LAN address (host or host:port)")
	fs.StringVar(&cf.serialPort, "serial", "", "Instrument serial port")
	fs.DurationVar(&cf.timeout, "timeout", 0, "Per-request I/O timeout")
	fs.StringVar(&cf.dbPath, "db", "", "Capture database path")
	fs.BoolVar(&cf.dev, "dev", false, "Use the built-in simulator")
	return cf
}

// load reads the config file, if any, and applies the flags that were set
// explicitly on top of it.
func (cf *commonFlags) load(fs *flag.FlagSet) (*config.AcquisitionConfig, error) {
	cfg := config.EmptyAcquisitionConfig()
	if cf.configPath != "" {
		var err error
		if cfg, err = config.LoadAcquisitionConfig(cf.configPath); err != nil {
			return nil, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "address":
			cfg.Address = &cf.address
		case "serial":
			cfg.SerialPort = &cf.serialPort
		case "timeout":
			s := cf.timeout.String()
			cfg.Timeout = &s
		case "db":
			cfg.DBPath = &cf.dbPath
		case "channels":
			cfg.Channels, err = debugserver.ParseChannels(f.Value.String())
		case "depth":
			n := f.Value.(flag.Getter).Get().(int)
			cfg.MemoryDepth = &n
		case "limit":
			n := f.Value.(flag.Getter).Get().(int)
			cfg.TransferLimit = &n
		case "time-base":
			s := f.Value.String()
			cfg.TimeBase = &s
		case "divisions":
			n := f.Value.(flag.Getter).Get().(int)
			cfg.DisplayDivisions = &n
		}
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type closeFunc func() error

// openLink connects to the configured instrument. In dev mode the scope
// simulator stands in for hardware.
func openLink(cfg *config.AcquisitionConfig, dev bool) (visa.Link, closeFunc, error) {
	noop := func() error { return nil }
	if dev {
		return scope.NewSimulator(), noop, nil
	}
	switch {
	case cfg.GetAddress() != "":
		link, err := visa.DialTCP(cfg.GetAddress(), cfg.GetTimeout())
		if err != nil {
			return nil, nil, err
		}
		return link, link.Close, nil
	case cfg.GetSerialPort() != "":
		link, err := visa.OpenSerial(cfg.GetSerialPort(), cfg.GetPortOptions(), cfg.GetTimeout())
		if err != nil {
			return nil, nil, err
		}
		return link, link.Close, nil
	}
	return nil, nil, fmt.Errorf("no instrument configured: set -address, -serial or -dev")
}

// instrumentName identifies the instrument for stored records. Failure to
// identify is not fatal.
func instrumentName(link visa.Link) string {
	id, err := visa.Device{Link: link}.Identify()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id.Manufacturer + " " + id.Model)
}

func handleIdentify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("identify", flag.ContinueOnError)
	cf := registerCommonFlags(fs)
	reset := fs.Bool("reset", false, "Reset the instrument to its defaults (*RST) first")
	clear := fs.Bool("clear", false, "Clear the status registers and error queue (*CLS) first")
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

	d := visa.Device{Link: link}
	if *reset {
		if err := d.Reset(); err != nil {
			return err
		}
	}
	if *clear {
		if err := d.Clear(); err != nil {
			return err
		}
	}
	id, err := d.Identify()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, id)
	// The queue is bounded on real instruments; stop after a screenful.
	for i := 0; i < 32; i++ {
		ie, ok, err := d.NextError()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		fmt.Fprintln(out, ie)
	}
	return nil
}
