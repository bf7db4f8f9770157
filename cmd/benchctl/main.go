package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/benchlink/internal/db"
	"github.com/banshee-data/benchlink/internal/version"
)

func main() {
	flag.Usage = func() { printUsage(os.Stdout) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "scope":
		return handleScope(args, out, false)
	case "displayed":
		return handleScope(args, out, true)
	case "spectrum":
		return handleSpectrum(args, out)
	case "identify":
		return handleIdentify(args, out)
	case "serve":
		return handleServe(args, out)
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		cf := registerCommonFlags(fs)
		if err := fs.Parse(args); err != nil {
			return err
		}
		cfg, err := cf.load(fs)
		if err != nil {
			return err
		}
		return db.RunMigrateCommand(fs.Args(), cfg.GetDBPath(), out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help":
		printUsage(out)
		return nil
	}
	printUsage(out)
	return fmt.Errorf("unknown command %q", command)
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `benchctl - acquire waveforms and spectra from SCPI bench instruments

Usage: benchctl <command> [options]

Commands:
  scope      Read full sample memory from oscilloscope channels
  displayed  Read only the on-screen portion of oscilloscope channels
  spectrum   Sweep a spectrum analyzer
  identify   Print the instrument identity and drain its error queue
  serve      Run the debug server (send-command, acquire, tailsql, metrics)
  migrate    Manage the capture database schema (up, down, version, force)
  version    Show benchctl version
  help       Show this help message

Common Flags:
  -config <file>     Acquisition config (JSON, see config/acquisition.defaults.json)
  -address <host>    Instrument LAN address, port 5555 unless given
  -serial <path>     Instrument serial port
  -timeout <dur>     Per-request I/O timeout
  -db <path>         Capture database
  -dev               Use the built-in simulator instead of hardware

Command-line flags override config file values.

Examples:
  benchctl scope -address 192.168.1.50 -channels 1,2 -store
  benchctl displayed -dev -channels 3
  benchctl spectrum -serial /dev/ttyUSB0 -center 10.7e6 -span 2e6
  benchctl serve -dev -listen localhost:8090
`)
}
