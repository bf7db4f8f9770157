package scope

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/benchlink/internal/visa"
)

// Simulator defaults.
const (
	SimulatorMemoryDepth = 600000
	SimulatorTimeScale   = 1e-3
	simulatorDivisions   = 12
)

// Simulator is an in-process oscilloscope answering the command set used by
// Scope and Reader. Each channel carries a sine wave, phase-shifted by a
// quarter turn per channel, completing five cycles across the screen.
type Simulator struct {
	mu sync.Mutex

	// Identity is returned by *IDN?.
	Identity visa.Identity

	// TransferLimit caps RAW mode binary queries. Zero means
	// DefaultTransferLimit.
	TransferLimit int

	// Code overrides the generated signal. index is 1-based.
	Code func(channel, index int) byte

	depth     int
	timeScale float64
	running   bool
	source    int
	mode      string
	start     int
	stop      int
	yInc      float64
	yOrigin   int
	yRef      int
	xRef      int
	errs      []visa.InstrumentError
}

// NewSimulator creates a running Simulator with SimulatorMemoryDepth samples
// of memory.
func NewSimulator() *Simulator {
	s := &Simulator{
		Identity: visa.Identity{
			Manufacturer: "BENCHLINK",
			Model:        "SIM1104",
			Serial:       "SIM0000001",
			Firmware:     "1.0.0",
		},
		TransferLimit: DefaultTransferLimit,
	}
	s.reset()
	return s
}

func (s *Simulator) reset() {
	s.depth = SimulatorMemoryDepth
	s.timeScale = SimulatorTimeScale
	s.running = true
	s.source = 1
	s.mode = "NORM"
	s.start = 1
	s.stop = 1200
	s.yInc = 0.004
	s.yOrigin = 0
	s.yRef = 127
	s.xRef = 0
}

// Running reports whether acquisition is running.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) sampleRate() float64 {
	return float64(s.depth) / (simulatorDivisions * s.timeScale)
}

func (s *Simulator) xIncrement() float64 {
	return 1 / s.sampleRate()
}

func (s *Simulator) pushError(code int, msg string) {
	s.errs = append(s.errs, visa.InstrumentError{Code: code, Message: msg})
}

func splitCommand(command string) (header, arg string) {
	header, arg, _ = strings.Cut(strings.TrimSpace(command), " ")
	return strings.ToUpper(header), strings.TrimSpace(arg)
}

var simulatorAliases = map[string]string{
	":ACQ:MDEP":           ":ACQUIRE:MDEPTH",
	":ACQ:MDEP?":          ":ACQUIRE:MDEPTH?",
	":ACQ:SRAT?":          ":ACQUIRE:SRATE?",
	":TIM:SCAL":           ":TIMEBASE:SCALE",
	":TIM:SCAL?":          ":TIMEBASE:SCALE?",
	":SYST:ERR?":          ":SYSTEM:ERROR?",
	":WAVEFORM:SOURCE":    ":WAV:SOUR",
	":WAVEFORM:MODE":      ":WAV:MODE",
	":WAVEFORM:FORMAT":    ":WAV:FORM",
	":WAVEFORM:START":     ":WAV:STAR",
	":WAVEFORM:STOP":      ":WAV:STOP",
	":WAVEFORM:DATA?":     ":WAV:DATA?",
	":WAVEFORM:PREAMBLE?": ":WAV:PRE?",
}

func canonical(header string) string {
	if c, ok := simulatorAliases[header]; ok {
		return c
	}
	return header
}

// Write applies a setting command.
func (s *Simulator) Write(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	header, arg := splitCommand(command)
	switch canonical(header) {
	case "*RST":
		s.reset()
	case "*CLS":
		s.errs = nil
	case "*WAI":
	case ":STOP":
		s.running = false
	case ":RUN":
		s.running = true
	case ":ACQUIRE:MDEPTH":
		if n, ok := s.intArg(arg); ok && n > 0 {
			s.depth = n
		}
	case ":TIMEBASE:SCALE":
		if v, err := strconv.ParseFloat(arg, 64); err == nil && v > 0 {
			s.timeScale = v
		} else {
			s.pushError(-224, "Illegal parameter value")
		}
	case ":WAV:SOUR":
		ch, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(arg), "CHAN"))
		if err != nil || ch < 1 || ch > MaxChannels {
			s.pushError(-224, "Illegal parameter value")
			break
		}
		s.source = ch
	case ":WAV:MODE":
		s.mode = strings.ToUpper(arg)
	case ":WAV:FORM":
		if f := strings.ToUpper(arg); f != "BYTE" {
			s.pushError(-224, "Illegal parameter value")
		}
	case ":WAV:STAR":
		if n, ok := s.intArg(arg); ok {
			s.start = n
		}
	case ":WAV:STOP":
		if n, ok := s.intArg(arg); ok {
			s.stop = n
		}
	case ":WAV:XREF":
		if v, ok := s.floatArg(arg); ok {
			s.xRef = int(math.Round(v))
		}
	case ":WAV:YREF":
		if v, ok := s.floatArg(arg); ok {
			s.yRef = int(math.Round(v))
		}
	case ":WAV:YINC":
		if v, ok := s.floatArg(arg); ok && v > 0 {
			s.yInc = v
		} else if ok {
			s.pushError(-224, "Illegal parameter value")
		}
	case ":WAV:XINC":
		// The sample interval follows from the time base at a fixed depth.
		if v, ok := s.floatArg(arg); ok && v > 0 {
			s.timeScale = v * float64(s.depth) / simulatorDivisions
		} else if ok {
			s.pushError(-224, "Illegal parameter value")
		}
	default:
		s.pushError(-113, "Undefined header")
	}
	return nil
}

func (s *Simulator) intArg(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		s.pushError(-224, "Illegal parameter value")
		return 0, false
	}
	return n, true
}

func (s *Simulator) floatArg(arg string) (float64, bool) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		s.pushError(-224, "Illegal parameter value")
		return 0, false
	}
	return v, true
}

// Query answers a query command.
func (s *Simulator) Query(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	header, _ := splitCommand(command)
	switch canonical(header) {
	case "*IDN?":
		id := s.Identity
		return strings.Join([]string{id.Manufacturer, id.Model, id.Serial, id.Firmware}, ","), nil
	case ":SYSTEM:ERROR?":
		if len(s.errs) == 0 {
			return `0,"No error"`, nil
		}
		e := s.errs[0]
		s.errs = s.errs[1:]
		return fmt.Sprintf("%d,%q", e.Code, e.Message), nil
	case ":ACQUIRE:MDEPTH?":
		return strconv.Itoa(s.depth), nil
	case ":ACQUIRE:SRATE?":
		return formatFloat(s.sampleRate()), nil
	case ":TIMEBASE:SCALE?":
		return formatFloat(s.timeScale), nil
	case ":WAV:YOR?":
		return strconv.Itoa(s.yOrigin), nil
	case ":WAV:YREF?":
		return strconv.Itoa(s.yRef), nil
	case ":WAV:YINC?":
		return formatFloat(s.yInc), nil
	case ":WAV:XREF?":
		return strconv.Itoa(s.xRef), nil
	case ":WAV:XINC?":
		return formatFloat(s.xIncrement()), nil
	case ":WAV:XOR?":
		return formatFloat(s.xOrigin()), nil
	case ":WAV:PRE?":
		return fmt.Sprintf("0,%d,%d,1,%s,%s,%d,%s,%d,%d",
			s.formatCode(), s.depth, formatFloat(s.xIncrement()), formatFloat(s.xOrigin()),
			s.xRef, formatFloat(s.yInc), s.yOrigin, s.yRef), nil
	}
	s.pushError(-113, "Undefined header")
	return "", &visa.TransportError{Op: "query", Command: command, Err: errors.New("no reply from instrument")}
}

func (s *Simulator) formatCode() int {
	switch s.mode {
	case "RAW":
		return 2
	case "MAX", "MAXIMUM":
		return 1
	}
	return 0
}

func (s *Simulator) xOrigin() float64 {
	return -float64(simulatorDivisions) / 2 * s.timeScale
}

// QueryBinary returns the selected window of the current source.
func (s *Simulator) QueryBinary(command string, expected int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	header, _ := splitCommand(command)
	if canonical(header) != ":WAV:DATA?" {
		s.pushError(-113, "Undefined header")
		return nil, &visa.TransportError{Op: "query_binary", Command: command, Err: errors.New("no reply from instrument")}
	}

	start, stop := max(s.start, 1), min(s.stop, s.depth)
	if stop < start {
		s.pushError(-222, "Data out of range")
		return []byte{}, nil
	}
	limit := s.TransferLimit
	if limit <= 0 {
		limit = DefaultTransferLimit
	}
	if s.mode == "RAW" && stop-start+1 > limit {
		s.pushError(-222, "Data out of range")
		return nil, &visa.TransportError{Op: "query_binary", Command: command, Err: fmt.Errorf("window of %d samples exceeds limit %d", stop-start+1, limit)}
	}

	out := make([]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, s.code(s.source, i))
	}
	return out, nil
}

func (s *Simulator) code(channel, index int) byte {
	if s.Code != nil {
		return s.Code(channel, index)
	}
	t := float64(index-1) * s.xIncrement()
	period := float64(simulatorDivisions) * s.timeScale / 5
	phase := float64(channel-1) * math.Pi / 2
	v := 128 + 100*math.Sin(2*math.Pi*t/period+phase)
	return byte(math.Round(v))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
