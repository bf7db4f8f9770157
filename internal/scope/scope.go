package scope

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/banshee-data/benchlink/internal/monitoring"
	"github.com/banshee-data/benchlink/internal/timeutil"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

// MaxChannels is the number of analog inputs on the supported scopes.
const MaxChannels = 4

// DefaultDivisions is the number of horizontal divisions on screen.
const DefaultDivisions = 10

// displayedSettle is how long to wait before reading the displayed window.
const displayedSettle = 500 * time.Millisecond

var ErrInvalidChannel = errors.New("invalid channel")

// Capture is one channel's acquisition.
type Capture struct {
	Channel    int               `json:"channel"`
	Preamble   waveform.Preamble `json:"preamble"`
	Raw        []byte            `json:"-"`
	Waveform   waveform.Waveform `json:"waveform"`
	TimeBase   waveform.TimeBase `json:"time_base"`
	AcquiredAt time.Time         `json:"acquired_at"`
}

// Scope is an oscilloscope reached over a single link.
type Scope struct {
	visa.Device
	Reader *Reader
	Clock  timeutil.Clock
}

// New creates a Scope using the default reader settings.
func New(link visa.Link) *Scope {
	return &Scope{
		Device: visa.Device{Link: link},
		Reader: NewReader(link),
		Clock:  timeutil.RealClock{},
	}
}

// ValidateChannels checks that channels is a non-empty list of distinct
// inputs between 1 and MaxChannels.
func ValidateChannels(channels []int) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: no channels requested", ErrInvalidChannel)
	}
	if len(channels) > MaxChannels {
		return fmt.Errorf("%w: %d channels requested, at most %d", ErrInvalidChannel, len(channels), MaxChannels)
	}
	seen := make(map[int]bool, len(channels))
	for _, ch := range channels {
		if ch < 1 || ch > MaxChannels {
			return fmt.Errorf("%w: %d (channels are 1-%d)", ErrInvalidChannel, ch, MaxChannels)
		}
		if seen[ch] {
			return fmt.Errorf("%w: %d requested twice", ErrInvalidChannel, ch)
		}
		seen[ch] = true
	}
	return nil
}

// SampleRate returns the acquisition sample rate in samples per second.
func (s *Scope) SampleRate() (float64, error) {
	return s.QueryFloat(":ACQuire:SRATe?")
}

// MemoryDepth returns the current acquisition memory depth in samples.
func (s *Scope) MemoryDepth() (int, error) {
	return s.QueryInt(":ACQuire:MDEPth?")
}

// SetXReference sets the waveform x reference and returns the value the
// scope reports back.
func (s *Scope) SetXReference(v float64) (float64, error) {
	return s.setWaveformValue(":WAV:XREF", v)
}

// SetYReference sets the waveform y reference code.
func (s *Scope) SetYReference(v float64) (float64, error) {
	return s.setWaveformValue(":WAV:YREF", v)
}

// SetXIncrement sets the time between samples.
func (s *Scope) SetXIncrement(v float64) (float64, error) {
	return s.setWaveformValue(":WAV:XINC", v)
}

// SetYIncrement sets the volts per code.
func (s *Scope) SetYIncrement(v float64) (float64, error) {
	return s.setWaveformValue(":WAV:YINC", v)
}

func (s *Scope) setWaveformValue(header string, v float64) (float64, error) {
	if err := s.Link.Write(header + " " + strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
		return 0, err
	}
	return s.QueryFloat(header + "?")
}

// Acquire stops the scope and reads the whole sample memory of each
// channel, in the order given. A positive memoryDepth is programmed first;
// otherwise the current depth is used. The scope is restarted afterwards
// even when a read fails.
func (s *Scope) Acquire(channels []int, memoryDepth int) (captures []Capture, err error) {
	if err := ValidateChannels(channels); err != nil {
		return nil, err
	}
	if memoryDepth > 0 {
		if err := s.Link.Write(fmt.Sprintf(":ACQuire:MDEPth %d", memoryDepth)); err != nil {
			return nil, err
		}
	}
	if err := s.Link.Write(":STOP"); err != nil {
		return nil, err
	}
	defer func() { err = s.run(err) }()

	depth, err := s.MemoryDepth()
	if err != nil {
		return nil, err
	}

	captures = make([]Capture, 0, len(channels))
	for _, ch := range channels {
		pre, raw, err := s.Reader.ReadChannelRaw(ch, depth)
		if err != nil {
			monitoring.Acquisitions.WithLabelValues("error").Inc()
			return nil, err
		}
		monitoring.Acquisitions.WithLabelValues("ok").Inc()
		captures = append(captures, Capture{
			Channel:    ch,
			Preamble:   pre,
			Raw:        raw,
			Waveform:   waveform.Decode(pre, raw, s.Reader.TimeBase),
			TimeBase:   s.Reader.TimeBase,
			AcquiredAt: s.Clock.Now(),
		})
	}
	return captures, nil
}

// AcquireDisplayed reads only the part of memory shown on screen, centred
// in the acquisition memory, using the scope's own preamble for
// calibration. divisions <= 0 means DefaultDivisions.
func (s *Scope) AcquireDisplayed(channels []int, divisions int) (captures []Capture, err error) {
	if err := ValidateChannels(channels); err != nil {
		return nil, err
	}
	if divisions <= 0 {
		divisions = DefaultDivisions
	}

	depth, err := s.MemoryDepth()
	if err != nil {
		return nil, err
	}
	timeScale, err := s.QueryFloat(":TIMebase:SCALe?")
	if err != nil {
		return nil, err
	}
	if err := s.Link.Write(":STOP"); err != nil {
		return nil, err
	}
	defer func() { err = s.run(err) }()

	captures = make([]Capture, 0, len(channels))
	for _, ch := range channels {
		c, err := s.readDisplayed(ch, depth, timeScale, divisions)
		if err != nil {
			monitoring.ObserveError(err)
			monitoring.Acquisitions.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		monitoring.Acquisitions.WithLabelValues("ok").Inc()
		captures = append(captures, c)
	}
	return captures, nil
}

func (s *Scope) readDisplayed(ch, depth int, timeScale float64, divisions int) (Capture, error) {
	for _, cmd := range []string{
		fmt.Sprintf(":WAV:SOUR CHAN%d", ch),
		":WAV:MODE MAX",
		":WAV:FORM BYTE",
	} {
		if err := s.Link.Write(cmd); err != nil {
			return Capture{}, err
		}
	}
	reply, err := s.Link.Query(":WAV:PRE?")
	if err != nil {
		return Capture{}, err
	}
	pre, err := waveform.Parse(reply)
	if err != nil {
		return Capture{}, err
	}
	if pre.XIncrement <= 0 {
		return Capture{}, &waveform.MalformedPreambleError{Text: reply, Field: "x_increment", Err: fmt.Errorf("non-positive sample spacing %g", pre.XIncrement)}
	}

	w := displayedWindow(depth, timeScale, pre.XIncrement, divisions)
	if err := s.Link.Write(fmt.Sprintf(":WAV:STAR %d", w.Start)); err != nil {
		return Capture{}, err
	}
	if err := s.Link.Write(fmt.Sprintf(":WAV:STOP %d", w.Stop)); err != nil {
		return Capture{}, err
	}
	s.Clock.Sleep(displayedSettle)
	raw, err := s.Link.QueryBinary(":WAV:DATA?", w.Len())
	if err != nil {
		return Capture{}, err
	}
	monitoring.TransferPages.Inc()
	monitoring.TransferBytes.Add(float64(len(raw)))

	pre.Points = len(raw)
	return Capture{
		Channel:    ch,
		Preamble:   pre,
		Raw:        raw,
		Waveform:   waveform.Decode(pre, raw, s.Reader.TimeBase),
		TimeBase:   s.Reader.TimeBase,
		AcquiredAt: s.Clock.Now(),
	}, nil
}

// displayedWindow centres the on-screen span in acquisition memory.
func displayedWindow(depth int, timeScale, xIncrement float64, divisions int) Window {
	// Both values arrive as decimal text, so allow for rounding in the ratio.
	points := int(math.Floor(timeScale/xIncrement+1e-6)) * divisions
	w := Window{
		Start: depth/2 - points/2 + 1,
		Stop:  depth/2 + points/2,
	}
	if w.Start < 1 {
		w.Start = 1
	}
	if depth > 0 && w.Stop > depth {
		w.Stop = depth
	}
	if w.Stop < w.Start {
		w.Stop = w.Start
	}
	return w
}

// run restarts acquisition, joining any failure with prior.
func (s *Scope) run(prior error) error {
	if err := s.Link.Write(":RUN"); err != nil {
		if prior != nil {
			return errors.Join(prior, err)
		}
		return err
	}
	return prior
}
