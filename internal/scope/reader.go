// Package scope drives SCPI oscilloscopes: it pages raw sample memory out of
// the instrument and calibrates it into waveforms.
package scope

import (
	"fmt"
	"math"

	"github.com/banshee-data/benchlink/internal/monitoring"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

// Reader reads one channel's full sample memory in transfer-limited pages.
// It issues one request at a time and holds no state between calls.
type Reader struct {
	Link visa.Link

	// TransferLimit caps the samples per binary query. Zero means
	// DefaultTransferLimit.
	TransferLimit int

	// TimeBase selects the origin of decoded time axes. The zero value
	// starts every axis at 0 s.
	TimeBase waveform.TimeBase
}

// NewReader creates a Reader with the default transfer limit.
func NewReader(link visa.Link) *Reader {
	return &Reader{Link: link, TransferLimit: DefaultTransferLimit}
}

// ReadChannelWaveform reads memoryDepth samples of channel over link and
// calibrates them, using a relative time axis.
func ReadChannelWaveform(link visa.Link, channel, memoryDepth, transferLimit int) (waveform.Waveform, error) {
	r := &Reader{Link: link, TransferLimit: transferLimit}
	return r.ReadChannelWaveform(channel, memoryDepth)
}

// ReadChannelWaveform reads and calibrates one channel. On error no
// waveform is returned.
func (r *Reader) ReadChannelWaveform(channel, memoryDepth int) (waveform.Waveform, error) {
	pre, raw, err := r.ReadChannelRaw(channel, memoryDepth)
	if err != nil {
		return waveform.Waveform{}, err
	}
	return waveform.Decode(pre, raw, r.TimeBase), nil
}

// ReadChannelRaw selects channel, reads its calibration, and pages
// memoryDepth raw codes out of the scope. The returned preamble carries
// the calibration with Points set to the number of bytes delivered.
func (r *Reader) ReadChannelRaw(channel, memoryDepth int) (waveform.Preamble, []byte, error) {
	if memoryDepth <= 0 {
		return waveform.Preamble{}, []byte{}, nil
	}

	pre, err := r.prepare(channel, memoryDepth)
	if err != nil {
		monitoring.ObserveError(err)
		return waveform.Preamble{}, nil, fmt.Errorf("channel %d: %w", channel, err)
	}

	raw := make([]byte, 0, memoryDepth)
	for _, w := range Windows(memoryDepth, r.TransferLimit) {
		page, err := r.readWindow(w)
		if err != nil {
			monitoring.ObserveError(err)
			return waveform.Preamble{}, nil, fmt.Errorf("channel %d: window [%d,%d]: %w", channel, w.Start, w.Stop, err)
		}
		if len(page) != w.Len() {
			monitoring.Logf("channel %d: window [%d,%d] delivered %d samples, expected %d", channel, w.Start, w.Stop, len(page), w.Len())
		}
		raw = append(raw, page...)
		monitoring.TransferPages.Inc()
		monitoring.TransferBytes.Add(float64(len(page)))
		monitoring.Logf("channel %d: reading %d/%d", channel, w.Stop, memoryDepth)
	}

	pre.Points = len(raw)
	return pre, raw, nil
}

// prepare selects the source and queries the calibration values.
func (r *Reader) prepare(channel, memoryDepth int) (waveform.Preamble, error) {
	for _, cmd := range []string{
		fmt.Sprintf(":WAV:SOUR CHAN%d", channel),
		":WAV:MODE RAW",
		":WAV:FORM BYTE",
	} {
		if err := r.Link.Write(cmd); err != nil {
			return waveform.Preamble{}, err
		}
	}

	d := visa.Device{Link: r.Link}
	var yOrigin, yReference float64
	pre := waveform.Preamble{Points: memoryDepth, Count: 1}
	for _, q := range []struct {
		command string
		dst     *float64
	}{
		{":WAV:YOR?", &yOrigin},
		{":WAV:YREF?", &yReference},
		{":WAV:YINC?", &pre.YIncrement},
		{":WAV:XREF?", &pre.XReference},
		{":WAV:XINC?", &pre.XIncrement},
	} {
		v, err := d.QueryFloat(q.command)
		if err != nil {
			return waveform.Preamble{}, err
		}
		*q.dst = v
	}
	pre.YOrigin = int(math.Round(yOrigin))
	pre.YReference = int(math.Round(yReference))

	deviceDepth, err := d.QueryInt(":ACQuire:MDEPth?")
	if err != nil {
		return waveform.Preamble{}, err
	}
	if deviceDepth != memoryDepth {
		monitoring.Logf("channel %d: scope reports memory depth %d, reading %d", channel, deviceDepth, memoryDepth)
	}
	return pre, nil
}

func (r *Reader) readWindow(w Window) ([]byte, error) {
	if err := r.Link.Write(fmt.Sprintf(":WAV:STAR %d", w.Start)); err != nil {
		return nil, err
	}
	if err := r.Link.Write(fmt.Sprintf(":WAV:STOP %d", w.Stop)); err != nil {
		return nil, err
	}
	return r.Link.QueryBinary(":WAV:DATA?", w.Len())
}
