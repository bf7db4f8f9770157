package scope

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/benchlink/internal/monitoring"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

func calibratedLink(depth int) *visa.MockLink {
	return visa.NewMockLink(map[string]string{
		":WAV:YOR?":        "0",
		":WAV:YREF?":       "127",
		":WAV:YINC?":       "4.000000e-02",
		":WAV:XREF?":       "0",
		":WAV:XINC?":       "2.000000e-09",
		":ACQuire:MDEPth?": fmt.Sprintf("%d", depth),
	})
}

// countingPages fills each page with its 1-based page number.
func countingPages(n int, _ string, expected int) ([]byte, error) {
	page := make([]byte, expected)
	for i := range page {
		page[i] = byte(n)
	}
	return page, nil
}

func TestReadChannelWaveform_Paginates(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	link := calibratedLink(600000)
	link.Binary = countingPages

	w, err := ReadChannelWaveform(link, 2, 600000, 250000)
	require.NoError(t, err)
	require.Equal(t, 600000, w.Len())
	require.Len(t, w.Times, 600000)

	assert.Equal(t, []string{
		":WAV:SOUR CHAN2",
		":WAV:MODE RAW",
		":WAV:FORM BYTE",
		":WAV:STAR 1",
		":WAV:STOP 250000",
		":WAV:STAR 250001",
		":WAV:STOP 500000",
		":WAV:STAR 500001",
		":WAV:STOP 600000",
	}, link.Writes())

	var expected []int
	for _, c := range link.BinaryCalls() {
		assert.Equal(t, ":WAV:DATA?", c.Command)
		expected = append(expected, c.Expected)
	}
	assert.Equal(t, []int{250000, 250000, 100000}, expected)

	// Pages are concatenated in order.
	assert.InDelta(t, (1.0-127)*0.04, w.Voltages[0], 1e-12)
	assert.InDelta(t, (2.0-127)*0.04, w.Voltages[250000], 1e-12)
	assert.InDelta(t, (3.0-127)*0.04, w.Voltages[599999], 1e-12)
	assert.InDelta(t, 599999*2e-9, w.Times[599999], 1e-15)
}

func TestReadChannelWaveform_QueriesCalibrationBeforeData(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	link := calibratedLink(1200)
	_, err := ReadChannelWaveform(link, 1, 1200, 0)
	require.NoError(t, err)

	var order []string
	for _, c := range link.Calls {
		order = append(order, c.Command)
	}
	assert.Equal(t, []string{
		":WAV:SOUR CHAN1",
		":WAV:MODE RAW",
		":WAV:FORM BYTE",
		":WAV:YOR?",
		":WAV:YREF?",
		":WAV:YINC?",
		":WAV:XREF?",
		":WAV:XINC?",
		":ACQuire:MDEPth?",
		":WAV:STAR 1",
		":WAV:STOP 1200",
		":WAV:DATA?",
	}, order)
}

func TestReadChannelWaveform_ExactLimitIsOnePage(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	link := calibratedLink(250000)
	w, err := ReadChannelWaveform(link, 1, 250000, 250000)
	require.NoError(t, err)
	assert.Equal(t, 250000, w.Len())
	assert.Len(t, link.BinaryCalls(), 1)
}

func TestReadChannelWaveform_ZeroDepth(t *testing.T) {
	link := calibratedLink(0)
	w, err := ReadChannelWaveform(link, 1, 0, 250000)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, link.Calls)
}

func TestReadChannelWaveform_FailureOnSecondPage(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	cause := errors.New("timeout")
	link := calibratedLink(600000)
	link.FailBinaryAt = 2
	link.Err = cause

	w, err := ReadChannelWaveform(link, 3, 600000, 250000)
	require.Error(t, err)
	assert.Equal(t, 0, w.Len())
	assert.Nil(t, w.Voltages)

	var te *visa.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ":WAV:DATA?", te.Command)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "channel 3")
	assert.Len(t, link.BinaryCalls(), 2, "no further pages after a failure")
}

func TestReadChannelWaveform_BadCalibrationReply(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	link := calibratedLink(1200)
	link.Replies[":WAV:YINC?"] = "garbage"

	_, err := ReadChannelWaveform(link, 1, 1200, 0)
	var te *visa.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ":WAV:YINC?", te.Command)
	assert.Empty(t, link.BinaryCalls())
}

func TestReadChannelWaveform_TrustsDeliveredLength(t *testing.T) {
	logs, restore := monitoring.Capture()
	defer restore()

	link := calibratedLink(1000)
	link.Binary = func(_ int, _ string, expected int) ([]byte, error) {
		return make([]byte, expected-10), nil
	}

	w, err := ReadChannelWaveform(link, 1, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, 990, w.Len())
	assert.Len(t, w.Times, 990)

	var warned bool
	for _, line := range *logs {
		if strings.Contains(line, "delivered 990 samples, expected 1000") {
			warned = true
		}
	}
	assert.True(t, warned, "short page should be logged: %v", *logs)
}

func TestReadChannelWaveform_LogsDepthMismatch(t *testing.T) {
	logs, restore := monitoring.Capture()
	defer restore()

	link := calibratedLink(24000000)
	_, err := ReadChannelWaveform(link, 1, 1000, 0)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(*logs, "\n"), "scope reports memory depth 24000000, reading 1000")
}

func TestReader_ReadChannelRaw(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	link := calibratedLink(4)
	link.Replies[":WAV:YOR?"] = "3"
	link.Replies[":WAV:YREF?"] = "1.270000e+02"
	link.Binary = func(int, string, int) ([]byte, error) {
		return []byte{0, 130, 255, 127}, nil
	}

	r := NewReader(link)
	pre, raw, err := r.ReadChannelRaw(1, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 130, 255, 127}, raw)
	assert.Equal(t, waveform.Preamble{
		Points:     4,
		Count:      1,
		XIncrement: 2e-9,
		YIncrement: 0.04,
		YOrigin:    3,
		YReference: 127,
	}, pre)
}

func TestReader_ReferencedTime(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	link := calibratedLink(3)
	link.Replies[":WAV:XREF?"] = "1.5"
	link.Replies[":WAV:XINC?"] = "0.5"

	r := NewReader(link)
	r.TimeBase = waveform.ReferencedTime
	w, err := r.ReadChannelWaveform(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2, 2.5}, w.Times)
}

func TestReader_CalibrationIsAffine(t *testing.T) {
	restore := quietLogs(t)
	defer restore()

	link := calibratedLink(256)
	link.Binary = func(_ int, _ string, expected int) ([]byte, error) {
		out := make([]byte, expected)
		for i := range out {
			out[i] = byte(i)
		}
		return out, nil
	}
	w, err := ReadChannelWaveform(link, 1, 256, 0)
	require.NoError(t, err)
	for i := 1; i < w.Len(); i++ {
		step := w.Voltages[i] - w.Voltages[i-1]
		if math.Abs(step-0.04) > 1e-12 {
			t.Fatalf("step at code %d = %g, want 0.04", i, step)
		}
	}
}

func quietLogs(t *testing.T) func() {
	t.Helper()
	_, restore := monitoring.Capture()
	return restore
}
