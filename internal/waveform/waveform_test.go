package waveform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_LengthFollowsRaw(t *testing.T) {
	// the preamble claims more points than were delivered
	p := Preamble{Points: 10, XIncrement: 1e-3, XReference: 2, YIncrement: 1, YReference: 0}
	raw := []byte{1, 2, 3}

	w := Decode(p, raw, RelativeTime)
	assert.Equal(t, 3, w.Len())
	assert.Len(t, w.Times, 3)
	assert.Equal(t, []float64{1, 2, 3}, w.Voltages)
	assert.InDeltaSlice(t, []float64{0, 1e-3, 2e-3}, w.Times, 1e-15)
}

func TestDecode_ReferencedTime(t *testing.T) {
	p := Preamble{XIncrement: 1, XReference: 10, YIncrement: 1}
	w := Decode(p, []byte{0, 0}, ReferencedTime)
	assert.Equal(t, []float64{10, 11}, w.Times)
}

func TestDecode_Empty(t *testing.T) {
	w := Decode(Preamble{XIncrement: 1, YIncrement: 1}, nil, RelativeTime)
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.Times)
}

func TestParseTimeBase(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeBase
		wantErr bool
	}{
		{"", RelativeTime, false},
		{"relative", RelativeTime, false},
		{"Reference", ReferencedTime, false},
		{"absolute", RelativeTime, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeBase(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) TimeBase {
	t.Helper()
	b, err := ParseTimeBase(s)
	require.NoError(t, err)
	return b
}

func TestTimeBase_Text(t *testing.T) {
	for _, b := range []TimeBase{RelativeTime, ReferencedTime} {
		text, err := b.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", b, err)
		}
		var got TimeBase
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if got != b {
			t.Errorf("round trip of %v gave %v", b, got)
		}
	}
	var b TimeBase
	if err := b.UnmarshalText([]byte("absolute")); err == nil {
		t.Error("UnmarshalText(absolute) succeeded, want error")
	}
}
