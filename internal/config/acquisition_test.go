package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/benchlink/internal/scope"
	"github.com/banshee-data/benchlink/internal/specan"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultsFileMatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyAcquisitionConfig()

	if cfg.GetTimeout() != empty.GetTimeout() {
		t.Errorf("timeout: file %v, getter default %v", cfg.GetTimeout(), empty.GetTimeout())
	}
	if cfg.GetTransferLimit() != empty.GetTransferLimit() {
		t.Errorf("transfer_limit: file %d, getter default %d", cfg.GetTransferLimit(), empty.GetTransferLimit())
	}
	if cfg.GetMemoryDepth() != empty.GetMemoryDepth() {
		t.Errorf("memory_depth: file %d, getter default %d", cfg.GetMemoryDepth(), empty.GetMemoryDepth())
	}
	if cfg.GetDisplayDivisions() != empty.GetDisplayDivisions() {
		t.Errorf("display_divisions: file %d, getter default %d", cfg.GetDisplayDivisions(), empty.GetDisplayDivisions())
	}
	if cfg.GetTimeBase() != empty.GetTimeBase() {
		t.Errorf("time_base: file %v, getter default %v", cfg.GetTimeBase(), empty.GetTimeBase())
	}
	if cfg.GetSpectrumSettings() != empty.GetSpectrumSettings() {
		t.Errorf("spectrum: file %+v, getter default %+v", cfg.GetSpectrumSettings(), empty.GetSpectrumSettings())
	}
	if cfg.GetDBPath() != empty.GetDBPath() || cfg.GetDebugListen() != empty.GetDebugListen() {
		t.Errorf("storage defaults differ")
	}
	if normalised(t, cfg.GetPortOptions()) != normalised(t, empty.GetPortOptions()) {
		t.Errorf("port options: file %+v, getter default %+v", cfg.GetPortOptions(), empty.GetPortOptions())
	}
	if got := cfg.GetChannels(); len(got) != 1 || got[0] != 1 {
		t.Errorf("channels = %v, want [1]", got)
	}
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyAcquisitionConfig()

	if cfg.GetAddress() != "" || cfg.GetSerialPort() != "" {
		t.Errorf("expected no link configured")
	}
	if cfg.GetTimeout() != 10*time.Second {
		t.Errorf("GetTimeout() = %v, want 10s", cfg.GetTimeout())
	}
	if cfg.GetTransferLimit() != scope.DefaultTransferLimit {
		t.Errorf("GetTransferLimit() = %d", cfg.GetTransferLimit())
	}
	if cfg.GetTimeBase() != waveform.RelativeTime {
		t.Errorf("GetTimeBase() = %v, want relative", cfg.GetTimeBase())
	}
	want := specan.Settings{Center: 22.5e6, Span: 45e6, RBW: 100, VBW: 30}
	if got := cfg.GetSpectrumSettings(); got != want {
		t.Errorf("GetSpectrumSettings() = %+v, want %+v", got, want)
	}
}

func TestLoadAcquisitionConfig(t *testing.T) {
	path := writeConfig(t, "bench.json", `{
  "address": "192.168.1.50",
  "timeout": "2500ms",
  "transfer_limit": 125000,
  "memory_depth": 1200000,
  "channels": [1, 3],
  "time_base": "reference",
  "spectrum_sweep_time": "200ms",
  "db_path": "/var/lib/benchlink/captures.db"
}`)

	cfg, err := LoadAcquisitionConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetAddress() != "192.168.1.50" {
		t.Errorf("GetAddress() = %q", cfg.GetAddress())
	}
	if cfg.GetTimeout() != 2500*time.Millisecond {
		t.Errorf("GetTimeout() = %v", cfg.GetTimeout())
	}
	if cfg.GetTransferLimit() != 125000 || cfg.GetMemoryDepth() != 1200000 {
		t.Errorf("acquisition sizes = %d, %d", cfg.GetTransferLimit(), cfg.GetMemoryDepth())
	}
	if ch := cfg.GetChannels(); len(ch) != 2 || ch[1] != 3 {
		t.Errorf("GetChannels() = %v", ch)
	}
	if cfg.GetTimeBase() != waveform.ReferencedTime {
		t.Errorf("GetTimeBase() = %v", cfg.GetTimeBase())
	}
	if cfg.GetSpectrumSettings().SweepTime != 200*time.Millisecond {
		t.Errorf("sweep time = %v", cfg.GetSpectrumSettings().SweepTime)
	}
	// unset fields keep their defaults
	if cfg.GetDisplayDivisions() != scope.DefaultDivisions {
		t.Errorf("GetDisplayDivisions() = %d", cfg.GetDisplayDivisions())
	}
}

func TestLoadAcquisitionConfig_SerialOptions(t *testing.T) {
	path := writeConfig(t, "serial.json", `{"serial_port": "/dev/ttyUSB0", "baud_rate": 115200, "parity": "even"}`)
	cfg, err := LoadAcquisitionConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	want := visa.PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "E"}
	if normalised(t, cfg.GetPortOptions()) != want {
		t.Errorf("GetPortOptions() = %+v, want %+v", cfg.GetPortOptions(), want)
	}
}

func TestLoadAcquisitionConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{"timeout": }`, "parse"},
		{"bad timeout", `{"timeout": "soon"}`, "timeout"},
		{"negative timeout", `{"timeout": "-1s"}`, "timeout"},
		{"zero transfer limit", `{"transfer_limit": 0}`, "transfer_limit"},
		{"negative depth", `{"memory_depth": -1}`, "memory_depth"},
		{"channel out of range", `{"channels": [5]}`, "invalid channel"},
		{"duplicate channel", `{"channels": [2, 2]}`, "invalid channel"},
		{"bad time base", `{"time_base": "absolute"}`, "time base"},
		{"zero divisions", `{"display_divisions": 0}`, "display_divisions"},
		{"bad parity", `{"parity": "mark"}`, "parity"},
		{"bad data bits", `{"data_bits": 9}`, "data bits"},
		{"bad sweep time", `{"spectrum_sweep_time": "fast"}`, "spectrum_sweep_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "bad.json", tt.body)
			_, err := LoadAcquisitionConfig(path)
			if err == nil {
				t.Fatalf("LoadAcquisitionConfig succeeded, want error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadAcquisitionConfig_FileChecks(t *testing.T) {
	if _, err := LoadAcquisitionConfig(writeConfig(t, "bench.yaml", "{}")); err == nil {
		t.Error("expected error for non-.json extension")
	}
	if _, err := LoadAcquisitionConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	big := writeConfig(t, "big.json", `{"db_path": "`+strings.Repeat("x", 1024*1024)+`"}`)
	_, err := LoadAcquisitionConfig(big)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func normalised(t *testing.T, o visa.PortOptions) visa.PortOptions {
	t.Helper()
	n, err := o.Normalise()
	if err != nil {
		t.Fatalf("Normalise(%+v): %v", o, err)
	}
	return n
}
