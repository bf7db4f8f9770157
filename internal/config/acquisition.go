package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/benchlink/internal/scope"
	"github.com/banshee-data/benchlink/internal/specan"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

// DefaultConfigPath is the path to the canonical acquisition defaults file.
const DefaultConfigPath = "config/acquisition.defaults.json"

// AcquisitionConfig is the root benchctl configuration. Unset fields fall
// back to the defaults returned by the Get* methods, so partial files are
// safe.
type AcquisitionConfig struct {
	// Instrument link. Address wins over SerialPort when both are set.
	Address    *string `json:"address,omitempty"` // host or host:port
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`
	Timeout    *string `json:"timeout,omitempty"` // duration string like "5s"

	// Oscilloscope acquisition
	TransferLimit    *int    `json:"transfer_limit,omitempty"`
	MemoryDepth      *int    `json:"memory_depth,omitempty"`
	Channels         []int   `json:"channels,omitempty"`
	TimeBase         *string `json:"time_base,omitempty"`
	DisplayDivisions *int    `json:"display_divisions,omitempty"`

	// Spectrum analyzer sweep
	SpectrumCenterHz  *float64 `json:"spectrum_center_hz,omitempty"`
	SpectrumSpanHz    *float64 `json:"spectrum_span_hz,omitempty"`
	SpectrumRBWHz     *int     `json:"spectrum_rbw_hz,omitempty"`
	SpectrumVBWHz     *int     `json:"spectrum_vbw_hz,omitempty"`
	SpectrumSweepTime *string  `json:"spectrum_sweep_time,omitempty"` // "" or "auto" for automatic

	// Storage and debug surface
	DBPath      *string `json:"db_path,omitempty"`
	DebugListen *string `json:"debug_listen,omitempty"`
}

// EmptyAcquisitionConfig returns a config with every field unset.
func EmptyAcquisitionConfig() *AcquisitionConfig {
	return &AcquisitionConfig{}
}

// LoadAcquisitionConfig loads and validates a JSON config file. The file
// must have a .json extension and be at most 1MB.
func LoadAcquisitionConfig(path string) (*AcquisitionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAcquisitionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or the repository root. Panics on failure; intended for tests.
func MustLoadDefaultConfig() *AcquisitionConfig {
	for _, path := range []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
	} {
		if cfg, err := LoadAcquisitionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *AcquisitionConfig) Validate() error {
	if _, err := c.GetPortOptions().Normalise(); err != nil {
		return err
	}
	if c.Timeout != nil && *c.Timeout != "" {
		d, err := time.ParseDuration(*c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
	}
	if c.TransferLimit != nil && *c.TransferLimit <= 0 {
		return fmt.Errorf("transfer_limit must be positive, got %d", *c.TransferLimit)
	}
	if c.MemoryDepth != nil && *c.MemoryDepth < 0 {
		return fmt.Errorf("memory_depth must be non-negative, got %d", *c.MemoryDepth)
	}
	if len(c.Channels) > 0 {
		if err := scope.ValidateChannels(c.Channels); err != nil {
			return err
		}
	}
	if c.TimeBase != nil {
		if _, err := waveform.ParseTimeBase(*c.TimeBase); err != nil {
			return err
		}
	}
	if c.DisplayDivisions != nil && *c.DisplayDivisions <= 0 {
		return fmt.Errorf("display_divisions must be positive, got %d", *c.DisplayDivisions)
	}
	if c.SpectrumSpanHz != nil && *c.SpectrumSpanHz < 0 {
		return fmt.Errorf("spectrum_span_hz must be non-negative, got %g", *c.SpectrumSpanHz)
	}
	if c.SpectrumSweepTime != nil && *c.SpectrumSweepTime != "" && *c.SpectrumSweepTime != "auto" {
		if _, err := time.ParseDuration(*c.SpectrumSweepTime); err != nil {
			return fmt.Errorf("invalid spectrum_sweep_time '%s': %w", *c.SpectrumSweepTime, err)
		}
	}
	return nil
}

// GetAddress returns the instrument network address, or "" for none.
func (c *AcquisitionConfig) GetAddress() string {
	if c.Address == nil {
		return ""
	}
	return *c.Address
}

// GetSerialPort returns the serial device path, or "" for none.
func (c *AcquisitionConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetPortOptions returns the serial line settings; unset fields are left
// zero for PortOptions.Normalise to default.
func (c *AcquisitionConfig) GetPortOptions() visa.PortOptions {
	var o visa.PortOptions
	if c.BaudRate != nil {
		o.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		o.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		o.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		o.Parity = *c.Parity
	}
	return o
}

// GetTimeout returns the per-request I/O timeout.
func (c *AcquisitionConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetTransferLimit returns the samples per binary query.
func (c *AcquisitionConfig) GetTransferLimit() int {
	if c.TransferLimit == nil {
		return scope.DefaultTransferLimit
	}
	return *c.TransferLimit
}

// GetMemoryDepth returns the depth to program; 0 keeps the scope's own.
func (c *AcquisitionConfig) GetMemoryDepth() int {
	if c.MemoryDepth == nil {
		return 0
	}
	return *c.MemoryDepth
}

// GetChannels returns the channels to acquire.
func (c *AcquisitionConfig) GetChannels() []int {
	if len(c.Channels) == 0 {
		return []int{1}
	}
	return append([]int(nil), c.Channels...)
}

// GetTimeBase returns the time axis origin.
func (c *AcquisitionConfig) GetTimeBase() waveform.TimeBase {
	if c.TimeBase == nil {
		return waveform.RelativeTime
	}
	b, err := waveform.ParseTimeBase(*c.TimeBase)
	if err != nil {
		return waveform.RelativeTime
	}
	return b
}

// GetDisplayDivisions returns the horizontal divisions on screen.
func (c *AcquisitionConfig) GetDisplayDivisions() int {
	if c.DisplayDivisions == nil {
		return scope.DefaultDivisions
	}
	return *c.DisplayDivisions
}

// GetSpectrumSettings returns the analyzer sweep settings. The defaults
// cover 0-45 MHz at 100 Hz RBW and 30 Hz VBW.
func (c *AcquisitionConfig) GetSpectrumSettings() specan.Settings {
	s := specan.Settings{Center: 22.5e6, Span: 45e6, RBW: 100, VBW: 30}
	if c.SpectrumCenterHz != nil {
		s.Center = *c.SpectrumCenterHz
	}
	if c.SpectrumSpanHz != nil {
		s.Span = *c.SpectrumSpanHz
	}
	if c.SpectrumRBWHz != nil {
		s.RBW = *c.SpectrumRBWHz
	}
	if c.SpectrumVBWHz != nil {
		s.VBW = *c.SpectrumVBWHz
	}
	if c.SpectrumSweepTime != nil && *c.SpectrumSweepTime != "auto" {
		if d, err := time.ParseDuration(*c.SpectrumSweepTime); err == nil {
			s.SweepTime = d
		}
	}
	return s
}

// GetDBPath returns the capture database path.
func (c *AcquisitionConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "captures.db"
	}
	return *c.DBPath
}

// GetDebugListen returns the debug server listen address.
func (c *AcquisitionConfig) GetDebugListen() string {
	if c.DebugListen == nil || *c.DebugListen == "" {
		return "localhost:8090"
	}
	return *c.DebugListen
}
