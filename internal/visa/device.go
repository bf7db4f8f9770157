package visa

import (
	"fmt"
	"strconv"
	"strings"
)

// Identity is the parsed reply to "*IDN?".
type Identity struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Firmware     string `json:"firmware"`
}

func (id Identity) String() string {
	return strings.Join([]string{id.Manufacturer, id.Model, id.Serial, id.Firmware}, ",")
}

// ParseIdentity splits an "*IDN?" reply. Missing trailing fields are left
// empty; an empty reply is an error.
func ParseIdentity(reply string) (Identity, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Identity{}, fmt.Errorf("empty identification reply")
	}
	fields := strings.SplitN(reply, ",", 4)
	for len(fields) < 4 {
		fields = append(fields, "")
	}
	return Identity{
		Manufacturer: strings.TrimSpace(fields[0]),
		Model:        strings.TrimSpace(fields[1]),
		Serial:       strings.TrimSpace(fields[2]),
		Firmware:     strings.TrimSpace(fields[3]),
	}, nil
}

// InstrumentError is one entry of the instrument's error queue.
type InstrumentError struct {
	Code    int
	Message string
}

func (e InstrumentError) Error() string {
	return fmt.Sprintf("instrument error %d: %s", e.Code, e.Message)
}

// Device carries the IEEE 488.2 common commands shared by every
// instrument. Drivers embed it.
type Device struct {
	Link Link
}

// Identify queries "*IDN?".
func (d Device) Identify() (Identity, error) {
	reply, err := d.Link.Query("*IDN?")
	if err != nil {
		return Identity{}, err
	}
	return ParseIdentity(reply)
}

// Reset restores factory defaults. Volatile memory is not cleared.
func (d Device) Reset() error {
	return d.writeAll("*RST", "*WAI")
}

// Clear clears the event registers and the error queue.
func (d Device) Clear() error {
	return d.writeAll("*CLS", "*WAI")
}

// NextError pops one entry from the error queue. A nil error with ok false
// means the queue is empty.
func (d Device) NextError() (InstrumentError, bool, error) {
	reply, err := d.Link.Query(":SYSTem:ERRor?")
	if err != nil {
		return InstrumentError{}, false, err
	}
	ie, err := parseErrorEntry(reply)
	if err != nil {
		return InstrumentError{}, false, err
	}
	return ie, ie.Code != 0, nil
}

// QueryFloat sends a query and parses the first comma-separated value.
func (d Device) QueryFloat(command string) (float64, error) {
	reply, err := d.Link.Query(command)
	if err != nil {
		return 0, err
	}
	v, err := ParseFloat(reply)
	if err != nil {
		return 0, transportErr("query", command, err)
	}
	return v, nil
}

// QueryInt is QueryFloat truncated to an integer. Instruments commonly
// report integer settings in exponent form, e.g. "1.200000e+06".
func (d Device) QueryInt(command string) (int, error) {
	v, err := d.QueryFloat(command)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (d Device) writeAll(commands ...string) error {
	for _, c := range commands {
		if err := d.Link.Write(c); err != nil {
			return err
		}
	}
	return nil
}

// ParseFloat parses the first value of an ASCII reply.
func ParseFloat(reply string) (float64, error) {
	first, _, _ := strings.Cut(strings.TrimSpace(reply), ",")
	v, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse numeric reply %q: %w", reply, err)
	}
	return v, nil
}

func parseErrorEntry(reply string) (InstrumentError, error) {
	code, msg, _ := strings.Cut(strings.TrimSpace(reply), ",")
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return InstrumentError{}, fmt.Errorf("failed to parse error queue entry %q: %w", reply, err)
	}
	return InstrumentError{Code: n, Message: strings.Trim(strings.TrimSpace(msg), `"`)}, nil
}
