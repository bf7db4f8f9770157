package visa

import (
	"fmt"
	"net"
	"os"
	"time"

	"go.bug.st/serial"
)

// DefaultPort is the raw SCPI socket port used by LXI instruments.
const DefaultPort = "5555"

// DialTCP connects to an instrument's raw SCPI socket. addr may omit the
// port, in which case DefaultPort is used.
func DialTCP(addr string, timeout time.Duration) (*PortLink[net.Conn], error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewPortLink[net.Conn](conn, timeout), nil
}

// TimeoutPort adapts a port whose Read returns (0, nil) when its read
// timeout expires, as go.bug.st/serial does, so the expiry surfaces as
// os.ErrDeadlineExceeded.
type TimeoutPort[T Porter] struct {
	Port T
}

func (p *TimeoutPort[T]) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

func (p *TimeoutPort[T]) Write(b []byte) (int, error) { return p.Port.Write(b) }

func (p *TimeoutPort[T]) Close() error { return p.Port.Close() }

// OpenSerial opens the instrument on a serial port with the given options.
// The timeout bounds each read; zero leaves reads blocking.
func OpenSerial(path string, opts PortOptions, timeout time.Duration) (*PortLink[*TimeoutPort[serial.Port]], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}

	return NewPortLink(&TimeoutPort[serial.Port]{Port: port}, 0), nil
}
