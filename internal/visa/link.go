// Package visa provides the instrument link used by every driver in this
// module: a synchronous write/query/binary-query channel to a single SCPI
// instrument over a serial port or a raw TCP socket.
package visa

import (
	"errors"
	"fmt"
)

var (
	ErrWriteFailed = errors.New("short write to instrument")
	ErrClosed      = errors.New("instrument link closed")
	ErrBadBlock    = errors.New("malformed binary block")
)

// Link is the minimal set of operations a driver needs from an instrument
// connection. Each call blocks until the instrument replies or the transport
// times out. A Link is owned by a single caller; implementations in this
// package serialise concurrent use but drivers never rely on that.
type Link interface {
	// Write sends a command that produces no reply.
	Write(command string) error
	// Query sends a command and returns the text reply without its
	// terminator.
	Query(command string) (string, error)
	// QueryBinary sends a command and returns the payload of the binary
	// block reply with the header stripped. expected is a sizing hint; the
	// delivered length is whatever the block header declares.
	QueryBinary(command string, expected int) ([]byte, error)
}

// TransportError reports a failed link operation. Op is one of "write",
// "query" or "query_binary".
type TransportError struct {
	Op      string
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportErr(op, command string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Command: command, Err: err}
}
