package visa

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Porter defines the minimal interface needed for an instrument port.
// This abstraction enables unit testing without real hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// DeadlinePorter is implemented by ports that support absolute deadlines,
// such as net.Conn. PortLink sets one per request when a timeout is
// configured.
type DeadlinePorter interface {
	Porter
	SetDeadline(t time.Time) error
}

// PortLink is a Link speaking newline-terminated SCPI over a byte stream.
type PortLink[T Porter] struct {
	port    T
	reader  *bufio.Reader
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewPortLink wraps port. A zero timeout disables per-request deadlines.
func NewPortLink[T Porter](port T, timeout time.Duration) *PortLink[T] {
	return &PortLink[T]{
		port:    port,
		reader:  bufio.NewReaderSize(port, 64*1024),
		timeout: timeout,
	}
}

// Write sends a command to the instrument.
func (l *PortLink[T]) Write(command string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.send(command); err != nil {
		return transportErr("write", command, err)
	}
	return nil
}

// Query sends command and reads a single line reply.
func (l *PortLink[T]) Query(command string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.send(command); err != nil {
		return "", transportErr("query", command, err)
	}
	line, err := l.reader.ReadString('\n')
	if err != nil {
		return "", transportErr("query", command, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// QueryBinary sends command and reads an IEEE 488.2 definite-length block.
func (l *PortLink[T]) QueryBinary(command string, expected int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.send(command); err != nil {
		return nil, transportErr("query_binary", command, err)
	}
	data, err := ReadBlock(l.reader, expected)
	if err != nil {
		return nil, transportErr("query_binary", command, err)
	}
	// Most instruments follow the block with a terminator.
	if l.reader.Buffered() > 0 {
		if b, _ := l.reader.Peek(1); len(b) == 1 && b[0] == '\n' {
			_, _ = l.reader.ReadByte()
		}
	}
	return data, nil
}

// Close closes the underlying port. Further calls fail with ErrClosed.
func (l *PortLink[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}

func (l *PortLink[T]) send(command string) error {
	if l.closed {
		return ErrClosed
	}
	if dp, ok := any(l.port).(DeadlinePorter); ok && l.timeout > 0 {
		if err := dp.SetDeadline(time.Now().Add(l.timeout)); err != nil {
			return err
		}
	}
	// drop anything left over from an earlier reply
	if n := l.reader.Buffered(); n > 0 {
		_, _ = l.reader.Discard(n)
	}
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := l.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// MaxBlockLength bounds the payload length a block header may announce.
const MaxBlockLength = 64 << 20

// ReadBlock reads one definite-length block, "#<n><length><payload>", and
// returns the payload. sizeHint only preallocates; the buffer grows with
// the bytes actually received.
func ReadBlock(r *bufio.Reader, sizeHint int) ([]byte, error) {
	lead, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if lead != '#' {
		return nil, fmt.Errorf("%w: lead byte %q", ErrBadBlock, lead)
	}
	digit, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if digit < '1' || digit > '9' {
		return nil, fmt.Errorf("%w: header width %q", ErrBadBlock, digit)
	}
	width := int(digit - '0')
	header := make([]byte, width)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length, err := strconv.Atoi(string(header))
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: length %q", ErrBadBlock, header)
	}
	if length > MaxBlockLength {
		return nil, fmt.Errorf("%w: length %d exceeds %d", ErrBadBlock, length, MaxBlockLength)
	}

	var payload bytes.Buffer
	payload.Grow(min(max(sizeHint, 0), length))
	if _, err := io.CopyN(&payload, r, int64(length)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %v", ErrBadBlock, err)
	}
	return payload.Bytes(), nil
}

// EncodeBlock formats payload as a definite-length block.
func EncodeBlock(payload []byte) []byte {
	length := strconv.Itoa(len(payload))
	out := make([]byte, 0, 2+len(length)+len(payload))
	out = append(out, '#', byte('0'+len(length)))
	out = append(out, length...)
	return append(out, payload...)
}
