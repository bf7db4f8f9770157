package visa

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockCall records one operation issued against a MockLink.
type MockCall struct {
	Op       string
	Command  string
	Expected int
}

// MockLink is a scripted Link for tests. Query replies come from Replies;
// binary replies from Binary, or a zero-filled slice of the expected length
// when Binary is nil.
type MockLink struct {
	mu sync.Mutex

	// Replies maps query commands to their text replies.
	Replies map[string]string

	// Binary produces the payload for the n-th (1-based) binary query.
	Binary func(n int, command string, expected int) ([]byte, error)

	// FailAt makes the n-th (1-based) call of any kind fail with Err.
	FailAt int

	// FailBinaryAt makes the n-th (1-based) binary query fail with Err.
	FailBinaryAt int

	// Err is the cause reported by injected failures.
	Err error

	// Calls records every operation in order.
	Calls []MockCall

	binaryCalls int
}

// NewMockLink creates a MockLink with the given query replies.
func NewMockLink(replies map[string]string) *MockLink {
	if replies == nil {
		replies = make(map[string]string)
	}
	return &MockLink{Replies: replies}
}

func (m *MockLink) record(op, command string, expected int) error {
	m.Calls = append(m.Calls, MockCall{Op: op, Command: command, Expected: expected})
	if m.FailAt > 0 && len(m.Calls) == m.FailAt {
		return transportErr(op, command, m.failure())
	}
	return nil
}

func (m *MockLink) failure() error {
	if m.Err != nil {
		return m.Err
	}
	return errors.New("injected failure")
}

// Write records the command.
func (m *MockLink) Write(command string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("write", command, 0)
}

// Query returns the scripted reply for command.
func (m *MockLink) Query(command string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("query", command, 0); err != nil {
		return "", err
	}
	reply, ok := m.Replies[command]
	if !ok {
		return "", transportErr("query", command, fmt.Errorf("no scripted reply"))
	}
	return reply, nil
}

// QueryBinary returns the scripted binary payload.
func (m *MockLink) QueryBinary(command string, expected int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("query_binary", command, expected); err != nil {
		return nil, err
	}
	m.binaryCalls++
	if m.FailBinaryAt > 0 && m.binaryCalls == m.FailBinaryAt {
		return nil, transportErr("query_binary", command, m.failure())
	}
	if m.Binary != nil {
		data, err := m.Binary(m.binaryCalls, command, expected)
		if err != nil {
			return nil, transportErr("query_binary", command, err)
		}
		return data, nil
	}
	return make([]byte, expected), nil
}

// Writes returns the commands sent with Write, in order.
func (m *MockLink) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Calls {
		if c.Op == "write" {
			out = append(out, c.Command)
		}
	}
	return out
}

// BinaryCalls returns the recorded binary queries.
func (m *MockLink) BinaryCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.Calls {
		if c.Op == "query_binary" {
			out = append(out, c)
		}
	}
	return out
}

// TestablePort implements Porter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes, errors, and latency.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// Respond, when set, is called with every written command (terminator
	// stripped) and its result is queued for reading.
	Respond func(command string) []byte

	// WriteLatency adds a delay to each Write call
	WriteLatency time.Duration

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite makes Write report one byte fewer than requested
	ShortWrite bool

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// WriteCalls records the number of Write calls
	WriteCalls int

	// Deadline is the last deadline set through SetDeadline
	Deadline time.Time
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read reads from the read buffer, optionally returning an injected error.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	if t.Closed {
		return 0, ErrClosed
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	return t.ReadBuffer.Read(p)
}

// Write captures p and queues any scripted reply.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, ErrClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	if t.WriteLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.WriteLatency)
		t.mu.Lock()
	}

	n, _ := t.WriteBuffer.Write(p)
	if t.Respond != nil {
		if reply := t.Respond(strings.TrimRight(string(p), "\r\n")); reply != nil {
			t.ReadBuffer.Write(reply)
		}
	}
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, nil
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return t.CloseError
}

// SetDeadline implements DeadlinePorter.
func (t *TestablePort) SetDeadline(d time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Deadline = d
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
}

// GetWrittenData returns all data written to the port.
func (t *TestablePort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.Bytes()
}
