package websocket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockMessage is a frame read from or written to a MockConnection.
type MockMessage struct {
	Type int
	Data []byte
	Err  error
}

// MockConnection is an in-memory Connection. Reads block until the test
// feeds a message or closes the connection.
type MockConnection struct {
	mu          sync.Mutex
	closed      bool
	closeOnce   sync.Once
	done        chan struct{}
	incoming    chan MockMessage
	written     chan MockMessage
	readLimit   int64
	pongHandler func(string) error
}

func NewMockConnection() *MockConnection {
	return &MockConnection{
		done:     make(chan struct{}),
		incoming: make(chan MockMessage, 16),
		written:  make(chan MockMessage, 64),
	}
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errors.New("connection closed")
	}
	m.written <- MockMessage{Type: messageType, Data: data}
	return nil
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-m.incoming:
		return msg.Type, msg.Data, msg.Err
	case <-m.done:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *MockConnection) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	return nil
}

func (m *MockConnection) SetReadDeadline(time.Time) error  { return nil }
func (m *MockConnection) SetWriteDeadline(time.Time) error { return nil }

func (m *MockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readLimit = limit
}

func (m *MockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pongHandler = h
}

func (m *MockConnection) RemoteAddr() string { return "127.0.0.1:50000" }

// Feed queues a frame for ReadMessage.
func (m *MockConnection) Feed(messageType int, data []byte, err error) {
	m.incoming <- MockMessage{Type: messageType, Data: data, Err: err}
}

// NextWrite waits for the next written frame.
func (m *MockConnection) NextWrite(t *testing.T) MockMessage {
	t.Helper()
	select {
	case msg := <-m.written:
		return msg
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for a write")
		return MockMessage{}
	}
}

// IsClosed reports whether Close was called.
func (m *MockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
