// Package sessiontest provides an in-memory session.Transport for tests.
package sessiontest

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-netplay/internal/protocol"
)

var ErrWriteFailed = errors.New("write failed")

// Transport is an in-memory connection. Messages passed to Send are read by
// the server side; everything the server writes is recorded.
type Transport struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu         sync.Mutex
	written    [][]byte
	notify     chan struct{}
	failWrites bool
}

func NewTransport() *Transport {
	return &Transport{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
		notify:  make(chan struct{}, 1),
	}
}

// Send delivers raw data to the server side.
func (t *Transport) Send(data []byte) {
	t.inbound <- data
}

// SendMessage encodes and delivers m to the server side.
func (t *Transport) SendMessage(tb testing.TB, m protocol.Message) {
	tb.Helper()

	data, err := protocol.Encode(m)
	if err != nil {
		tb.Fatalf("encoding %s: %v", m.Kind(), err)
	}
	t.Send(data)
}

// FailWrites makes every later write fail.
func (t *Transport) FailWrites() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWrites = true
}

func (t *Transport) ReadMessage() ([]byte, error) {
	select {
	case <-t.closed:
		return nil, io.EOF
	default:
	}

	select {
	case <-t.closed:
		return nil, io.EOF
	case data := <-t.inbound:
		return data, nil
	}
}

func (t *Transport) WriteMessage(data []byte) error {
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	default:
	}

	t.mu.Lock()
	if t.failWrites {
		t.mu.Unlock()
		return ErrWriteFailed
	}
	t.written = append(t.written, data)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

func (t *Transport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *Transport) Closed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Messages decodes everything written so far.
func (t *Transport) Messages(tb testing.TB) []protocol.Message {
	tb.Helper()

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]protocol.Message, 0, len(t.written))
	for _, raw := range t.written {
		m, err := protocol.Decode(raw)
		if err != nil {
			tb.Fatalf("decoding written message %s: %v", raw, err)
		}
		out = append(out, m)
	}
	return out
}

// MessagesOf returns the written messages of one kind.
func (t *Transport) MessagesOf(tb testing.TB, kind protocol.Kind) []protocol.Message {
	tb.Helper()

	var out []protocol.Message
	for _, m := range t.Messages(tb) {
		if m.Kind() == kind {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor blocks until a message of the given kind has been written and
// returns the first one.
func (t *Transport) WaitFor(tb testing.TB, kind protocol.Kind) protocol.Message {
	tb.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if ms := t.MessagesOf(tb, kind); len(ms) > 0 {
			return ms[0]
		}
		select {
		case <-t.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			tb.Fatalf("timed out waiting for %s", kind)
			return nil
		}
	}
}

// WaitClosed blocks until the transport is closed.
func (t *Transport) WaitClosed(tb testing.TB) {
	tb.Helper()

	select {
	case <-t.closed:
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for transport to close")
	}
}
