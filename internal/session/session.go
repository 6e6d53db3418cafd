package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultSendQueue = 64

// Transport is the connection a session talks over. Close must be safe to call
// concurrently with ReadMessage and WriteMessage.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Session binds an authenticated player to its transport.
type Session struct {
	playerId string
	username string
	conn     Transport

	send chan []byte
	done chan struct{}
	once sync.Once

	lastActivity atomic.Int64
}

type SessionOpt func(*Session)

// WithSendQueue sets how many outbound messages may wait for the writer.
func WithSendQueue(n int) SessionOpt {
	return func(s *Session) {
		if n > 0 {
			s.send = make(chan []byte, n)
		}
	}
}

func New(playerId, username string, conn Transport, opts ...SessionOpt) *Session {
	s := &Session{
		playerId: playerId,
		username: username,
		conn:     conn,
		send:     make(chan []byte, DefaultSendQueue),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.Touch()
	return s
}

func (s *Session) PlayerId() string {
	return s.playerId
}

func (s *Session) Username() string {
	return s.username
}

// Enqueue queues data for the writer without blocking. It reports false when
// the message was dropped because the session is closed or its queue is full.
func (s *Session) Enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// WritePump writes queued messages until the session is kicked or a write
// fails. A failed write kicks the session so its reader notices.
func (s *Session) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.conn.WriteMessage(msg); err != nil {
				s.Kick()
				return
			}
		}
	}
}

// Kick closes the transport and signals the session is over.
// It is safe to call multiple times; subsequent calls are no-ops.
func (s *Session) Kick() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done returns the channel that is closed when the session is kicked.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}
