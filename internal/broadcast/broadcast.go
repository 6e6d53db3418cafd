package broadcast

import (
	"context"
	"log/slog"

	"github.com/pixil98/go-netplay/internal/protocol"
	"github.com/pixil98/go-netplay/internal/session"
)

// Broadcaster fans messages out to the sessions in a registry. Delivery is
// fire-and-forget: a recipient whose queue is full or closed is skipped and
// left for its own connection handler to clean up.
type Broadcaster struct {
	sessions *session.Registry
}

func NewBroadcaster(sessions *session.Registry) *Broadcaster {
	return &Broadcaster{sessions: sessions}
}

// ToOthers delivers m to every session except the sender's. It returns the
// number of sessions that accepted the message.
func (b *Broadcaster) ToOthers(ctx context.Context, senderId string, m protocol.Message) int {
	return b.fanOut(ctx, m, func(s *session.Session) bool {
		return s.PlayerId() != senderId
	})
}

// ToAll delivers m to every session.
func (b *Broadcaster) ToAll(ctx context.Context, m protocol.Message) int {
	return b.fanOut(ctx, m, func(*session.Session) bool { return true })
}

func (b *Broadcaster) fanOut(ctx context.Context, m protocol.Message, include func(*session.Session) bool) int {
	data, err := protocol.Encode(m)
	if err != nil {
		slog.ErrorContext(ctx, "encoding broadcast", "kind", m.Kind(), "error", err)
		return 0
	}

	delivered := 0
	for _, s := range b.sessions.Sessions() {
		if !include(s) {
			continue
		}
		if s.Enqueue(data) {
			delivered++
		} else {
			slog.DebugContext(ctx, "dropped broadcast", "kind", m.Kind(), "playerId", s.PlayerId())
		}
	}
	return delivered
}
