package player

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixil98/go-netplay/internal/session"
)

const DefaultIdleTimeout = 5 * time.Minute

// IdleReaper kicks sessions that have not sent anything for longer than the
// idle timeout. Kicked sessions go through the normal disconnect path.
type IdleReaper struct {
	sessions *session.Registry
	timeout  time.Duration
}

func NewIdleReaper(sessions *session.Registry, timeout time.Duration) *IdleReaper {
	return &IdleReaper{
		sessions: sessions,
		timeout:  timeout,
	}
}

func (r *IdleReaper) Tick(ctx context.Context) error {
	if r.timeout <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-r.timeout)
	for _, s := range r.sessions.Sessions() {
		if s.LastActivity().Before(cutoff) {
			s.Kick()
			slog.InfoContext(ctx, "idle player kicked", "playerId", s.PlayerId(), "lastActivity", s.LastActivity())
		}
	}

	return nil
}
