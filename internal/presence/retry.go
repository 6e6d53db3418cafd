package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixil98/go-netplay/internal/game"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 100 * time.Millisecond
)

// Retrying wraps a Cache and retries failed calls with exponential backoff.
// A call that still fails is logged and its error returned; callers treat it
// as best-effort.
type Retrying struct {
	next     Cache
	attempts int
	backoff  time.Duration
}

type RetryOpt func(*Retrying)

func WithAttempts(n int) RetryOpt {
	return func(r *Retrying) {
		if n > 0 {
			r.attempts = n
		}
	}
}

func WithBackoff(d time.Duration) RetryOpt {
	return func(r *Retrying) {
		r.backoff = d
	}
}

func NewRetrying(next Cache, opts ...RetryOpt) *Retrying {
	r := &Retrying{
		next:     next,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) MarkOnline(ctx context.Context, id string) error {
	return r.do(ctx, "mark online", id, func(ctx context.Context) error {
		return r.next.MarkOnline(ctx, id)
	})
}

func (r *Retrying) MarkOffline(ctx context.Context, id string) error {
	return r.do(ctx, "mark offline", id, func(ctx context.Context) error {
		return r.next.MarkOffline(ctx, id)
	})
}

func (r *Retrying) OnlineIds(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.do(ctx, "list online", "", func(ctx context.Context) error {
		var err error
		ids, err = r.next.OnlineIds(ctx)
		return err
	})
	return ids, err
}

func (r *Retrying) SavePosition(ctx context.Context, id string, pos game.Position) error {
	return r.do(ctx, "save position", id, func(ctx context.Context) error {
		return r.next.SavePosition(ctx, id, pos)
	})
}

func (r *Retrying) do(ctx context.Context, op, id string, fn func(context.Context) error) error {
	wait := r.backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.attempts {
			break
		}

		slog.WarnContext(ctx, "presence call failed, retrying", "op", op, "id", id, "attempt", attempt, "error", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			slog.ErrorContext(ctx, "presence call abandoned", "op", op, "id", id, "error", err)
			return err
		case <-t.C:
		}
		wait *= 2
	}

	slog.ErrorContext(ctx, "presence call failed", "op", op, "id", id, "attempts", r.attempts, "error", err)
	return err
}
