package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/presence/presencetest"
	"github.com/pixil98/go-testutil"
)

// flakyCache fails the first n calls.
type flakyCache struct {
	*presencetest.Cache
	failures int
	calls    int
}

var errUnavailable = errors.New("unavailable")

func (f *flakyCache) SavePosition(ctx context.Context, id string, pos game.Position) error {
	f.calls++
	if f.calls <= f.failures {
		return errUnavailable
	}
	return f.Cache.SavePosition(ctx, id, pos)
}

func TestRetrying_SavePosition(t *testing.T) {
	tests := map[string]struct {
		failures int
		attempts int
		expErr   bool
		expCalls int
	}{
		"first try":      {failures: 0, attempts: 3, expCalls: 1},
		"recovers":       {failures: 2, attempts: 3, expCalls: 3},
		"gives up":       {failures: 5, attempts: 3, expErr: true, expCalls: 3},
		"single attempt": {failures: 1, attempts: 1, expErr: true, expCalls: 1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			inner := &flakyCache{Cache: presencetest.NewCache(), failures: tt.failures}
			r := NewRetrying(inner, WithAttempts(tt.attempts), WithBackoff(time.Millisecond))

			err := r.SavePosition(context.Background(), "p1", game.Position{X: 1, Y: 1})
			if tt.expErr {
				if !errors.Is(err, errUnavailable) {
					t.Errorf("expected errUnavailable, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			testutil.AssertEqual(t, "calls", inner.calls, tt.expCalls)
			_, saved := inner.Position("p1")
			testutil.AssertEqual(t, "saved", saved, !tt.expErr)
		})
	}
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	inner := &flakyCache{Cache: presencetest.NewCache(), failures: 100}
	r := NewRetrying(inner, WithAttempts(10), WithBackoff(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.SavePosition(ctx, "p1", game.Position{})
	if !errors.Is(err, errUnavailable) {
		t.Errorf("expected errUnavailable, got %v", err)
	}
	testutil.AssertEqual(t, "calls", inner.calls, 1)
}

func TestRetrying_PassesThrough(t *testing.T) {
	inner := presencetest.NewCache()
	r := NewRetrying(inner)
	ctx := context.Background()

	if err := r.MarkOnline(ctx, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, err := r.OnlineIds(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "online", len(ids), 1)

	if err := r.MarkOffline(ctx, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "online after", inner.IsOnline("p1"), false)
}
