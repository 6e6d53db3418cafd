package listener

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pixil98/go-netplay/internal/player"
	"github.com/pixil98/go-netplay/internal/session"
)

type SessionRunner interface {
	RunSession(context.Context, session.Transport) error
}

type ConnectionManager struct {
	runner SessionRunner
}

func NewConnectionManager(runner SessionRunner) *ConnectionManager {
	return &ConnectionManager{
		runner: runner,
	}
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn session.Transport) {
	err := m.runner.RunSession(ctx, conn)
	switch {
	case err == nil:
	case errors.Is(err, player.ErrAuth):
		slog.InfoContext(ctx, "connection rejected", "error", err)
	default:
		slog.WarnContext(ctx, "player session", "error", err)
	}
}
