package game

import (
	"context"
	"log/slog"
)

// StateLogger periodically reports what the world holds.
type StateLogger struct {
	world *World
}

func NewStateLogger(world *World) *StateLogger {
	return &StateLogger{world: world}
}

func (l *StateLogger) Tick(ctx context.Context) error {
	players := l.world.Players()
	npcs := l.world.NPCs()

	slog.InfoContext(ctx, "world state", "players", len(players), "npcs", len(npcs))
	for _, p := range players {
		slog.DebugContext(ctx, "player", "id", p.Id, "name", p.DisplayName, "x", p.Pos.X, "y", p.Pos.Y)
	}
	for _, n := range npcs {
		slog.DebugContext(ctx, "npc", "id", n.Id, "archetype", n.Archetype, "x", n.Pos.X, "y", n.Pos.Y)
	}

	return nil
}
