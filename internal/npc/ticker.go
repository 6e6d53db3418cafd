package npc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-netplay/internal/broadcast"
	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/presence"
	"github.com/pixil98/go-netplay/internal/protocol"
)

const DefaultSaveTimeout = time.Second

// Ticker advances every NPC one step per tick, sends the new positions to
// all players in one batch and then records them in the presence cache.
type Ticker struct {
	world       *game.World
	presence    presence.Cache
	bcast       *broadcast.Broadcaster
	saveTimeout time.Duration
}

type TickerOpt func(*Ticker)

// WithSaveTimeout bounds how long one tick spends writing NPC positions to
// the presence cache. Writes still running when it expires are abandoned.
func WithSaveTimeout(d time.Duration) TickerOpt {
	return func(t *Ticker) {
		if d > 0 {
			t.saveTimeout = d
		}
	}
}

func NewTicker(world *game.World, cache presence.Cache, bcast *broadcast.Broadcaster, opts ...TickerOpt) *Ticker {
	t := &Ticker{
		world:       world,
		presence:    cache,
		bcast:       bcast,
		saveTimeout: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Ticker) Tick(ctx context.Context) error {
	npcs := t.world.Tick()

	batch := &protocol.NpcBatchUpdate{NPCs: make([]protocol.NpcPosition, 0, len(npcs))}
	for _, n := range npcs {
		batch.NPCs = append(batch.NPCs, protocol.NpcPosition{NpcId: n.Id, X: n.Pos.X, Y: n.Pos.Y})
	}

	sent := t.bcast.ToAll(ctx, batch)
	slog.DebugContext(ctx, "npc tick", "npcs", len(npcs), "recipients", sent)

	t.save(ctx, npcs)
	return nil
}

func (t *Ticker) save(ctx context.Context, npcs []game.Entity) {
	ctx, cancel := context.WithTimeout(ctx, t.saveTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, n := range npcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := t.presence.SavePosition(ctx, n.Id, n.Pos); err != nil {
				slog.WarnContext(ctx, "saving npc position", "npcId", n.Id, "error", err)
			}
		}()
	}
	wg.Wait()
}
