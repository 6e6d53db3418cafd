package command

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-netplay/internal/admin"
	"github.com/pixil98/go-netplay/internal/broadcast"
	"github.com/pixil98/go-netplay/internal/driver"
	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/listener"
	"github.com/pixil98/go-netplay/internal/logging"
	"github.com/pixil98/go-netplay/internal/npc"
	"github.com/pixil98/go-netplay/internal/player"
	"github.com/pixil98/go-netplay/internal/session"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	logger, closeLogs, err := logging.New(cfg.Logging.Options())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	slog.SetDefault(logger)

	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))

	// Build the world and populate it
	world, err := cfg.World.BuildWorld(rnd)
	if err != nil {
		return nil, fmt.Errorf("creating world: %w", err)
	}
	archetypes, err := cfg.Npcs.BuildArchetypes()
	if err != nil {
		return nil, fmt.Errorf("loading npc archetypes: %w", err)
	}
	spawned, err := npc.Spawn(world, archetypes, rnd)
	if err != nil {
		return nil, fmt.Errorf("spawning npcs: %w", err)
	}
	if spawned == 0 {
		return nil, fmt.Errorf("no npcs configured in %s", cfg.Npcs.Path)
	}
	slog.Info("world created", "width", cfg.World.Width, "height", cfg.World.Height, "npcs", spawned)

	// Presence must be reachable before any connection is accepted
	natsServer, err := cfg.Nats.BuildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	ctx := context.Background()
	if err := natsServer.Connect(ctx); err != nil {
		return nil, fmt.Errorf("starting nats server: %w", err)
	}
	kv, cache, err := cfg.Presence.BuildCache(ctx, natsServer.JetStream())
	if err != nil {
		natsServer.Close()
		return nil, fmt.Errorf("opening presence cache: %w", err)
	}

	store, err := cfg.Identity.BuildStore()
	if err != nil {
		natsServer.Close()
		return nil, fmt.Errorf("opening identity store: %w", err)
	}

	sessions := session.NewRegistry()
	bcast := broadcast.NewBroadcaster(sessions)

	pmOpts, err := cfg.Session.PlayerManagerOpts()
	if err != nil {
		natsServer.Close()
		return nil, err
	}
	pmOpts = append(pmOpts, cfg.Listener.PlayerManagerOpts()...)
	pm := player.NewPlayerManager(world, sessions, bcast, cache, store, pmOpts...)

	npcDriver := driver.NewDriver([]driver.Manager{
		npc.NewTicker(world, cache, bcast, npc.WithSaveTimeout(cfg.tickInterval())),
	}, driver.WithName("npc"), driver.WithTickLength(cfg.tickInterval()))

	diagnosticsDriver := driver.NewDriver([]driver.Manager{
		game.NewStateLogger(world),
		player.NewIdleReaper(sessions, cfg.Session.idleTimeout()),
	}, driver.WithName("diagnostics"), driver.WithTickLength(cfg.diagnosticsInterval()))

	workers := service.WorkerList{
		"nats":               natsServer,
		"npc-driver":         npcDriver,
		"diagnostics-driver": diagnosticsDriver,
		"players":            pm,
		"listener":           cfg.Listener.BuildListener(listener.NewConnectionManager(pm)),
		"closer":             closer{store.Close, closeLogs},
	}
	if cfg.Admin.Port != 0 {
		workers["admin"] = admin.NewServer(cfg.Admin.Port, store, kv, world)
	}

	return workers, nil
}

// closer releases resources once the app is shutting down.
type closer []func() error

func (c closer) Start(ctx context.Context) error {
	<-ctx.Done()

	el := errors.NewErrorList()
	for _, f := range c {
		el.Add(f())
	}
	return el.Err()
}
