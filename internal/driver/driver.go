package driver

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultTickLength = time.Second
)

type Manager interface {
	Tick(context.Context) error
}

// Driver runs its managers in order once per tick. Ticks never overlap; a
// tick that overruns delays the next one.
type Driver struct {
	name       string
	tickLength time.Duration
	managers   []Manager
}

func NewDriver(managers []Manager, opts ...DriverOpt) *Driver {
	d := &Driver{
		name:       "driver",
		tickLength: DefaultTickLength,
		managers:   managers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	slog.InfoContext(ctx, "driver started", "driver", d.name, "tickLength", d.tickLength)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs every manager once. A failing manager is logged and does not
// stop the others.
func (d *Driver) Tick(ctx context.Context) {
	for _, m := range d.managers {
		if err := m.Tick(ctx); err != nil {
			slog.ErrorContext(ctx, "tick failed", "driver", d.name, "error", err)
		}
	}
}
