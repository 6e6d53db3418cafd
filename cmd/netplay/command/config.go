package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

const DefaultDiagnosticsInterval = 5 * time.Second

type Config struct {
	TickInterval        string         `json:"tick_interval"`
	DiagnosticsInterval string         `json:"diagnostics_interval"`
	World               WorldConfig    `json:"world"`
	Npcs                NpcConfig      `json:"npcs"`
	Listener            ListenerConfig `json:"listener"`
	Session             SessionConfig  `json:"session"`
	Identity            IdentityConfig `json:"identity"`
	Presence            PresenceConfig `json:"presence"`
	Nats                NatsConfig     `json:"nats"`
	Admin               AdminConfig    `json:"admin"`
	Logging             LoggingConfig  `json:"logging"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		el.Add(fmt.Errorf("parsing tick_interval: %w", err))
	} else if d < time.Second {
		el.Add(fmt.Errorf("tick_interval must be at least 1 second"))
	}

	if d, err := parseDuration(c.DiagnosticsInterval, DefaultDiagnosticsInterval); err != nil {
		el.Add(fmt.Errorf("parsing diagnostics_interval: %w", err))
	} else if d <= 0 {
		el.Add(fmt.Errorf("diagnostics_interval must be positive"))
	}

	el.Add(section("world", c.World.Validate()))
	el.Add(section("npcs", c.Npcs.Validate()))
	el.Add(section("listener", c.Listener.Validate()))
	el.Add(section("session", c.Session.Validate()))
	el.Add(section("identity", c.Identity.Validate()))
	el.Add(section("presence", c.Presence.Validate()))
	el.Add(section("nats", c.Nats.Validate()))
	el.Add(section("logging", c.Logging.Validate()))

	return el.Err()
}

func (c *Config) tickInterval() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

func (c *Config) diagnosticsInterval() time.Duration {
	d, _ := parseDuration(c.DiagnosticsInterval, DefaultDiagnosticsInterval)
	return d
}

func section(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// parseDuration parses s, returning def when s is empty.
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
