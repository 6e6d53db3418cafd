package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-netplay/internal/player"
)

type SessionConfig struct {
	IdleTimeout     string                 `json:"idle_timeout"`
	DuplicatePolicy player.DuplicatePolicy `json:"duplicate_policy"`
	WelcomeTemplate string                 `json:"welcome_template"`
}

func (c *SessionConfig) Validate() error {
	el := errors.NewErrorList()

	if d, err := parseDuration(c.IdleTimeout, player.DefaultIdleTimeout); err != nil {
		el.Add(fmt.Errorf("parsing idle_timeout: %w", err))
	} else if d < 0 {
		el.Add(fmt.Errorf("idle_timeout must not be negative"))
	}

	if c.WelcomeTemplate != "" {
		if _, err := player.ParseWelcomeTemplate(c.WelcomeTemplate); err != nil {
			el.Add(fmt.Errorf("parsing welcome_template: %w", err))
		}
	}

	return el.Err()
}

func (c *SessionConfig) idleTimeout() time.Duration {
	d, _ := parseDuration(c.IdleTimeout, player.DefaultIdleTimeout)
	return d
}

func (c *SessionConfig) PlayerManagerOpts() ([]player.PlayerManagerOpt, error) {
	opts := []player.PlayerManagerOpt{player.WithDuplicatePolicy(c.DuplicatePolicy)}

	if c.WelcomeTemplate != "" {
		tmpl, err := player.ParseWelcomeTemplate(c.WelcomeTemplate)
		if err != nil {
			return nil, fmt.Errorf("parsing welcome_template: %w", err)
		}
		opts = append(opts, player.WithWelcomeTemplate(tmpl))
	}

	return opts, nil
}
