package command

import (
	"fmt"
	"math/rand/v2"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-netplay/internal/game"
)

type WorldConfig struct {
	Width              int     `json:"width"`
	Height             int     `json:"height"`
	BlockedProbability float64 `json:"blocked_probability"`
	ClampNpcs          *bool   `json:"clamp_npcs,omitempty"`
}

func (c *WorldConfig) Validate() error {
	el := errors.NewErrorList()

	if c.Width <= 0 {
		el.Add(fmt.Errorf("width must be positive"))
	}
	if c.Height <= 0 {
		el.Add(fmt.Errorf("height must be positive"))
	}
	if c.BlockedProbability < 0 || c.BlockedProbability >= 1 {
		el.Add(fmt.Errorf("blocked_probability must be in [0,1)"))
	}

	return el.Err()
}

func (c *WorldConfig) BuildWorld(rnd *rand.Rand) (*game.World, error) {
	grid, err := game.GenerateMap(c.Width, c.Height, c.BlockedProbability, rnd)
	if err != nil {
		return nil, err
	}

	clamp := true
	if c.ClampNpcs != nil {
		clamp = *c.ClampNpcs
	}

	return game.NewWorld(grid, game.WithRand(rnd), game.WithClampedNPCs(clamp)), nil
}
