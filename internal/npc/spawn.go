package npc

import (
	"fmt"
	"math/rand/v2"

	"github.com/pixil98/go-netplay/internal/game"
)

// Spawn adds every NPC described by src to the world, each on a random
// walkable tile when the map has one. It returns how many were spawned.
func Spawn(world *game.World, src ArchetypeSource, rnd *rand.Rand) (int, error) {
	grid := world.Map()
	open := walkableTiles(grid)

	spawned := 0
	for _, id := range src.Ids() {
		a, ok := src.Get(id)
		if !ok {
			continue
		}

		for range a.Count {
			e := game.NewNPC(id, randomTile(grid, open, rnd))
			e.DisplayName = a.Name
			if err := world.AddNPC(e); err != nil {
				return spawned, fmt.Errorf("spawning %s: %w", id, err)
			}
			spawned++
		}
	}

	return spawned, nil
}

func walkableTiles(grid *game.Grid) []game.Position {
	var open []game.Position
	for y := range grid.Height() {
		for x := range grid.Width() {
			if grid.Walkable(x, y) {
				open = append(open, game.Position{X: float64(x), Y: float64(y)})
			}
		}
	}
	return open
}

func randomTile(grid *game.Grid, open []game.Position, rnd *rand.Rand) game.Position {
	if len(open) > 0 {
		return open[rnd.IntN(len(open))]
	}
	return game.Position{
		X: float64(rnd.IntN(grid.Width())),
		Y: float64(rnd.IntN(grid.Height())),
	}
}
