package game

import (
	"fmt"
	"math/rand/v2"
)

// Grid is the immutable walkability matrix of the map. Tiles are indexed
// [y][x].
type Grid struct {
	width  int
	height int
	tiles  [][]bool
}

// GenerateMap builds a grid where each tile is walkable with probability
// 1 - blockedProbability.
func GenerateMap(width, height int, blockedProbability float64, rnd *rand.Rand) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidMap, width, height)
	}
	if blockedProbability < 0 || blockedProbability >= 1 {
		return nil, fmt.Errorf("%w: blocked probability %v not in [0,1)", ErrInvalidMap, blockedProbability)
	}

	tiles := make([][]bool, height)
	for y := range tiles {
		row := make([]bool, width)
		for x := range row {
			row[x] = rnd.Float64() >= blockedProbability
		}
		tiles[y] = row
	}

	return &Grid{width: width, height: height, tiles: tiles}, nil
}

func (g *Grid) Width() int {
	return g.width
}

func (g *Grid) Height() int {
	return g.height
}

// Contains reports whether p lies within [0,width)x[0,height).
func (g *Grid) Contains(p Position) bool {
	return p.X >= 0 && p.X < float64(g.width) && p.Y >= 0 && p.Y < float64(g.height)
}

// Walkable reports whether the tile at (x, y) can be walked on. Out of bounds
// tiles are never walkable.
func (g *Grid) Walkable(x, y int) bool {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return false
	}
	return g.tiles[y][x]
}

// Tiles returns a copy of the walkability matrix.
func (g *Grid) Tiles() [][]bool {
	out := make([][]bool, len(g.tiles))
	for y, row := range g.tiles {
		out[y] = append([]bool(nil), row...)
	}
	return out
}
