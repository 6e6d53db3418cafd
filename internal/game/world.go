package game

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
)

// World is the single source of truth for all entities and the map.
// All access must go through its methods to ensure thread-safety.
type World struct {
	mu       sync.RWMutex
	grid     *Grid
	entities map[string]*Entity
	players  map[string]struct{}
	npcs     map[string]struct{}

	rnd       *rand.Rand
	clampNPCs bool
}

type WorldOpt func(*World)

// WithRand sets the random source used by the NPC random walk.
func WithRand(rnd *rand.Rand) WorldOpt {
	return func(w *World) {
		w.rnd = rnd
	}
}

// WithClampedNPCs controls whether the NPC random walk is kept inside the map.
func WithClampedNPCs(clamp bool) WorldOpt {
	return func(w *World) {
		w.clampNPCs = clamp
	}
}

// NewWorld creates an empty world over the given grid.
func NewWorld(grid *Grid, opts ...WorldOpt) *World {
	w := &World{
		grid:      grid,
		entities:  make(map[string]*Entity),
		players:   make(map[string]struct{}),
		npcs:      make(map[string]struct{}),
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clampNPCs: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Map returns the world's grid. The grid is never mutated.
func (w *World) Map() *Grid {
	return w.grid
}

// AddPlayer registers a player entity.
func (w *World) AddPlayer(e Entity) error {
	if e.Kind != KindPlayer {
		return fmt.Errorf("adding %s as player", e.Kind)
	}
	return w.add(e, w.players)
}

// AddNPC registers an NPC entity.
func (w *World) AddNPC(e Entity) error {
	if e.Kind != KindNPC {
		return fmt.Errorf("adding %s as npc", e.Kind)
	}
	return w.add(e, w.npcs)
}

func (w *World) add(e Entity, ids map[string]struct{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.entities[e.Id]; exists {
		return fmt.Errorf("%w: %s", ErrConflict, e.Id)
	}

	w.entities[e.Id] = &e
	ids[e.Id] = struct{}{}
	return nil
}

// RemovePlayer removes a player entity and its id in one step.
func (w *World) RemovePlayer(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.players[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(w.players, id)
	delete(w.entities, id)
	return nil
}

// UpdatePosition moves an entity. Positions outside the map are rejected
// without touching the entity.
func (w *World) UpdatePosition(id string, pos Position) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !w.grid.Contains(pos) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, pos.X, pos.Y)
	}

	e.Pos = pos
	return nil
}

// Tick moves every NPC by -1, 0 or +1 on each axis and returns the resulting
// NPC states ordered by id.
func (w *World) Tick() []Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Entity, 0, len(w.npcs))
	for id := range w.npcs {
		e := w.entities[id]
		next := Position{
			X: e.Pos.X + float64(w.rnd.IntN(3)-1),
			Y: e.Pos.Y + float64(w.rnd.IntN(3)-1),
		}
		if w.clampNPCs {
			next = w.clamp(next)
		}
		e.Pos = next
		out = append(out, *e)
	}

	sortById(out)
	return out
}

// clamp keeps p on the last valid tile of each axis.
func (w *World) clamp(p Position) Position {
	maxX := float64(w.grid.Width() - 1)
	maxY := float64(w.grid.Height() - 1)
	return Position{
		X: math.Min(math.Max(p.X, 0), maxX),
		Y: math.Min(math.Max(p.Y, 0), maxY),
	}
}

// Entity returns a copy of the entity with the given id.
func (w *World) Entity(id string) (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, ok := w.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// PlayerIds returns the ids of all players, sorted.
func (w *World) PlayerIds() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.players)
}

// NPCIds returns the ids of all NPCs, sorted.
func (w *World) NPCIds() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.npcs)
}

// Players returns copies of all player entities ordered by id.
func (w *World) Players() []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.collect(w.players)
}

// NPCs returns copies of all NPC entities ordered by id.
func (w *World) NPCs() []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.collect(w.npcs)
}

func (w *World) collect(ids map[string]struct{}) []Entity {
	out := make([]Entity, 0, len(ids))
	for id := range ids {
		out = append(out, *w.entities[id])
	}
	sortById(out)
	return out
}

func sortById(es []Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].Id < es[j].Id })
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
