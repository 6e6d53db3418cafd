// Package presencetest provides an in-memory presence.Cache for tests.
package presencetest

import (
	"context"
	"sort"
	"sync"

	"github.com/pixil98/go-netplay/internal/game"
)

// Cache records every call. Setting Err makes every call fail with it.
type Cache struct {
	mu        sync.Mutex
	online    map[string]struct{}
	positions map[string]game.Position
	saves     map[string]int
	Err       error
}

func NewCache() *Cache {
	return &Cache{
		online:    map[string]struct{}{},
		positions: map[string]game.Position{},
		saves:     map[string]int{},
	}
}

func (c *Cache) MarkOnline(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.online[id] = struct{}{}
	return nil
}

func (c *Cache) MarkOffline(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	delete(c.online, id)
	return nil
}

func (c *Cache) OnlineIds(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	ids := make([]string, 0, len(c.online))
	for id := range c.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *Cache) SavePosition(_ context.Context, id string, pos game.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.positions[id] = pos
	c.saves[id]++
	return nil
}

// SetErr makes every later call fail with err, or succeed again when err is
// nil. Unlike assigning Err it is safe while the cache is in use.
func (c *Cache) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// IsOnline reports whether id is in the online set.
func (c *Cache) IsOnline(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.online[id]
	return ok
}

// OnlineCount returns the size of the online set.
func (c *Cache) OnlineCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.online)
}

// Position returns the last saved position of id.
func (c *Cache) Position(id string) (game.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.positions[id]
	return p, ok
}

// Saves returns how many times a position was saved for id.
func (c *Cache) Saves(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves[id]
}
