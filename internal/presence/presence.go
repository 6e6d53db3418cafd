package presence

import (
	"context"
	"time"

	"github.com/pixil98/go-netplay/internal/game"
)

// Cache is a best-effort store of who is online and where entities were last
// seen. It is never transactional with the world.
type Cache interface {
	MarkOnline(ctx context.Context, id string) error
	MarkOffline(ctx context.Context, id string) error
	OnlineIds(ctx context.Context) ([]string, error)
	SavePosition(ctx context.Context, id string, pos game.Position) error
}

// Record is the last known position of an entity.
type Record struct {
	X          float64   `json:"pos_x"`
	Y          float64   `json:"pos_y"`
	LastUpdate time.Time `json:"last_update"`
}
