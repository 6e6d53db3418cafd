package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/pixil98/go-netplay/internal/game"
)

var ErrNotFound = errors.New("no presence record")

// KVCache keeps presence in two JetStream key-value buckets: one for the
// online set and one for last known positions.
type KVCache struct {
	online    jetstream.KeyValue
	positions jetstream.KeyValue
}

// NewKVCache creates (or reuses) the buckets named after prefix.
func NewKVCache(ctx context.Context, js jetstream.JetStream, prefix string) (*KVCache, error) {
	online, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      prefix + "_online",
		Description: "ids of players currently joined",
	})
	if err != nil {
		return nil, fmt.Errorf("creating online bucket: %w", err)
	}

	positions, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      prefix + "_positions",
		Description: "last known entity positions",
	})
	if err != nil {
		return nil, fmt.Errorf("creating positions bucket: %w", err)
	}

	return &KVCache{online: online, positions: positions}, nil
}

func (c *KVCache) MarkOnline(ctx context.Context, id string) error {
	_, err := c.online.Put(ctx, id, []byte(time.Now().UTC().Format(time.RFC3339)))
	if err != nil {
		return fmt.Errorf("marking %s online: %w", id, err)
	}
	return nil
}

func (c *KVCache) MarkOffline(ctx context.Context, id string) error {
	err := c.online.Delete(ctx, id)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("marking %s offline: %w", id, err)
	}
	return nil
}

func (c *KVCache) OnlineIds(ctx context.Context) ([]string, error) {
	lister, err := c.online.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing online ids: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	ids := []string{}
	for k := range lister.Keys() {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *KVCache) SavePosition(ctx context.Context, id string, pos game.Position) error {
	data, err := json.Marshal(Record{X: pos.X, Y: pos.Y, LastUpdate: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshalling position: %w", err)
	}

	if _, err := c.positions.Put(ctx, id, data); err != nil {
		return fmt.Errorf("saving position of %s: %w", id, err)
	}
	return nil
}

// Position returns the last saved position of id.
func (c *KVCache) Position(ctx context.Context, id string) (Record, error) {
	entry, err := c.positions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Record{}, fmt.Errorf("loading position of %s: %w", id, err)
	}

	var r Record
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return Record{}, fmt.Errorf("unmarshalling position of %s: %w", id, err)
	}
	return r, nil
}

// ClearOnline empties the online set. Entries left by a previous run of the
// process are stale once it restarts.
func (c *KVCache) ClearOnline(ctx context.Context) error {
	ids, err := c.OnlineIds(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.MarkOffline(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether the backing store answers.
func (c *KVCache) Ping(ctx context.Context) error {
	_, err := c.online.Status(ctx)
	return err
}
