package command

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-netplay/internal/presence"
)

const DefaultBucketPrefix = "netplay"

var bucketPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type PresenceConfig struct {
	BucketPrefix string `json:"bucket_prefix"`
	Retries      int    `json:"retries"`
	RetryBackoff string `json:"retry_backoff"`
}

func (c *PresenceConfig) Validate() error {
	el := errors.NewErrorList()

	if c.BucketPrefix != "" && !bucketPattern.MatchString(c.BucketPrefix) {
		el.Add(fmt.Errorf("bucket_prefix must be alphanumeric"))
	}
	if c.Retries < 0 {
		el.Add(fmt.Errorf("retries must not be negative"))
	}
	if _, err := parseDuration(c.RetryBackoff, presence.DefaultBackoff); err != nil {
		el.Add(fmt.Errorf("parsing retry_backoff: %w", err))
	}

	return el.Err()
}

// BuildCache opens the presence buckets. Failing here fails startup.
func (c *PresenceConfig) BuildCache(ctx context.Context, js jetstream.JetStream) (*presence.KVCache, *presence.Retrying, error) {
	prefix := c.BucketPrefix
	if prefix == "" {
		prefix = DefaultBucketPrefix
	}

	kv, err := presence.NewKVCache(ctx, js, prefix)
	if err != nil {
		return nil, nil, err
	}
	if err := kv.ClearOnline(ctx); err != nil {
		return nil, nil, err
	}

	var opts []presence.RetryOpt
	if c.Retries > 0 {
		opts = append(opts, presence.WithAttempts(c.Retries+1))
	}
	if d, err := parseDuration(c.RetryBackoff, presence.DefaultBackoff); err == nil {
		opts = append(opts, presence.WithBackoff(d))
	}

	return kv, presence.NewRetrying(kv, opts...), nil
}
