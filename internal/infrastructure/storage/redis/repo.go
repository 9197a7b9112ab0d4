package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pricebot/internal/application/port"
)

// Repo stores cache snapshots in a capped stream and announces them on a
// pub/sub channel.
type Repo struct {
	rdb            *redis.Client
	prefix         string
	ttl            time.Duration
	keyLatest      string // prefix + ":snapshot:latest"
	snapshotStream string
	snapshotChan   string
	maxLen         int64
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Repo {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "pricebot"
	}
	return &Repo{
		rdb:            rdb,
		prefix:         prefix,
		ttl:            ttl,
		keyLatest:      prefix + ":snapshot:latest",
		snapshotStream: prefix + ":snapshots",
		snapshotChan:   prefix + ":snapshots:pub",
		maxLen:         1000,
	}
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	// 1) Stream: XADD <stream> MAXLEN ~ 1000 * ts_ms payload
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.snapshotStream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"ts_ms":   ts,
			"payload": payload,
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) latest copy for readers that only need the newest one
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, "ts_ms", ts, "payload", payload)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// 3) PubSub: PUBLISH <channel> payload
	return r.rdb.Publish(ctx, r.snapshotChan, payload).Err()
}

var _ port.SnapshotRepository = (*Repo)(nil)
