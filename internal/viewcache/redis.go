package viewcache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/myrjola/runplan/internal/errors"
	goredis "github.com/redis/go-redis/v9"
)

const dialTimeout = 5 * time.Second

// Redis stores views in Redis under "<prefix>:<user id>" with a time to live.
type Redis struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to the Redis server at addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr, prefix string, ttl time.Duration) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(errors.Wrap(err, "redis ping", slog.String("addr", addr)), rdb.Close())
	}

	return &Redis{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (r *Redis) key(userID int64) string {
	return r.prefix + ":" + strconv.FormatInt(userID, 10)
}

// Get returns the payload stored for userID. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, userID int64) ([]byte, bool, error) {
	payload, err := r.rdb.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get", slog.Int64("user_id", userID))
	}
	return payload, true, nil
}

// Set stores payload with the cache TTL.
func (r *Redis) Set(ctx context.Context, userID int64, payload []byte) error {
	if err := r.rdb.Set(ctx, r.key(userID), payload, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set", slog.Int64("user_id", userID))
	}
	return nil
}

// Invalidate deletes the key of userID.
func (r *Redis) Invalidate(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, r.key(userID)).Err(); err != nil {
		return errors.Wrap(err, "redis del", slog.Int64("user_id", userID))
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
