// Package redis provides a Redis-backed TagStore.
//
// Tag membership is kept in Redis sets ("tag:<tag>" holding member keys), so
// tag flushes are visible to every replica sharing the server. FlushTags reads
// each tag set and deletes the members plus the set itself; this is
// best-effort across concurrent writers, matching relcache's invalidation
// guarantees.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	st "github.com/mycarrysun/relcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

const tagSetPrefix = "tag:"

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	keyPrefix   string
}

var _ st.TagStore = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client

	// KeyPrefix scopes Flush to keys matching "<KeyPrefix>*" via SCAN instead
	// of FLUSHDB. Leave empty only when the store owns the whole database.
	KeyPrefix string
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, keyPrefix: cfg.KeyPrefix}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // non-positive TTL means "no expiry" per store contract
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

// SetTagged writes the entry and its tag memberships in a single pipelined
// round-trip. Tag sets carry no TTL of their own; FlushTags removes them.
func (p *Redis) SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if len(tags) == 0 {
		return p.Set(ctx, key, value, ttl)
	}
	if ttl <= 0 {
		ttl = 0
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, t := range tags {
			pipe.SAdd(ctx, tagSetPrefix+t, key)
		}
		return nil
	})
	return err
}

func (p *Redis) FlushTags(ctx context.Context, tags ...string) error {
	for _, t := range tags {
		setKey := tagSetPrefix + t
		members, err := p.rdb.SMembers(ctx, setKey).Result()
		if err != nil && err != goredis.Nil {
			return err
		}
		_, err = p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			if len(members) > 0 {
				pipe.Del(ctx, members...)
			}
			pipe.Del(ctx, setKey)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Redis) Forget(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Flush removes keys under KeyPrefix via SCAN, or the whole database when no
// prefix is configured.
func (p *Redis) Flush(ctx context.Context) error {
	if p.keyPrefix == "" {
		return p.rdb.FlushDB(ctx).Err()
	}
	iter := p.rdb.Scan(ctx, 0, p.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := p.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
