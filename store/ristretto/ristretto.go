// Package ristretto adapts dgraph-io/ristretto as a relcache Store.
//
// Ristretto has no tagging capability, so this store does not implement
// TagStore: flush-by-tag degrades to a no-op at the gateway. Use it when the
// working set is hot, single-process, and short-TTL, or pair query caching
// with the redis store for shared invalidation.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

type Store struct {
	c *rc.Cache
}

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (p *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	// admission may reject the write under pressure; a rejected cache fill is
	// a miss on the next read, not an error
	if ttl > 0 {
		p.c.SetWithTTL(key, value, int64(len(value)), ttl)
	} else {
		p.c.Set(key, value, int64(len(value)))
	}
	return nil
}

func (p *Store) Forget(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Store) Flush(_ context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Store) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters for the application (not part of the
// store.Store surface).
func (p *Store) Metrics() *rc.Metrics { return p.c.Metrics }
