package relcache

import (
	"context"
	"time"

	cd "github.com/mycarrysun/relcache/codec"
	st "github.com/mycarrysun/relcache/store"
)

const defaultTTL = 10 * time.Minute

type gateway[V any] struct {
	namespace   string
	cachePrefix string

	keys    *KeyEncoder
	deriver *TagDeriver
	store   st.Store
	tagged  st.TagStore // nil when the bound store lacks tagging
	stores  map[string]st.Store
	codec   cd.Codec[V]
	policy  *CooldownPolicy

	log        Logger
	hooks      Hooks
	enabled    bool
	defaultTTL time.Duration
	now        func() time.Time
	cooldown   CooldownOptions
}

func newGateway[V any](opts Options[V]) (*gateway[V], error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Codec == nil {
		return nil, ErrNoCodec
	}

	g := &gateway[V]{
		namespace:   coalesce(opts.Namespace, "relcache"),
		cachePrefix: opts.Prefix,
		stores:      opts.Stores,
		codec:       opts.Codec,
		enabled:     !opts.Disabled,
		cooldown:    opts.Cooldown,
	}

	// defaults
	g.log = coalesce[Logger](opts.Logger, NopLogger{})
	g.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	g.defaultTTL = coalesce(opts.DefaultTTL, defaultTTL)
	g.now = opts.Now
	if g.now == nil {
		g.now = time.Now
	}

	keys, err := NewKeyEncoder(g.namespace, g.cachePrefix)
	if err != nil {
		return nil, err
	}
	g.keys = keys
	g.deriver = NewTagDeriver(g.namespace, g.cachePrefix)
	g.bind(opts.Store)
	return g, nil
}

// bind points the gateway (and its cooldown policy) at a store, detecting the
// tagging capability.
func (g *gateway[V]) bind(s st.Store) {
	g.store = s
	g.tagged, _ = s.(st.TagStore)
	g.policy = NewCooldownPolicy(CooldownPolicyConfig{
		Store:       s,
		Flusher:     g,
		Namespace:   g.namespace,
		CachePrefix: g.cachePrefix,
		Cooldown:    g.cooldown,
		Now:         g.now,
		Logger:      g.log,
		Hooks:       g.hooks,
	})
}

func (g *gateway[V]) Cachable() bool { return g.enabled }

func (g *gateway[V]) Close(ctx context.Context) error {
	for _, s := range g.stores {
		if s != g.store {
			_ = s.Close(ctx)
		}
	}
	return g.store.Close(ctx)
}

func (g *gateway[V]) Key(q Query, columns []string, idColumn, differentiator string) (string, error) {
	return g.keys.Key(q, columns, idColumn, differentiator)
}

func (g *gateway[V]) Tags(q Query) []string { return g.deriver.Tags(q) }

func (g *gateway[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !g.enabled {
		return zero, false, nil
	}
	raw, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.hooks.StoreError("get", err)
		return zero, false, err
	}
	if !ok {
		g.hooks.Miss(key)
		return zero, false, nil
	}
	v, err := g.codec.Decode(raw)
	if err != nil {
		// self-heal: a payload this gateway cannot decode is useless to it
		_ = g.store.Forget(ctx, key)
		g.log.Warn("dropped undecodable entry", Fields{"key": key, "err": err})
		g.hooks.Miss(key)
		return zero, false, nil
	}
	g.hooks.Hit(key)
	return v, true, nil
}

func (g *gateway[V]) Remember(ctx context.Context, key string, tags []string, ttl time.Duration, produce func() (V, error)) (V, error) {
	var zero V
	if !g.enabled {
		return produce()
	}
	if v, ok, err := g.Get(ctx, key); err != nil {
		return zero, err
	} else if ok {
		return v, nil
	}
	v, err := produce()
	if err != nil {
		// nothing cached on producer failure
		return zero, err
	}
	raw, err := g.codec.Encode(v)
	if err != nil {
		return zero, err
	}
	if ttl == 0 {
		ttl = g.defaultTTL
	}
	if err := g.set(ctx, key, raw, ttl, tags); err != nil {
		g.hooks.StoreError("set", err)
		return zero, err
	}
	return v, nil
}

func (g *gateway[V]) RememberForever(ctx context.Context, key string, tags []string, produce func() (V, error)) (V, error) {
	return g.Remember(ctx, key, tags, -1, produce)
}

// set writes through the tagging capability when present; otherwise the entry
// is untagged and only key-level or full flushes can remove it.
func (g *gateway[V]) set(ctx context.Context, key string, raw []byte, ttl time.Duration, tags []string) error {
	if ttl < 0 {
		ttl = 0 // forever per store contract
	}
	if g.tagged != nil && len(tags) > 0 {
		return g.tagged.SetTagged(ctx, key, raw, ttl, tags...)
	}
	return g.store.Set(ctx, key, raw, ttl)
}

func (g *gateway[V]) Forget(ctx context.Context, key string) error {
	if !g.enabled {
		return nil
	}
	if err := g.store.Forget(ctx, key); err != nil {
		g.hooks.StoreError("forget", err)
		return err
	}
	return nil
}

// FlushTags implements Flusher for the cooldown policy. Without a tagging
// store the flush degrades to a no-op; callers must tolerate this (entries
// then age out by TTL only).
func (g *gateway[V]) FlushTags(ctx context.Context, tags ...string) error {
	if !g.enabled || len(tags) == 0 {
		return nil
	}
	if g.tagged == nil {
		g.hooks.TaggingUnsupported(len(tags))
		g.log.Debug("store has no tag support; flush-by-tag skipped", Fields{"tags": len(tags)})
		return nil
	}
	if err := g.tagged.FlushTags(ctx, tags...); err != nil {
		g.hooks.StoreError("flush", err)
		return err
	}
	return nil
}

func (g *gateway[V]) Flush(ctx context.Context, q Query, tags ...string) error {
	if !g.enabled {
		return nil
	}
	if len(tags) == 0 {
		tags = g.deriver.Tags(q)
	}
	return g.policy.FlushAfterWrite(ctx, q.Entity, tags)
}

func (g *gateway[V]) Invalidate(ctx context.Context, q Query, tags ...string) error {
	if !g.enabled {
		return nil
	}
	if len(tags) == 0 {
		tags = g.deriver.Tags(q)
	}
	return g.policy.Flush(ctx, q.Entity, tags)
}

func (g *gateway[V]) ReapExpired(ctx context.Context, entity string) error {
	if !g.enabled {
		return nil
	}
	return g.policy.ReapExpired(ctx, entity)
}

func (g *gateway[V]) FlushAll(ctx context.Context) error {
	if !g.enabled {
		return nil
	}
	if err := g.store.Flush(ctx); err != nil {
		g.hooks.StoreError("flush", err)
		return err
	}
	return nil
}

func (g *gateway[V]) Using(name string) (Gateway[V], bool) {
	s, ok := g.stores[name]
	if !ok {
		return nil, false
	}
	view := *g
	view.bind(s)
	return &view, true
}

func (g *gateway[V]) Disabled() Gateway[V] {
	view := *g
	view.enabled = false
	return &view
}

func (g *gateway[V]) Policy() *CooldownPolicy { return g.policy }
