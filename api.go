package relcache

import (
	"context"
	"time"

	cd "github.com/mycarrysun/relcache/codec"
	st "github.com/mycarrysun/relcache/store"
)

// Gateway is the high-level, store-agnostic cache facade for relational query
// results. V is the caller's result type; serialization is handled by a
// pluggable codec.Codec[V].
//
// Read paths derive a key and tag set for a Query, then Remember the result.
// Write paths call Flush, which routes through the cooldown policy to decide
// between an immediate tag flush and a deferred one.
type Gateway[V any] interface {
	// Cachable reports whether this gateway caches at all. False when caching
	// was disabled globally in Options or via Disabled().
	Cachable() bool
	Close(context.Context) error

	// Keying
	Key(q Query, columns []string, idColumn, differentiator string) (string, error)
	Tags(q Query) []string

	// Reads
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Remember(ctx context.Context, key string, tags []string, ttl time.Duration, produce func() (V, error)) (V, error)
	RememberForever(ctx context.Context, key string, tags []string, produce func() (V, error)) (V, error)

	// Writes / invalidation
	Forget(ctx context.Context, key string) error
	// Flush is the write-path invalidation: derives q's tags when none are
	// given and lets the cooldown policy decide whether to flush now.
	Flush(ctx context.Context, q Query, tags ...string) error
	// Invalidate flushes unconditionally, bypassing the cooldown window.
	Invalidate(ctx context.Context, q Query, tags ...string) error
	// ReapExpired clears a lapsed cooldown window for entity and flushes.
	ReapExpired(ctx context.Context, entity string) error
	// FlushAll clears the bound store entirely.
	FlushAll(ctx context.Context) error

	// Using rebinds the gateway to a named store from Options.Stores.
	Using(name string) (Gateway[V], bool)
	// Disabled returns a view of this gateway that caches nothing; reads
	// miss, Remember always produces, flushes are no-ops.
	Disabled() Gateway[V]

	// Policy exposes the cooldown state machine for persistence code.
	Policy() *CooldownPolicy
}

// Options tune a Gateway. Store and Codec are required; everything else has
// defaults. There is no global configuration: each gateway carries its own.
type Options[V any] struct {
	// Namespace is the root key namespace; "" => "relcache". Together with
	// Prefix it forms the key/tag prefix "<Namespace>:" or
	// "<Namespace>:<Prefix>:".
	Namespace string
	// Prefix is the optional configured cache prefix (deployment/tenant
	// scoping inside a shared store).
	Prefix string

	Store  st.Store            // required; default store
	Stores map[string]st.Store // optional named stores, selectable via Using
	Codec  cd.Codec[V]         // required

	Logger     Logger           // nil => NopLogger
	Hooks      Hooks            // nil => NopHooks
	DefaultTTL time.Duration    // TTL for Remember(ttl=0); 0 => 10m
	Disabled   bool             // default false (enabled)
	Cooldown   CooldownOptions  // write-invalidation throttling
	Now        func() time.Time // wall clock; nil => time.Now
}

func New[V any](opts Options[V]) (Gateway[V], error) {
	return newGateway[V](opts)
}
