// Package store defines the storage abstraction used by relcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended or
// appended metadata, no re-encoding, no mutation). If a store performs internal
// transforms (e.g., compression), they MUST be fully reversed so that the bytes
// returned by Get are identical to the bytes provided to Set.
//
// A Store is a plain key/value surface. Stores that can group entries under
// invalidation tags additionally implement TagStore; relcache detects the
// capability at runtime and degrades flush-by-tag to a no-op when it is
// missing. See each adapter's package documentation for its degradation
// behavior.
package store

import (
	"context"
	"time"
)

// Store is a minimal byte store with optional TTLs.
// Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. ttl <= 0 means the entry does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Forget removes a key. Removing an absent key is not an error.
	Forget(ctx context.Context, key string) error

	// Flush removes every entry the store holds.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// TagStore is the optional tagging capability. Entries written through
// SetTagged become members of each tag's invalidation scope; FlushTags removes
// every entry written under any of the given tags. Entries written through
// plain Set belong to no tag and survive FlushTags.
type TagStore interface {
	Store

	// SetTagged stores value under key and records key under each tag.
	SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error

	// FlushTags removes all entries recorded under any of tags, and the tag
	// bookkeeping itself. Unknown tags are ignored.
	FlushTags(ctx context.Context, tags ...string) error
}
