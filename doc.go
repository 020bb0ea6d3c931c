// Package relcache caches relational query results behind deterministic keys
// and entity-type invalidation tags, with an optional per-entity-type
// "cooldown" that throttles how often writes may flush cached entries.
//
// Components:
//   - KeyEncoder: canonical, collision-resistant key for a query shape
//     (entity, eager-load relations, clauses, columns, id scoping), plus an
//     opaque caller differentiator.
//   - TagDeriver: one invalidation tag per distinct entity type a query
//     touches, eager-loaded relations included.
//   - CooldownPolicy: decides per write whether to flush tags now or absorb
//     the write until the cooldown window lapses. State persists in the
//     store itself so replicas share the window.
//   - Gateway: the facade combining the above with a store.Store and a
//     codec.Codec[V].
//
// Keys:
//
//	<ns>:<prefix>:<Entity>:<digest><differentiator>  - cached results
//	<ns>:<prefix>:<Entity>-cooldown:seconds          - cooldown state
//	<ns>:<prefix>:<Entity>-cooldown:invalidated-at
//	<ns>:<prefix>:<Entity>-cooldown:saved-at
//
// Read pattern:
//
//	key, _ := gw.Key(q, nil, "", tenant)
//	rows, err := gw.Remember(ctx, key, gw.Tags(q), 0, func() ([]Order, error) {
//	    return loadFromDB(ctx, q)
//	})
//
// Write pattern (after create/update/delete of an entity):
//
//	_ = gw.Flush(ctx, relcache.Query{Entity: "Order"})
//
// Stores without tagging (ristretto, bigcache) degrade flush-by-tag to a
// no-op; pair them with TTLs, or use the redis or memory store for real tag
// invalidation. Store failures are surfaced, never retried; treat a failed
// read as a cache miss and fall back to the database.
package relcache
