package relcache

import (
	"github.com/mycarrysun/relcache/internal/canon"
)

// keyShape is the canonical representation hashed into a cache key. Every
// field that can change a query's result set appears here; the struct layout
// is part of the key contract, so changing it invalidates existing entries.
type keyShape struct {
	Entity    string   `cbor:"1,keyasint"`
	Relations []string `cbor:"2,keyasint"`
	Clauses   []Clause `cbor:"3,keyasint"`
	Columns   []string `cbor:"4,keyasint"`
	IDColumn  string   `cbor:"5,keyasint"`
}

// KeyEncoder turns a Query plus requested output columns into a deterministic
// cache key. Pure; performs no store access. Safe for concurrent use.
//
// Key layout: <prefix><entity>:<digest><differentiator>, where prefix is
// "<namespace>:" or "<namespace>:<cachePrefix>:" and digest is the truncated
// SHA-256 of the canonically encoded query shape. Two semantically identical
// queries always yield byte-identical keys; any difference in relations,
// clauses, columns, or id scoping yields a different key.
type KeyEncoder struct {
	prefix string
	enc    *canon.Encoder
}

// NewKeyEncoder creates a key encoder for the given root namespace and
// optional configured cache prefix.
func NewKeyEncoder(namespace, cachePrefix string) (*KeyEncoder, error) {
	enc, err := canon.NewEncoder()
	if err != nil {
		return nil, err
	}
	return &KeyEncoder{prefix: joinPrefix(namespace, cachePrefix), enc: enc}, nil
}

// Prefix returns the fully joined key prefix ("<namespace>:" or
// "<namespace>:<cachePrefix>:").
func (e *KeyEncoder) Prefix() string { return e.prefix }

// Key builds the cache key for q.
//
// columns are the requested output columns; nil/empty means all columns
// (recorded as ["*"]). idColumn, when set, marks the query as scoped to a
// single identifier column. differentiator is an opaque caller-supplied
// suffix appended verbatim, for separating otherwise-identical queries by
// external context (tenant, locale, id set).
func (e *KeyEncoder) Key(q Query, columns []string, idColumn, differentiator string) (string, error) {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	digest, err := e.enc.Digest(keyShape{
		Entity:    q.Entity,
		Relations: q.RelationPaths(),
		Clauses:   q.Clauses,
		Columns:   columns,
		IDColumn:  idColumn,
	})
	if err != nil {
		return "", err
	}
	return e.prefix + q.Entity + ":" + digest + differentiator, nil
}

// joinPrefix implements the persisted prefix contract:
// "<root-namespace>:" + (configured-cache-prefix + ":" if set).
func joinPrefix(namespace, cachePrefix string) string {
	p := namespace + ":"
	if cachePrefix != "" {
		p += cachePrefix + ":"
	}
	return p
}
