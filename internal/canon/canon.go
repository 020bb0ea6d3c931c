// Package canon produces canonical, collision-resistant digests of query
// shapes for cache keying. Encoding is deterministic CBOR (RFC 8949 Core
// Deterministic: definite lengths, sorted map keys), so semantically identical
// inputs digest to identical bytes regardless of construction order.
package canon

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
)

// digestLen is the number of digest bytes kept (16 hex chars). Enough to make
// accidental collisions implausible while keeping keys short.
const digestLen = 8

// Encoder holds a deterministic CBOR encode mode. Safe for concurrent use.
type Encoder struct {
	enc cbor.EncMode
}

func NewEncoder() (*Encoder, error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return nil, err
	}
	return &Encoder{enc: em}, nil
}

// Digest canonically encodes v and returns the truncated hex SHA-256 of the
// encoding. Identical values always produce identical digests; any field
// difference changes the digest.
func (e *Encoder) Digest(v any) (string, error) {
	b, err := e.enc.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:digestLen]), nil
}
