// Package codec serializes cached query results to and from bytes.
//
// relcache stores opaque []byte payloads; a Codec[V] decides how a result
// type V maps onto those bytes. JSON is the zero-config choice; Msgpack and
// CBOR are smaller and faster; Protobuf fits generated row types. Wrap any of
// them in Limit to cap payload size coming back from a shared store.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
