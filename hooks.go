package relcache

import "time"

// Hooks are lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking; the gateway and the
// cooldown policy call them on hot paths. Wrap with hooks/async to offload
// slow sinks.
type Hooks interface {
	// A keyed read hit or missed the store.
	Hit(key string)
	Miss(key string)

	// A tag flush completed for an entity type. tagCount is the number of
	// tags flushed.
	Flushed(entity string, tagCount int)

	// A write was absorbed inside an open cooldown window.
	CooldownAbsorbed(entity string, remaining time.Duration)

	// A cooldown window lapsed and its persisted state was cleared.
	CooldownExpired(entity string)

	// Flush-by-tag was requested but the bound store has no tagging
	// capability; the flush degraded to a no-op.
	TaggingUnsupported(tagCount int)

	// A store call failed. op ∈ {"get", "set", "forget", "flush"}.
	StoreError(op string, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Hit(string)                             {}
func (NopHooks) Miss(string)                            {}
func (NopHooks) Flushed(string, int)                    {}
func (NopHooks) CooldownAbsorbed(string, time.Duration) {}
func (NopHooks) CooldownExpired(string)                 {}
func (NopHooks) TaggingUnsupported(int)                 {}
func (NopHooks) StoreError(string, error)               {}
