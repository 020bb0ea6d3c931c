package relcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStore is returned by New when no default store is configured.
	ErrNoStore = errors.New("relcache: store is required")
	// ErrNoCodec is returned by New when no codec is configured.
	ErrNoCodec = errors.New("relcache: codec is required")
)

// FlushError reports a failed invalidation: the store-level tag flush, the
// cooldown state update, or both. Store failures are propagated unchanged
// through Unwrap; relcache never retries them.
type FlushError struct {
	Entity   string
	TagsErr  error
	StateErr error
}

func (e *FlushError) Error() string {
	switch {
	case e.TagsErr != nil && e.StateErr != nil:
		return fmt.Sprintf("flush %q failed: tag flush and cooldown state failed: tags=%v; state=%v",
			e.Entity, e.TagsErr, e.StateErr)
	case e.TagsErr != nil:
		return fmt.Sprintf("flush %q: tag flush failed: %v", e.Entity, e.TagsErr)
	case e.StateErr != nil:
		return fmt.Sprintf("flush %q: cooldown state failed: %v", e.Entity, e.StateErr)
	default:
		return fmt.Sprintf("flush %q: unknown error", e.Entity)
	}
}

func (e *FlushError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.TagsErr != nil {
		errs = append(errs, e.TagsErr)
	}
	if e.StateErr != nil {
		errs = append(errs, e.StateErr)
	}
	return errs
}
