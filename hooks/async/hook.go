// Package asynchook decouples hook sinks from the cache hot path: events are
// queued and delivered by worker goroutines; when the queue is full events
// are dropped rather than blocking a read or flush.
package asynchook

import (
	"sync"
	"time"

	"github.com/mycarrysun/relcache"
)

type Hooks struct {
	inner relcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ relcache.Hooks = (*Hooks)(nil)

func New(inner relcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Hit(k string)             { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k string)            { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) Flushed(e string, n int)  { h.try(func() { h.inner.Flushed(e, n) }) }
func (h *Hooks) CooldownExpired(e string) { h.try(func() { h.inner.CooldownExpired(e) }) }
func (h *Hooks) TaggingUnsupported(n int) { h.try(func() { h.inner.TaggingUnsupported(n) }) }
func (h *Hooks) CooldownAbsorbed(e string, rem time.Duration) {
	h.try(func() { h.inner.CooldownAbsorbed(e, rem) })
}
func (h *Hooks) StoreError(op string, err error) {
	h.try(func() { h.inner.StoreError(op, err) })
}
