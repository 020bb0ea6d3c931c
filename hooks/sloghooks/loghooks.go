// Package sloghooks logs cache events through log/slog, with sampling for the
// high-frequency hit/miss events and key redaction for shared log pipelines.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    HitMissEvery: 100, // sample: ~every 100th hit/miss
//	})
//	hooks := asynchook.New(raw, 1, 1000) // optional async fan-out
//	defer hooks.Close()
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mycarrysun/relcache"
)

type Options struct {
	// HitMissEvery samples hit/miss logging; 0/1 = log all.
	HitMissEvery uint64
	// Redact replaces keys before logging. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ relcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(key string) {
	if sample(h.opts.HitMissEvery, &h.hitCtr) {
		h.l.Debug("cache hit", "key", h.redact(key))
	}
}

func (h *Hooks) Miss(key string) {
	if sample(h.opts.HitMissEvery, &h.missCtr) {
		h.l.Debug("cache miss", "key", h.redact(key))
	}
}

func (h *Hooks) Flushed(entity string, tagCount int) {
	h.l.Info("tags flushed", "entity", entity, "tags", tagCount)
}

func (h *Hooks) CooldownAbsorbed(entity string, remaining time.Duration) {
	h.l.Debug("write absorbed by cooldown", "entity", entity, "remaining", remaining)
}

func (h *Hooks) CooldownExpired(entity string) {
	h.l.Info("cooldown window expired", "entity", entity)
}

func (h *Hooks) TaggingUnsupported(tagCount int) {
	h.l.Warn("store has no tag support; flush skipped", "tags", tagCount)
}

func (h *Hooks) StoreError(op string, err error) {
	h.l.Error("store error", "op", op, "err", err)
}
