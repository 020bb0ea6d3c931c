package relcache

import (
	"context"
	"strconv"
	"time"

	st "github.com/mycarrysun/relcache/store"
)

// ExemptionPolicy lets entity types opt out of cooldown throttling. Resolved
// at construction time, not via runtime introspection.
type ExemptionPolicy interface {
	// Exempt reports whether entity is excluded from cooldown throttling.
	Exempt(entity string) bool
}

// ExemptSet is an ExemptionPolicy over a fixed list of entity type names.
type ExemptSet map[string]struct{}

func NewExemptSet(entities ...string) ExemptSet {
	s := make(ExemptSet, len(entities))
	for _, e := range entities {
		s[e] = struct{}{}
	}
	return s
}

func (s ExemptSet) Exempt(entity string) bool {
	_, ok := s[entity]
	return ok
}

// CooldownOptions configure write-invalidation throttling per entity type.
type CooldownOptions struct {
	// Disabled turns cooldown off globally; every write then flushes.
	Disabled bool

	// Durations maps entity type names to their cooldown window. Types with
	// no entry, a zero, or a negative duration are not throttled.
	Durations map[string]time.Duration

	// Exempt lists entity type names excluded from cooldown even when a
	// duration is configured. Checked before Exemption.
	Exempt []string

	// Exemption, when set, is consulted after the Exempt list.
	Exemption ExemptionPolicy
}

// Cooldown is the persisted throttle state of one entity type.
type Cooldown struct {
	Duration      time.Duration
	InvalidatedAt time.Time
	SavedAt       time.Time
}

// Flusher performs store-level invalidation for a set of tags. The gateway
// implements it; the policy only decides when to call it.
type Flusher interface {
	FlushTags(ctx context.Context, tags ...string) error
}

// CooldownPolicy is the per-entity-type state machine that decides whether a
// write invalidates cached results immediately or is absorbed until the
// cooldown window lapses.
//
// State lives in the cache store itself under
// "<prefix><entity>-cooldown:{seconds,invalidated-at,saved-at}" so replicas
// sharing a store share the window. Values are ASCII decimals (seconds, unix
// seconds); the key names are a cross-deployment contract.
//
// Concurrent writers may race on these keys. The worst case is an extra flush
// or one absorbed write too many inside a single window; reads never see
// wrong rows because tags are flushed before the window re-arms.
type CooldownPolicy struct {
	store   st.Store
	flusher Flusher
	prefix  string
	opts    CooldownOptions
	exempt  map[string]struct{}
	now     func() time.Time
	log     Logger
	hooks   Hooks
}

// CooldownPolicyConfig wires a CooldownPolicy. Store and Flusher are
// required; Now defaults to time.Now, Logger and Hooks to no-ops.
type CooldownPolicyConfig struct {
	Store       st.Store
	Flusher     Flusher
	Namespace   string
	CachePrefix string
	Cooldown    CooldownOptions
	Now         func() time.Time
	Logger      Logger
	Hooks       Hooks
}

func NewCooldownPolicy(cfg CooldownPolicyConfig) *CooldownPolicy {
	p := &CooldownPolicy{
		store:   cfg.Store,
		flusher: cfg.Flusher,
		prefix:  joinPrefix(cfg.Namespace, cfg.CachePrefix),
		opts:    cfg.Cooldown,
		exempt:  make(map[string]struct{}, len(cfg.Cooldown.Exempt)),
		now:     cfg.Now,
		log:     cfg.Logger,
		hooks:   cfg.Hooks,
	}
	for _, e := range cfg.Cooldown.Exempt {
		p.exempt[e] = struct{}{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.log == nil {
		p.log = NopLogger{}
	}
	if p.hooks == nil {
		p.hooks = NopHooks{}
	}
	return p
}

// Cooldown reads the persisted state for entity. ok=false means cooldown does
// not apply: globally disabled, exempt-listed, exemption-policy match, or no
// positive duration configured, first match wins. On first use for a
// configured type the three state keys are seeded (duration from config,
// both timestamps = now), opening a fresh window.
func (p *CooldownPolicy) Cooldown(ctx context.Context, entity string) (Cooldown, bool, error) {
	if p.opts.Disabled {
		return Cooldown{}, false, nil
	}
	if _, ok := p.exempt[entity]; ok {
		return Cooldown{}, false, nil
	}
	if p.opts.Exemption != nil && p.opts.Exemption.Exempt(entity) {
		return Cooldown{}, false, nil
	}
	configured := p.opts.Durations[entity]
	if configured <= 0 {
		return Cooldown{}, false, nil
	}

	secKey, invKey, savKey := p.stateKeys(entity)
	secs, err := p.rememberInt64(ctx, secKey, func() int64 { return int64(configured / time.Second) })
	if err != nil {
		return Cooldown{}, false, err
	}
	if secs <= 0 {
		// Persisted zero/garbage duration means "not configured", never
		// "flush every time via elapsed>=0". Explicit short-circuit; the two
		// paths only coincide in observable behavior today.
		return Cooldown{}, false, nil
	}
	inv, err := p.rememberUnix(ctx, invKey)
	if err != nil {
		return Cooldown{}, false, err
	}
	sav, err := p.rememberUnix(ctx, savKey)
	if err != nil {
		return Cooldown{}, false, err
	}
	return Cooldown{
		Duration:      time.Duration(secs) * time.Second,
		InvalidatedAt: inv,
		SavedAt:       sav,
	}, true, nil
}

// Flush unconditionally flushes the given tags and, when cooldown applies to
// entity, records a fresh saved-at baseline for future windows.
func (p *CooldownPolicy) Flush(ctx context.Context, entity string, tags []string) error {
	if err := p.flusher.FlushTags(ctx, tags...); err != nil {
		return &FlushError{Entity: entity, TagsErr: err}
	}
	p.hooks.Flushed(entity, len(tags))
	_, ok, err := p.Cooldown(ctx, entity)
	if err != nil {
		return &FlushError{Entity: entity, StateErr: err}
	}
	if !ok {
		return nil
	}
	_, _, savKey := p.stateKeys(entity)
	if err := p.setUnix(ctx, savKey, p.now()); err != nil {
		return &FlushError{Entity: entity, StateErr: err}
	}
	return nil
}

// ReapExpired clears the persisted state and forces a full flush for entity
// once its window has lapsed. A no-op when cooldown does not apply or the
// window is still open. Expiry is measured from invalidated-at only;
// saved-at never extends the window.
func (p *CooldownPolicy) ReapExpired(ctx context.Context, entity string) error {
	cd, ok, err := p.Cooldown(ctx, entity)
	if err != nil || !ok {
		return err
	}
	if p.now().Sub(cd.InvalidatedAt) < cd.Duration {
		return nil
	}
	if err := p.forgetState(ctx, entity); err != nil {
		return err
	}
	p.hooks.CooldownExpired(entity)
	// treat as never set: the flush reseeds a fresh window
	return p.Flush(ctx, entity, []string{p.prefix + entity})
}

// FlushAfterWrite is the write-path decision. Without cooldown it flushes
// immediately. With cooldown it always records saved-at, then flushes only if
// the window measured from invalidated-at has lapsed; the flush clears
// invalidated-at so the next read of the state opens a fresh window. Writes
// inside the window are absorbed and cached reads stay valid.
func (p *CooldownPolicy) FlushAfterWrite(ctx context.Context, entity string, tags []string) error {
	cd, ok, err := p.Cooldown(ctx, entity)
	if err != nil {
		return err
	}
	if !ok {
		return p.Flush(ctx, entity, tags)
	}

	_, invKey, savKey := p.stateKeys(entity)
	if err := p.setUnix(ctx, savKey, p.now()); err != nil {
		return err
	}
	elapsed := p.now().Sub(cd.InvalidatedAt)
	if elapsed < cd.Duration {
		p.hooks.CooldownAbsorbed(entity, cd.Duration-elapsed)
		p.log.Debug("write absorbed by cooldown", Fields{
			"entity": entity, "remaining": (cd.Duration - elapsed).String(),
		})
		return nil
	}
	if err := p.store.Forget(ctx, invKey); err != nil {
		return err
	}
	return p.Flush(ctx, entity, tags)
}

// stateKeys returns the three persisted key names for entity. The naming is
// a bit-exact contract: "<prefix><entity>-cooldown:seconds" etc.
func (p *CooldownPolicy) stateKeys(entity string) (seconds, invalidatedAt, savedAt string) {
	base := p.prefix + entity + "-cooldown:"
	return base + "seconds", base + "invalidated-at", base + "saved-at"
}

func (p *CooldownPolicy) forgetState(ctx context.Context, entity string) error {
	secKey, invKey, savKey := p.stateKeys(entity)
	for _, k := range []string{secKey, invKey, savKey} {
		if err := p.store.Forget(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// rememberInt64 reads key as a decimal int64, seeding it forever via produce
// on a miss. Unparseable persisted values degrade to 0 (and from there to
// "cooldown disabled") rather than failing the write path.
func (p *CooldownPolicy) rememberInt64(ctx context.Context, key string, produce func() int64) (int64, error) {
	raw, ok, err := p.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		n, perr := strconv.ParseInt(string(raw), 10, 64)
		if perr != nil {
			p.log.Warn("unparseable cooldown value; treating as disabled", Fields{
				"key": key, "err": perr,
			})
			return 0, nil
		}
		return n, nil
	}
	n := produce()
	if err := p.store.Set(ctx, key, []byte(strconv.FormatInt(n, 10)), 0); err != nil {
		return 0, err
	}
	return n, nil
}

// rememberUnix reads key as unix seconds, seeding it with now on a miss.
func (p *CooldownPolicy) rememberUnix(ctx context.Context, key string) (time.Time, error) {
	n, err := p.rememberInt64(ctx, key, func() int64 { return p.now().Unix() })
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0), nil
}

func (p *CooldownPolicy) setUnix(ctx context.Context, key string, t time.Time) error {
	return p.store.Set(ctx, key, []byte(strconv.FormatInt(t.Unix(), 10)), 0)
}
