package relcache

import (
	"context"
	"errors"
	"testing"
	"time"

	cd "github.com/mycarrysun/relcache/codec"
	st "github.com/mycarrysun/relcache/store"
)

type memEntry struct {
	v    []byte
	tags []string
	exp  time.Time // zero => no TTL
}

// memStore is an in-test TagStore with full visibility into stored entries.
type memStore struct {
	m map[string]memEntry
}

var _ st.TagStore = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{m: make(map[string]memEntry)} }

func (p *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return nil
}

func (p *memStore) SetTagged(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, tags: tags, exp: exp}
	return nil
}

func (p *memStore) FlushTags(_ context.Context, tags ...string) error {
	for key, e := range p.m {
		for _, want := range tags {
			for _, have := range e.tags {
				if want == have {
					delete(p.m, key)
				}
			}
		}
	}
	return nil
}

func (p *memStore) Forget(_ context.Context, key string) error { delete(p.m, key); return nil }
func (p *memStore) Flush(_ context.Context) error              { p.m = make(map[string]memEntry); return nil }
func (p *memStore) Close(_ context.Context) error              { return nil }

// untaggedStore hides the tagging capability of an inner memStore.
type untaggedStore struct {
	inner *memStore
}

var _ st.Store = (*untaggedStore)(nil)

func (u *untaggedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return u.inner.Get(ctx, key)
}
func (u *untaggedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return u.inner.Set(ctx, key, value, ttl)
}
func (u *untaggedStore) Forget(ctx context.Context, key string) error {
	return u.inner.Forget(ctx, key)
}
func (u *untaggedStore) Flush(ctx context.Context) error { return u.inner.Flush(ctx) }
func (u *untaggedStore) Close(ctx context.Context) error { return u.inner.Close(ctx) }

// countingStore counts calls reaching the inner store.
type countingStore struct {
	inner *memStore
	calls int
}

var _ st.Store = (*countingStore)(nil)

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.calls++
	return c.inner.Get(ctx, key)
}
func (c *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.calls++
	return c.inner.Set(ctx, key, value, ttl)
}
func (c *countingStore) Forget(ctx context.Context, key string) error {
	c.calls++
	return c.inner.Forget(ctx, key)
}
func (c *countingStore) Flush(ctx context.Context) error { c.calls++; return c.inner.Flush(ctx) }
func (c *countingStore) Close(ctx context.Context) error { return c.inner.Close(ctx) }

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type order struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

func newTestGateway(t *testing.T, s st.Store, clk *fakeClock, optsOpt func(*Options[order])) Gateway[order] {
	t.Helper()
	opts := Options[order]{
		Store: s,
		Codec: cd.JSON[order]{},
		Now:   clk.Now,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	gw, err := New[order](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gw
}

func orderQuery() Query {
	return Query{
		Entity: "Order",
		Relations: []Relation{
			{Name: "items", Entity: "Item"},
		},
	}
}

// rememberOrder caches one order under q's derived key/tags and returns the key.
func rememberOrder(t *testing.T, gw Gateway[order], q Query, v order) string {
	t.Helper()
	ctx := context.Background()
	key, err := gw.Key(q, nil, "", "")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	got, err := gw.RememberForever(ctx, key, gw.Tags(q), func() (order, error) { return v, nil })
	if err != nil {
		t.Fatalf("RememberForever: %v", err)
	}
	if got != v {
		t.Fatalf("RememberForever returned %+v, want %+v", got, v)
	}
	return key
}

// ==============================
// Remember semantics
// ==============================

// TestRememberForeverReturnsFirstValue verifies the producer runs once: a
// second call with a producer that would return a different value still
// returns the first, cached value.
func TestRememberForeverReturnsFirstValue(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t, newMemStore(), newFakeClock(), nil)
	defer gw.Close(ctx)

	calls := 0
	produce := func() (order, error) {
		calls++
		return order{ID: "1", Total: calls}, nil
	}

	v1, err := gw.RememberForever(ctx, "k", nil, produce)
	if err != nil {
		t.Fatalf("RememberForever: %v", err)
	}
	v2, err := gw.RememberForever(ctx, "k", nil, produce)
	if err != nil {
		t.Fatalf("RememberForever (2nd): %v", err)
	}
	if calls != 1 {
		t.Fatalf("producer ran %d times, want 1", calls)
	}
	if v1 != v2 || v2.Total != 1 {
		t.Fatalf("second read returned %+v, want first value %+v", v2, v1)
	}
}

// TestProducerFailureCachesNothing ensures a failing producer propagates its
// error and leaves no poisoned entry behind.
func TestProducerFailureCachesNothing(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	gw := newTestGateway(t, ms, newFakeClock(), nil)
	defer gw.Close(ctx)

	boom := errors.New("db down")
	if _, err := gw.Remember(ctx, "k", nil, 0, func() (order, error) {
		return order{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Remember error = %v, want %v", err, boom)
	}
	if len(ms.m) != 0 {
		t.Fatalf("store holds %d entries after producer failure, want 0", len(ms.m))
	}

	// a later successful producer caches normally
	v, err := gw.Remember(ctx, "k", nil, 0, func() (order, error) {
		return order{ID: "1", Total: 7}, nil
	})
	if err != nil || v.Total != 7 {
		t.Fatalf("Remember after failure: v=%+v err=%v", v, err)
	}
}

// TestGetSelfHealsUndecodable verifies a payload the codec rejects is deleted
// and reported as a miss, not an error.
func TestGetSelfHealsUndecodable(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	gw := newTestGateway(t, ms, newFakeClock(), nil)
	defer gw.Close(ctx)

	if err := ms.Set(ctx, "bad", []byte("not-json"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := gw.Get(ctx, "bad"); err != nil || ok {
		t.Fatalf("Get on undecodable: ok=%v err=%v, want miss", ok, err)
	}
	if _, ok := ms.m["bad"]; ok {
		t.Fatalf("undecodable entry was not removed")
	}
}

// ==============================
// Disable semantics
// ==============================

func TestDisabledGatewayPassesThrough(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	gw := newTestGateway(t, ms, newFakeClock(), nil).Disabled()

	if gw.Cachable() {
		t.Fatalf("Disabled view reports Cachable")
	}
	calls := 0
	for i := 0; i < 2; i++ {
		if _, err := gw.Remember(ctx, "k", nil, 0, func() (order, error) {
			calls++
			return order{ID: "1"}, nil
		}); err != nil {
			t.Fatalf("Remember: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("disabled gateway cached: producer ran %d times, want 2", calls)
	}
	if len(ms.m) != 0 {
		t.Fatalf("disabled gateway wrote %d entries", len(ms.m))
	}
}

func TestGloballyDisabledOption(t *testing.T) {
	gw := newTestGateway(t, newMemStore(), newFakeClock(), func(o *Options[order]) {
		o.Disabled = true
	})
	if gw.Cachable() {
		t.Fatalf("Cachable true with Disabled option")
	}
}

// ==============================
// Tag flush and degradation
// ==============================

// TestFlushRemovesTaggedEntries: a write-path flush with no cooldown removes
// every entry tagged with the query's entity types.
func TestFlushRemovesTaggedEntries(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	gw := newTestGateway(t, ms, newFakeClock(), nil)
	defer gw.Close(ctx)

	q := orderQuery()
	key := rememberOrder(t, gw, q, order{ID: "1", Total: 10})

	if err := gw.Flush(ctx, q); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok, _ := gw.Get(ctx, key); ok {
		t.Fatalf("entry survived flush")
	}
}

// TestFlushSharedAcrossQueryShapes: differently-filtered queries over the
// same entities share tags, so one entity's flush clears both.
func TestFlushSharedAcrossQueryShapes(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	gw := newTestGateway(t, ms, newFakeClock(), nil)
	defer gw.Close(ctx)

	q1 := orderQuery()
	q1.Clauses = []Clause{{Kind: "where", Expr: "total > ?", Args: []any{10}}}
	q2 := orderQuery()
	q2.Clauses = []Clause{{Kind: "order", Expr: "created_at"}}

	k1 := rememberOrder(t, gw, q1, order{ID: "1"})
	k2 := rememberOrder(t, gw, q2, order{ID: "2"})
	if k1 == k2 {
		t.Fatalf("different clause sets produced the same key")
	}

	if err := gw.Flush(ctx, Query{Entity: "Order"}); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok, _ := gw.Get(ctx, k1); ok {
		t.Fatalf("q1 entry survived entity flush")
	}
	if _, ok, _ := gw.Get(ctx, k2); ok {
		t.Fatalf("q2 entry survived entity flush")
	}
}

// TestUntaggedStoreDegradesFlush: without the tagging capability, flush-by-tag
// is a silent no-op and reads stay valid until TTL.
func TestUntaggedStoreDegradesFlush(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	gw := newTestGateway(t, &untaggedStore{inner: ms}, newFakeClock(), nil)
	defer gw.Close(ctx)

	q := orderQuery()
	key := rememberOrder(t, gw, q, order{ID: "1"})

	if err := gw.Flush(ctx, q); err != nil {
		t.Fatalf("Flush on untagged store: %v", err)
	}
	if _, ok, _ := gw.Get(ctx, key); !ok {
		t.Fatalf("untagged store flushed by tag; expected degrade to no-op")
	}
}

func TestUsingSwitchesStore(t *testing.T) {
	ctx := context.Background()
	def, hot := newMemStore(), newMemStore()
	gw := newTestGateway(t, def, newFakeClock(), func(o *Options[order]) {
		o.Stores = map[string]st.Store{"hot": hot}
	})
	defer gw.Close(ctx)

	hgw, ok := gw.Using("hot")
	if !ok {
		t.Fatalf("Using(hot) not found")
	}
	if _, ok := gw.Using("missing"); ok {
		t.Fatalf("Using(missing) found")
	}

	if _, err := hgw.RememberForever(ctx, "k", nil, func() (order, error) {
		return order{ID: "1"}, nil
	}); err != nil {
		t.Fatalf("RememberForever: %v", err)
	}
	if len(def.m) != 0 {
		t.Fatalf("default store written through named view")
	}
	if len(hot.m) != 1 {
		t.Fatalf("named store holds %d entries, want 1", len(hot.m))
	}
}
