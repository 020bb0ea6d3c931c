// Package memory provides an in-process TagStore backed by a plain map.
//
// It is the default choice for single-process deployments and for tests.
// Tag membership is tracked in-process, so tag flushes issued by one replica
// are invisible to others; use the redis store when invalidation must be
// shared across processes.
package memory

import (
	"context"
	"sync"
	"time"

	st "github.com/mycarrysun/relcache/store"
)

type entry struct {
	value []byte
	tags  []string
	exp   time.Time // zero => no expiry
}

// Store keeps entries and tag membership in-process.
// An optional sweep loop prunes expired entries so long-lived processes do
// not accumulate dead keys between reads.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	byTag   map[string]map[string]struct{}

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ st.TagStore = (*Store)(nil)

// New creates a memory store. sweepInterval <= 0 disables the sweep loop;
// expired entries are then only dropped lazily on Get.
func New(sweepInterval time.Duration) *Store {
	s := &Store{
		entries: make(map[string]entry),
		byTag:   make(map[string]map[string]struct{}),
	}
	if sweepInterval > 0 {
		s.ticker = time.NewTicker(sweepInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.sweep(time.Now())
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		s.mu.Lock()
		s.removeLocked(key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.SetTagged(ctx, key, value, ttl)
}

func (s *Store) SetTagged(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.mu.Lock()
	// re-tagging a key replaces its previous membership
	if old, ok := s.entries[key]; ok {
		s.untagLocked(key, old.tags)
	}
	s.entries[key] = entry{value: value, tags: tags, exp: exp}
	for _, t := range tags {
		m, ok := s.byTag[t]
		if !ok {
			m = make(map[string]struct{})
			s.byTag[t] = m
		}
		m[key] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	s.removeLocked(key)
	s.mu.Unlock()
	return nil
}

func (s *Store) FlushTags(_ context.Context, tags ...string) error {
	s.mu.Lock()
	for _, t := range tags {
		for key := range s.byTag[t] {
			s.removeLocked(key)
		}
		delete(s.byTag, t)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.byTag = make(map[string]map[string]struct{})
	s.mu.Unlock()
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}

// sweep drops entries that expired before cutoff. Holds the write lock for
// the full scan; acceptable for the in-process entry counts this store is
// meant for.
func (s *Store) sweep(cutoff time.Time) {
	s.mu.Lock()
	for key, e := range s.entries {
		if !e.exp.IsZero() && e.exp.Before(cutoff) {
			s.removeLocked(key)
		}
	}
	s.mu.Unlock()
}

func (s *Store) removeLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	s.untagLocked(key, e.tags)
	delete(s.entries, key)
}

func (s *Store) untagLocked(key string, tags []string) {
	for _, t := range tags {
		if m, ok := s.byTag[t]; ok {
			delete(m, key)
			if len(m) == 0 {
				delete(s.byTag, t)
			}
		}
	}
}

// Len reports the number of live entries. Intended for tests and metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
