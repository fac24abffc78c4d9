package cache

import (
	"context"
	"sync"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
)

// expiring is a mutex-guarded map whose entries lapse at a deadline.
// Lapsed entries are invisible to readers and removed by sweep.
type expiring[V any] struct {
	mu  sync.Mutex
	m   map[string]expiringEntry[V]
	now func() time.Time
}

type expiringEntry[V any] struct {
	val      V
	deadline time.Time
}

func newExpiring[V any]() *expiring[V] {
	return &expiring[V]{m: make(map[string]expiringEntry[V]), now: time.Now}
}

func (e *expiring[V]) get(key string) (V, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.m[key]
	if !ok || !e.now().Before(ent.deadline) {
		var zero V
		return zero, false
	}
	return ent.val, true
}

func (e *expiring[V]) put(key string, val V, ttl time.Duration) {
	e.mu.Lock()
	e.m[key] = expiringEntry[V]{val: val, deadline: e.now().Add(ttl)}
	e.mu.Unlock()
}

// claim stores key only if it holds no live entry, reporting whether it did
func (e *expiring[V]) claim(key string, val V, ttl time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if ent, ok := e.m[key]; ok && now.Before(ent.deadline) {
		return false
	}
	e.m[key] = expiringEntry[V]{val: val, deadline: now.Add(ttl)}
	return true
}

func (e *expiring[V]) drop(key string) {
	e.mu.Lock()
	delete(e.m, key)
	e.mu.Unlock()
}

func (e *expiring[V]) reset() {
	e.mu.Lock()
	clear(e.m)
	e.mu.Unlock()
}

// sweep deletes lapsed entries and returns how many remain
func (e *expiring[V]) sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for k, ent := range e.m {
		if !now.Before(ent.deadline) {
			delete(e.m, k)
		}
	}
	return len(e.m)
}

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps dedupe claims in process memory. Claims
// are not shared between replicas, so it suits single-instance runs and tests.
type InMemoryIdempotencyStore struct {
	claims *expiring[struct{}]
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewInMemoryIdempotencyStore starts a janitor that drops lapsed claims
// every sweepEvery (5m when not positive)
func NewInMemoryIdempotencyStore(sweepEvery time.Duration) *InMemoryIdempotencyStore {
	if sweepEvery <= 0 {
		sweepEvery = defaultSweepInterval
	}
	s := &InMemoryIdempotencyStore{
		claims: newExpiring[struct{}](),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.janitor(sweepEvery)
	return s
}

func (s *InMemoryIdempotencyStore) janitor(every time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.claims.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return s.claims.claim(key, struct{}{}, ttl), nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	_, ok := s.claims.get(key)
	return ok, nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.claims.drop(key)
	return nil
}

// Close stops the janitor. Later calls are no-ops.
func (s *InMemoryIdempotencyStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

// InMemorySearchCache keeps search responses in process memory
type InMemorySearchCache struct {
	entries *expiring[[]byte]
}

func NewInMemorySearchCache() *InMemorySearchCache {
	return &InMemorySearchCache{entries: newExpiring[[]byte]()}
}

func (c *InMemorySearchCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := c.entries.get(key)
	return data, ok, nil
}

// Set stores value for ttl and drops whatever else has lapsed
func (c *InMemorySearchCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.entries.sweep()
	c.entries.put(key, value, ttl)
	return nil
}

func (c *InMemorySearchCache) Invalidate(context.Context) error {
	c.entries.reset()
	return nil
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
