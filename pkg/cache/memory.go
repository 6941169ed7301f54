package cache

import (
	"context"
	"sync"
	"time"
)

const (
	defaultTTL   = 5 * time.Minute
	defaultSweep = time.Minute
)

type item[V any] struct {
	expiresAt time.Time
	value     V
}

func (i item[V]) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	ttl   time.Duration
	sweep time.Duration
}

// WithTTL sets the expiry used when Set gets a zero ttl. Default 5m.
func WithTTL(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if d != 0 {
			c.ttl = d
		}
	}
}

// WithSweepInterval sets how often expired entries are dropped. Zero or
// less disables the sweeper; expired entries are then only dropped on Get.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		c.sweep = d
	}
}

// Memory is a process-local cache. It suits a single instance; use Redis
// when several instances must see the same invalidations.
type Memory[V any] struct {
	items  map[string]item[V]
	done   chan struct{}
	cfg    memoryConfig
	mu     sync.Mutex
	closed bool
}

var _ Cache[any] = (*Memory[any])(nil)

func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	cfg := memoryConfig{ttl: defaultTTL, sweep: defaultSweep}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Memory[V]{
		items: make(map[string]item[V]),
		done:  make(chan struct{}),
		cfg:   cfg,
	}
	if cfg.sweep > 0 {
		go m.sweeper()
	}
	return m
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok || it.expired(time.Now()) {
		delete(m.items, key)
		var zero V
		return zero, ErrNotFound
	}
	return it.value, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if ttl == 0 {
		ttl = m.cfg.ttl
	}
	it := item[V]{value: value}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len counts entries, including expired ones not yet swept.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the sweeper. Later Sets fail with ErrClosed.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *Memory[V]) sweeper() {
	t := time.NewTicker(m.cfg.sweep)
	defer t.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-t.C:
			m.mu.Lock()
			for k, it := range m.items {
				if it.expired(now) {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
