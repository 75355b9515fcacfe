package cache

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
)

type memoryEntry struct {
	order     *domain.Order
	expiresAt time.Time
}

// Memory is a process-local OrderCache. Suitable for a single instance;
// multi-instance deployments want the Redis backend so an invalidation on one
// node is seen by all.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory builds an in-memory cache with the given entry TTL.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.RLock()
	entry, ok := m.entries[orderID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, orderID)
		m.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	return entry.order, nil
}

func (m *Memory) Set(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	m.entries[order.ID] = memoryEntry{order: order, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, orderID string) error {
	m.mu.Lock()
	delete(m.entries, orderID)
	m.mu.Unlock()
	return nil
}
