package vault

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory vault store for demo/development mode.
type MemoryStore struct {
	balances map[string]uint64
	items    map[string]map[string][]string // owner -> collection -> item IDs
	entries  []*Entry
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory vault store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]uint64),
		items:    make(map[string]map[string][]string),
	}
}

func (m *MemoryStore) Balance(ctx context.Context, actor string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[actor], nil
}

func (m *MemoryStore) Credit(ctx context.Context, actor string, amount uint64, entryType, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[actor] += amount
	m.record(actor, entryType, amount, reference)
	return nil
}

func (m *MemoryStore) Debit(ctx context.Context, actor string, amount uint64, entryType, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[actor] < amount {
		return ErrInsufficientFunds
	}
	m.balances[actor] -= amount
	m.record(actor, entryType, amount, reference)
	return nil
}

func (m *MemoryStore) Move(ctx context.Context, from, to string, amount uint64, entryType, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[from] < amount {
		return ErrInsufficientFunds
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	m.record(from, entryType, amount, reference)
	m.record(to, entryType, amount, reference)
	return nil
}

func (m *MemoryStore) History(ctx context.Context, actor string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].Actor == actor {
			result = append(result, m.entries[i])
		}
	}
	return result, nil
}

func (m *MemoryStore) AddItem(ctx context.Context, owner, collection, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items[owner] == nil {
		m.items[owner] = make(map[string][]string)
	}
	m.items[owner][collection] = append(m.items[owner][collection], itemID)
	return nil
}

func (m *MemoryStore) MoveItem(ctx context.Context, owner, newOwner, collection, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.items[owner][collection]
	for i, id := range held {
		if id == itemID {
			m.items[owner][collection] = append(held[:i], held[i+1:]...)
			if m.items[newOwner] == nil {
				m.items[newOwner] = make(map[string][]string)
			}
			m.items[newOwner][collection] = append(m.items[newOwner][collection], itemID)
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *MemoryStore) Items(ctx context.Context, owner, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	held := m.items[owner][collection]
	out := make([]string, len(held))
	copy(out, held)
	return out, nil
}

// record appends an audit entry. Caller must hold the write lock.
func (m *MemoryStore) record(actor, entryType string, amount uint64, reference string) {
	m.entries = append(m.entries, &Entry{
		ID:        fmt.Sprintf("entry_%d", len(m.entries)+1),
		Actor:     actor,
		Type:      entryType,
		Amount:    amount,
		Reference: reference,
		CreatedAt: time.Now(),
	})
}
