package engine

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory engine store for demo/development mode.
type MemoryStore struct {
	mu        sync.RWMutex
	pending   map[string]*PendingRequest
	byActor   map[string][]string // insertion order per actor
	completed map[string]*CompletedRecord
	history   []string // completed nonces, insertion order
	wheels    map[string][]*Prize
}

// NewMemoryStore creates a new in-memory engine store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending:   make(map[string]*PendingRequest),
		byActor:   make(map[string][]string),
		completed: make(map[string]*CompletedRecord),
		wheels:    make(map[string][]*Prize),
	}
}

func (m *MemoryStore) InsertPending(ctx context.Context, req *PendingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[req.Nonce] = req
	m.byActor[req.Requester] = append(m.byActor[req.Requester], req.Nonce)
	return nil
}

func (m *MemoryStore) GetPending(ctx context.Context, nonce string) (*PendingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.pending[nonce]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

func (m *MemoryStore) ClaimPending(ctx context.Context, nonce string) (*PendingRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.pending[nonce]
	if !ok {
		return nil, false, nil
	}
	delete(m.pending, nonce)

	held := m.byActor[req.Requester]
	for i, n := range held {
		if n == nonce {
			m.byActor[req.Requester] = append(held[:i], held[i+1:]...)
			break
		}
	}
	if len(m.byActor[req.Requester]) == 0 {
		delete(m.byActor, req.Requester)
	}
	return req, true, nil
}

func (m *MemoryStore) ActorNonces(ctx context.Context, actor string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	held := m.byActor[actor]
	out := make([]string, len(held))
	copy(out, held)
	return out, nil
}

func (m *MemoryStore) Actors(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.byActor))
	for actor := range m.byActor {
		out = append(out, actor)
	}
	return out, nil
}

func (m *MemoryStore) PendingCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending), nil
}

func (m *MemoryStore) InsertCompleted(ctx context.Context, rec *CompletedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed[rec.Nonce] = rec
	m.history = append(m.history, rec.Nonce)
	return nil
}

func (m *MemoryStore) GetCompleted(ctx context.Context, nonce string) (*CompletedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.completed[nonce]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListCompleted(ctx context.Context, game Game, limit int) ([]*CompletedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*CompletedRecord
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		rec := m.completed[m.history[i]]
		if game != "" && rec.Game != game {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryStore) SaveWheel(ctx context.Context, wheelID string, prizes []*Prize) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wheels[wheelID] = copyPrizes(prizes)
	return nil
}

func (m *MemoryStore) WheelPrizes(ctx context.Context, wheelID string) ([]*Prize, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyPrizes(m.wheels[wheelID]), nil
}

// copyPrizes deep-copies a pool so resolver mutations never alias stored
// state before SaveWheel commits them.
func copyPrizes(prizes []*Prize) []*Prize {
	out := make([]*Prize, len(prizes))
	for i, p := range prizes {
		cp := *p
		cp.Items = make([]string, len(p.Items))
		copy(cp.Items, p.Items)
		out[i] = &cp
	}
	return out
}
