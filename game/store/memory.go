package store

import (
	"context"
	"sync"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and
// cacheless development runs; production uses SQLiteStore.
type MemoryStore struct {
	mu     sync.RWMutex
	games  map[string]*Game // by id
	byCode map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:  make(map[string]*Game),
		byCode: make(map[string]string),
	}
}

func (m *MemoryStore) CreateGame(ctx context.Context, g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byCode[g.Code]; taken {
		return ErrCodeTaken
	}

	m.games[g.ID] = g.Clone()
	m.byCode[g.Code] = g.ID
	return nil
}

func (m *MemoryStore) GetGame(ctx context.Context, id string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *MemoryStore) GetWaitingGameByCode(ctx context.Context, code string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	g := m.games[id]
	if g.Status != StatusWaiting {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *MemoryStore) FindOldestWaitingPublicGame(ctx context.Context, excludePlayer string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *Game
	for _, g := range m.games {
		if !g.IsPublic || g.Status != StatusWaiting || g.PlayerX == excludePlayer {
			continue
		}
		if oldest == nil || g.CreatedAt.Before(oldest.CreatedAt) {
			oldest = g
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}
	return oldest.Clone(), nil
}

func (m *MemoryStore) UpdateGame(ctx context.Context, g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.games[g.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != g.Version {
		return ErrVersionConflict
	}

	g.Version++
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *MemoryStore) CountPublicGames(ctx context.Context, status Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, g := range m.games {
		if g.IsPublic && g.Status == status {
			count++
		}
	}
	return count, nil
}
