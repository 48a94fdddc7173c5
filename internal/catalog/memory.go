package catalog

import (
	"context"
	"sync"
)

// MemoryStore is a Repository backed by a map, used by the in-memory store
// driver and by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	parts map[string]Part
}

func NewMemoryStore(seed ...Part) *MemoryStore {
	m := &MemoryStore{parts: map[string]Part{}}
	for _, p := range seed {
		p.Key = NormalizeKey(p.Identifier)
		m.parts[p.Key] = p
	}
	return m
}

func (m *MemoryStore) Create(ctx context.Context, part Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	part.Key = NormalizeKey(part.Identifier)
	if _, ok := m.parts[part.Key]; ok {
		return ErrExists
	}
	m.parts[part.Key] = part
	return nil
}

func (m *MemoryStore) FindByIdentifier(ctx context.Context, identifier string) (*Part, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parts[NormalizeKey(identifier)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) Exists(ctx context.Context, identifier string) (bool, error) {
	p, _ := m.FindByIdentifier(ctx, identifier)
	return p != nil, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Part, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Part, 0, len(m.parts))
	for _, p := range m.parts {
		out = append(out, p)
	}
	SortParts(out)
	return out, nil
}

func (m *MemoryStore) SearchByIdentifierSubstring(ctx context.Context, query string) ([]Part, error) {
	all, _ := m.List(ctx)
	return filterParts(all, query), nil
}

func (m *MemoryStore) UpdateFields(ctx context.Context, identifier string, patch Patch) (*Part, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeKey(identifier)
	p, ok := m.parts[key]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(&p)
	m.parts[key] = p
	return &p, nil
}

func (m *MemoryStore) Delete(ctx context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeKey(identifier)
	if _, ok := m.parts[key]; !ok {
		return ErrNotFound
	}
	delete(m.parts, key)
	return nil
}
