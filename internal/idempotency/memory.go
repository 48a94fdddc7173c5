package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errNoRecord = errors.New("idempotency record not in expected state")

// MemoryStore is a Keeper for single-process runs. Expired records are
// dropped on access.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]Record
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

func NewMemoryStore(ttlWindow time.Duration) *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, ttlWindow: ttlWindow, nowFunc: time.Now}
}

func (m *MemoryStore) live(key string) (Record, bool) {
	rec, ok := m.records[key]
	if ok && rec.ExpiresAt <= m.nowFunc().Unix() {
		delete(m.records, key)
		return Record{}, false
	}
	return rec, ok
}

func (m *MemoryStore) CreateIfNotExists(ctx context.Context, key, requestHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	now := m.nowFunc().UTC()
	m.records[key] = Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		RequestHash:    requestHash,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(m.ttlWindow).Unix(),
	}
	return true, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Retake(ctx context.Context, key string) (bool, error) {
	err := m.transition(key, StatusFailed, func(r *Record) { r.Status = StatusInProgress })
	if errors.Is(err, errNoRecord) {
		return false, nil
	}
	return err == nil, err
}

func (m *MemoryStore) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	return m.transition(key, StatusInProgress, func(r *Record) {
		r.Status = StatusDone
		r.ResponseBody = responseBody
		r.ResponseStatus = responseStatus
	})
}

func (m *MemoryStore) MarkFailed(ctx context.Context, key, note string) error {
	return m.transition(key, StatusInProgress, func(r *Record) {
		r.Status = StatusFailed
		r.Note = note
	})
}

func (m *MemoryStore) transition(key, from string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.live(key)
	if !ok || rec.Status != from {
		return errNoRecord
	}
	fn(&rec)
	rec.UpdatedAt = m.nowFunc().UTC()
	m.records[key] = rec
	return nil
}
