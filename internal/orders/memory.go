package orders

import (
	"context"
	"sync"
)

// MemoryStore is a Repository held in process memory. A single mutex makes
// each Commit atomic, with the same failure modes as Store.
type MemoryStore struct {
	mu      sync.Mutex
	orders  map[string]Order
	serials map[string]SerialClaim
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]Order{}, serials: map[string]SerialClaim{}}
}

func (m *MemoryStore) Commit(ctx context.Context, w Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.orders[w.Order.SerialCode]
	switch {
	case w.ExpectedVersion == 0 && exists:
		return ErrOrderExists
	case w.ExpectedVersion != 0 && (!exists || cur.Version != w.ExpectedVersion):
		return ErrVersionMismatch
	}
	for _, c := range w.Claims {
		if _, taken := m.serials[c.Serial]; taken {
			return ErrSerialTaken
		}
	}

	for _, c := range w.Claims {
		m.serials[c.Serial] = c
	}
	for _, serial := range w.Releases {
		delete(m.serials, serial)
	}
	w.Order.Version = w.ExpectedVersion + 1
	m.orders[w.Order.SerialCode] = w.Order.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, code string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[code]
	if !ok {
		return nil, nil
	}
	c := o.Clone()
	return &c, nil
}

func (m *MemoryStore) List(ctx context.Context, q Query) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if q.match(o) {
			out = append(out, o.Clone())
		}
	}
	SortOrders(out)
	return out, nil
}

func (m *MemoryStore) FindSerial(ctx context.Context, serial string) (*SerialClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.serials[serial]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStore) Delete(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.SerialCode]
	if !ok || cur.Version != o.Version {
		return ErrVersionMismatch
	}
	for _, serial := range cur.Serials() {
		delete(m.serials, serial)
	}
	delete(m.orders, o.SerialCode)
	return nil
}
