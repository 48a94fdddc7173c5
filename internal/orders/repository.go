package orders

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrVersionMismatch means the order changed since it was read.
	ErrVersionMismatch = errors.New("order version mismatch")
	// ErrSerialTaken means a claimed serial is already held by a line.
	ErrSerialTaken = errors.New("serial already claimed")
	// ErrOrderExists means the serial code is already in use.
	ErrOrderExists = errors.New("order already exists")
)

// Write is one atomic change: the order document is stored iff its stored
// version still equals ExpectedVersion (0 means the order must not exist),
// every claim is new, and released claims are removed.
type Write struct {
	Order           *Order
	ExpectedVersion int
	Claims          []SerialClaim
	Releases        []string
}

// Query filters List. Zero values match everything.
type Query struct {
	CreatedFrom time.Time
	CreatedTo   time.Time
	Exclude     []OrderStatus
}

func (q Query) match(o Order) bool {
	if !q.CreatedFrom.IsZero() && o.CreatedAt.Before(q.CreatedFrom) {
		return false
	}
	if !q.CreatedTo.IsZero() && !o.CreatedAt.Before(q.CreatedTo) {
		return false
	}
	for _, s := range q.Exclude {
		if o.Status == s {
			return false
		}
	}
	return true
}

// Repository persists orders and serial claims.
type Repository interface {
	// Commit applies w atomically and bumps the stored version.
	Commit(ctx context.Context, w Write) error
	// Get returns (nil, nil) when the order does not exist.
	Get(ctx context.Context, code string) (*Order, error)
	// List returns matching orders, oldest first.
	List(ctx context.Context, q Query) ([]Order, error)
	// FindSerial returns (nil, nil) when the serial is unclaimed.
	FindSerial(ctx context.Context, serial string) (*SerialClaim, error)
	// Delete removes the order and all of its claims if the version matches.
	Delete(ctx context.Context, o *Order) error
}
