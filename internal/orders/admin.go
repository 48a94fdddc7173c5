package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/apperr"
	"github.com/Lokman32/leadprep/internal/catalog"
	"github.com/Lokman32/leadprep/internal/events"
)

// LineDetail is the administrative view of one line.
type LineDetail struct {
	OrderCode     string        `json:"order_code"`
	RequesterID   string        `json:"requester_id"`
	OrderStatus   OrderStatus   `json:"order_status"`
	CreatedAt     time.Time     `json:"created_at"`
	PartID        string        `json:"part_id"`
	AltIdentifier string        `json:"alt_identifier,omitempty"`
	Class         catalog.Class `json:"class"`
	Rack          string        `json:"rack"`
	Description   string        `json:"description"`
	FeedbackAt    *time.Time    `json:"feedback_at,omitempty"`
	Quantity      int           `json:"quantity"`
	Delivered     int           `json:"delivered"`
	Remaining     int           `json:"remaining"`
	Status        LineStatus    `json:"status"`
	UpdatedAt     time.Time     `json:"updated_at"`
	LastDelivered *time.Time    `json:"last_delivered,omitempty"`
	Deliveries    []Delivery    `json:"deliveries"`
}

// mutation edits o in place and returns the serials whose claims must be
// released along with the write.
type mutation func(o *Order, now time.Time) (releases []string, err error)

// mutate runs fn against a fresh copy of the order and commits the result,
// rereading and retrying when the order changed underneath.
func (e *Engine) mutate(ctx context.Context, code string, fn mutation) (*Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("order code is required")
	}
	for attempt := 0; attempt < e.retries; attempt++ {
		order, err := e.repo.Get(ctx, code)
		if err != nil {
			return nil, apperr.Wrap(err, "get order %s", code)
		}
		if order == nil {
			return nil, apperr.NotFound("order %s not found", code)
		}
		now := e.now()
		expected := order.Version
		releases, err := fn(order, now)
		if err != nil {
			return nil, err
		}
		order.Recompute()
		order.UpdatedAt = now

		err = e.repo.Commit(ctx, Write{Order: order, ExpectedVersion: expected, Releases: releases})
		if errors.Is(err, ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(err, "update order %s", code)
		}
		return order, nil
	}
	return nil, apperr.Conflict("order %s is being updated concurrently, retry", code)
}

func lineOf(o *Order, part string) (*Line, error) {
	key := catalog.NormalizeKey(part)
	if key == "" {
		return nil, apperr.Validation("part identifier is required")
	}
	l := o.Line(key)
	if l == nil {
		return nil, apperr.NotFound("order %s has no line for part %s", o.SerialCode, key)
	}
	return l, nil
}

// UpdateLineFeedback replaces the line description and stamps the feedback time.
func (e *Engine) UpdateLineFeedback(ctx context.Context, code, part, description string) (*Order, error) {
	order, err := e.mutate(ctx, code, func(o *Order, now time.Time) ([]string, error) {
		l, err := lineOf(o, part)
		if err != nil {
			return nil, err
		}
		l.Description = description
		l.FeedbackAt = &now
		l.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"order": order.SerialCode, "part": catalog.NormalizeKey(part)}).Info("line feedback updated")
	return order, nil
}

// CancelLine moves a non-terminal line to cancelled.
func (e *Engine) CancelLine(ctx context.Context, code, part string) (*Order, error) {
	order, err := e.mutate(ctx, code, func(o *Order, now time.Time) ([]string, error) {
		l, err := lineOf(o, part)
		if err != nil {
			return nil, err
		}
		if l.Status.Terminal() {
			return nil, apperr.InvalidState("line %s on %s is already %s", l.PartKey, o.SerialCode, l.Status)
		}
		l.Status = LineCancelled
		l.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"order": order.SerialCode, "part": catalog.NormalizeKey(part)}).Info("line cancelled")
	e.publish(ctx, events.New(events.LineCancelled, order.SerialCode, order.UpdatedAt).WithPart(catalog.NormalizeKey(part), ""))
	return order, nil
}

// DeleteLine removes a line with its records and frees their serials.
func (e *Engine) DeleteLine(ctx context.Context, code, part string) (*Order, error) {
	return e.mutate(ctx, code, func(o *Order, now time.Time) ([]string, error) {
		l, err := lineOf(o, part)
		if err != nil {
			return nil, err
		}
		removed, _ := o.RemoveLine(l.PartKey)
		e.log.WithFields(logrus.Fields{"order": o.SerialCode, "part": removed.PartKey, "serials": removed.DeliveredCount()}).Info("line deleted")
		return removed.Serials(), nil
	})
}

// DeleteDelivery removes one record and frees its serial.
func (e *Engine) DeleteDelivery(ctx context.Context, code, part, serial string) (*Order, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, apperr.Validation("serial is required")
	}
	return e.mutate(ctx, code, func(o *Order, now time.Time) ([]string, error) {
		l, err := lineOf(o, part)
		if err != nil {
			return nil, err
		}
		if !l.RemoveDelivery(serial) {
			return nil, apperr.NotFound("serial %s is not recorded on line %s", serial, l.PartKey)
		}
		l.UpdatedAt = now
		return []string{serial}, nil
	})
}

// DeleteOrder removes the order and frees every serial delivered against it.
func (e *Engine) DeleteOrder(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	for attempt := 0; attempt < e.retries; attempt++ {
		order, err := e.repo.Get(ctx, code)
		if err != nil {
			return apperr.Wrap(err, "get order %s", code)
		}
		if order == nil {
			return apperr.NotFound("order %s not found", code)
		}
		err = e.repo.Delete(ctx, order)
		if errors.Is(err, ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return apperr.Wrap(err, "delete order %s", code)
		}
		e.log.WithField("order", code).Info("order deleted")
		e.publish(ctx, events.New(events.OrderDeleted, code, e.now()))
		return nil
	}
	return apperr.Conflict("order %s is being updated concurrently, retry", code)
}

// GetLine returns the detail view of one line.
func (e *Engine) GetLine(ctx context.Context, code, part string) (*LineDetail, error) {
	order, err := e.GetOrder(ctx, code)
	if err != nil {
		return nil, err
	}
	l, err := lineOf(order, part)
	if err != nil {
		return nil, err
	}
	return &LineDetail{
		OrderCode:     order.SerialCode,
		RequesterID:   order.RequesterID,
		OrderStatus:   order.Status,
		CreatedAt:     order.CreatedAt,
		PartID:        l.PartID,
		AltIdentifier: l.AltIdentifier,
		Class:         l.Class,
		Rack:          l.Rack,
		Description:   l.Description,
		FeedbackAt:    l.FeedbackAt,
		Quantity:      l.Quantity,
		Delivered:     l.DeliveredCount(),
		Remaining:     l.Remaining(),
		Status:        l.Status,
		UpdatedAt:     l.UpdatedAt,
		LastDelivered: l.LastDelivered(),
		Deliveries:    append([]Delivery{}, l.Deliveries...),
	}, nil
}

// GetOrder returns the order or NotFound.
func (e *Engine) GetOrder(ctx context.Context, code string) (*Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("order code is required")
	}
	order, err := e.repo.Get(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(err, "get order %s", code)
	}
	if order == nil {
		return nil, apperr.NotFound("order %s not found", code)
	}
	return order, nil
}
