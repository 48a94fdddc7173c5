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

const (
	defaultWriteRetries = 5
	maxCodeAttempts     = 5
)

// PartLookup resolves catalog parts at order creation. catalog.Repository
// satisfies it.
type PartLookup interface {
	FindByIdentifier(ctx context.Context, identifier string) (*catalog.Part, error)
}

type EngineConfig struct {
	// MaxWriteRetries bounds the reread-and-retry loop on version conflicts.
	MaxWriteRetries int
	// Location is the facility time zone used for serial code date stamps.
	Location *time.Location
}

// Engine owns every order mutation. Each operation reads the order, mutates
// the document, re-derives statuses and commits it with a single versioned
// conditional write.
type Engine struct {
	repo     Repository
	parts    PartLookup
	notifier events.Notifier
	log      logrus.FieldLogger
	retries  int
	loc      *time.Location
	nowFunc  func() time.Time
	newCode  func(time.Time) string
}

func NewEngine(repo Repository, parts PartLookup, notifier events.Notifier, log logrus.FieldLogger, cfg EngineConfig) *Engine {
	if cfg.MaxWriteRetries <= 0 {
		cfg.MaxWriteRetries = defaultWriteRetries
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if notifier == nil {
		notifier = events.Discard{}
	}
	return &Engine{
		repo:     repo,
		parts:    parts,
		notifier: notifier,
		log:      log.WithField("module", "orders"),
		retries:  cfg.MaxWriteRetries,
		loc:      cfg.Location,
		nowFunc:  time.Now,
		newCode:  NewSerialCode,
	}
}

// Item is one requested part and quantity.
type Item struct {
	Part     string
	Quantity int
}

// DeliveryResult is returned by RecordDelivery.
type DeliveryResult struct {
	OrderCode           string     `json:"order_code"`
	Serial              string     `json:"serial"`
	DeliveredCount      int        `json:"delivered_count"`
	Quantity            int        `json:"quantity"`
	LineStatus          LineStatus `json:"line_status"`
	OrderFullyDelivered bool       `json:"order_fully_delivered"`
}

// ConfirmationResult is returned by ConfirmDelivery.
type ConfirmationResult struct {
	OrderCode      string `json:"order_code"`
	Serial         string `json:"serial"`
	LineConfirmed  bool   `json:"line_confirmed"`
	OrderConfirmed bool   `json:"order_confirmed"`
}

func (e *Engine) now() time.Time { return e.nowFunc().UTC() }

// CreateOrder validates every item against the catalog and stores one order
// with a pending line per item. Nothing is written if any part is unknown.
func (e *Engine) CreateOrder(ctx context.Context, requesterID string, items []Item) (*Order, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, apperr.Validation("requester id is required")
	}
	if len(items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		key := catalog.NormalizeKey(it.Part)
		if key == "" {
			return nil, apperr.Validation("part identifier is required")
		}
		if it.Quantity < 1 {
			return nil, apperr.Validation("quantity for part %s must be at least 1", it.Part)
		}
		if seen[key] {
			return nil, apperr.Conflict("part %s appears more than once", it.Part)
		}
		seen[key] = true
	}

	now := e.now()
	order := Order{
		RequesterID: requesterID,
		Status:      OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines:       make([]Line, 0, len(items)),
	}
	for _, it := range items {
		part, err := e.parts.FindByIdentifier(ctx, it.Part)
		if err != nil {
			return nil, apperr.Wrap(err, "look up part %s", it.Part)
		}
		if part == nil {
			return nil, apperr.NotFound("part %s not found", strings.TrimSpace(it.Part))
		}
		order.Lines = append(order.Lines, Line{
			PartKey:       catalog.NormalizeKey(part.Identifier),
			PartID:        part.Identifier,
			AltIdentifier: part.AltIdentifier,
			Class:         part.Class,
			Quantity:      it.Quantity,
			Description:   part.Description,
			Rack:          part.Rack,
			Status:        LinePending,
			UpdatedAt:     now,
			Deliveries:    []Delivery{},
		})
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		order.SerialCode = e.newCode(now.In(e.loc))
		err := e.repo.Commit(ctx, Write{Order: &order})
		if errors.Is(err, ErrOrderExists) {
			e.log.WithField("order", order.SerialCode).Warn("serial code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(err, "create order")
		}
		e.log.WithFields(logrus.Fields{"order": order.SerialCode, "lines": len(order.Lines), "requester": requesterID}).Info("order created")
		ev := events.New(events.OrderCreated, order.SerialCode, now)
		ev.RequesterID = requesterID
		ev.Quantity = len(order.Lines)
		e.publish(ctx, ev)
		return &order, nil
	}
	return nil, apperr.Wrap(ErrOrderExists, "could not allocate a serial code")
}

// RecordDelivery appends serial to the oldest open line for part.
func (e *Engine) RecordDelivery(ctx context.Context, part, serial string) (*DeliveryResult, error) {
	key, serial, err := deliveryInput(part, serial)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < e.retries; attempt++ {
		res, err := e.recordDelivery(ctx, key, serial)
		if errors.Is(err, ErrVersionMismatch) {
			e.log.WithFields(logrus.Fields{"part": key, "serial": serial, "attempt": attempt + 1}).Debug("order changed, retrying delivery")
			continue
		}
		return res, err
	}
	return nil, apperr.Conflict("order for part %s is being updated concurrently, retry the scan", key)
}

func (e *Engine) recordDelivery(ctx context.Context, key, serial string) (*DeliveryResult, error) {
	open, err := e.repo.List(ctx, Query{Exclude: []OrderStatus{OrderConfirmed, OrderCancelled}})
	if err != nil {
		return nil, apperr.Wrap(err, "list orders")
	}

	var order *Order
	full := false
	for i := range open {
		l := open[i].Line(key)
		if l == nil {
			continue
		}
		if l.Status.Open() {
			order = &open[i]
			break
		}
		if l.Status == LineDelivered {
			full = true
		}
	}
	if order == nil && !full {
		return nil, apperr.NotFound("no open order line for part %s", key)
	}

	// A rescan of a known serial is a duplicate even when its line is full.
	claim, err := e.repo.FindSerial(ctx, serial)
	if err != nil {
		return nil, apperr.Wrap(err, "look up serial %s", serial)
	}
	if claim != nil {
		if claim.PartKey == key && (order == nil || claim.OrderCode == order.SerialCode) {
			return nil, apperr.Conflict("serial %s is already registered on this line", serial)
		}
		return nil, apperr.Conflict("serial %s was already delivered elsewhere (%s)", serial, claim.OrderCode)
	}
	if order == nil {
		return nil, apperr.InvalidState("every line for part %s is already fully delivered", key)
	}
	line := order.Line(key)
	if line.Delivery(serial) != nil {
		return nil, apperr.Conflict("serial %s is already registered on this line", serial)
	}
	if line.DeliveredCount()+1 > line.Quantity {
		return nil, apperr.InvalidState("line %s on %s already has %d of %d units", key, order.SerialCode, line.DeliveredCount(), line.Quantity)
	}

	now := e.now()
	prior := order.Status
	expected := order.Version
	line.Deliveries = append(line.Deliveries, Delivery{Serial: serial, Status: DeliveryDelivered, DeliveredAt: now})
	line.UpdatedAt = now
	order.Recompute()
	order.UpdatedAt = now

	err = e.repo.Commit(ctx, Write{
		Order:           order,
		ExpectedVersion: expected,
		Claims:          []SerialClaim{{Serial: serial, OrderCode: order.SerialCode, PartKey: key, ClaimedAt: now}},
	})
	switch {
	case errors.Is(err, ErrVersionMismatch):
		return nil, err
	case errors.Is(err, ErrSerialTaken):
		return nil, apperr.Conflict("serial %s was already delivered elsewhere", serial)
	case err != nil:
		return nil, apperr.Wrap(err, "record delivery of %s", serial)
	}

	line = order.Line(key)
	e.log.WithFields(logrus.Fields{"order": order.SerialCode, "part": key, "serial": serial, "line_status": line.Status}).Info("delivery recorded")
	e.publish(ctx, events.New(events.DeliveryRecorded, order.SerialCode, now).WithPart(line.PartID, serial))
	if order.Status == OrderDelivered && prior != OrderDelivered {
		e.publish(ctx, events.New(events.OrderDelivered, order.SerialCode, now))
	}
	return &DeliveryResult{
		OrderCode:           order.SerialCode,
		Serial:              serial,
		DeliveredCount:      line.DeliveredCount(),
		Quantity:            line.Quantity,
		LineStatus:          line.Status,
		OrderFullyDelivered: order.Status == OrderDelivered || order.Status == OrderConfirmed,
	}, nil
}

// ConfirmDelivery marks the record for serial on the part's line confirmed.
// Confirming twice keeps the first timestamp.
func (e *Engine) ConfirmDelivery(ctx context.Context, part, serial string) (*ConfirmationResult, error) {
	key, serial, err := deliveryInput(part, serial)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < e.retries; attempt++ {
		res, err := e.confirmDelivery(ctx, key, serial)
		if errors.Is(err, ErrVersionMismatch) {
			continue
		}
		return res, err
	}
	return nil, apperr.Conflict("order for serial %s is being updated concurrently, retry", serial)
}

func (e *Engine) confirmDelivery(ctx context.Context, key, serial string) (*ConfirmationResult, error) {
	claim, err := e.repo.FindSerial(ctx, serial)
	if err != nil {
		return nil, apperr.Wrap(err, "look up serial %s", serial)
	}
	if claim == nil || claim.PartKey != key {
		return nil, apperr.NotFound("serial %s has not been delivered for part %s", serial, key)
	}
	order, err := e.repo.Get(ctx, claim.OrderCode)
	if err != nil {
		return nil, apperr.Wrap(err, "get order %s", claim.OrderCode)
	}
	if order == nil {
		return nil, apperr.NotFound("order %s not found", claim.OrderCode)
	}
	line := order.Line(key)
	if line == nil {
		return nil, apperr.NotFound("order %s has no line for part %s", order.SerialCode, key)
	}
	rec := line.Delivery(serial)
	if rec == nil {
		return nil, apperr.NotFound("serial %s is not recorded on order %s", serial, order.SerialCode)
	}
	if line.Status == LineCancelled {
		return nil, apperr.InvalidState("line %s on %s is cancelled", key, order.SerialCode)
	}

	if rec.Status == DeliveryConfirmed {
		return &ConfirmationResult{
			OrderCode:      order.SerialCode,
			Serial:         serial,
			LineConfirmed:  line.Status == LineConfirmed,
			OrderConfirmed: order.Status == OrderConfirmed,
		}, nil
	}

	now := e.now()
	prior := order.Status
	expected := order.Version
	rec.Status = DeliveryConfirmed
	rec.ConfirmedAt = &now
	line.UpdatedAt = now
	order.Recompute()
	order.UpdatedAt = now

	if err := e.repo.Commit(ctx, Write{Order: order, ExpectedVersion: expected}); err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			return nil, err
		}
		return nil, apperr.Wrap(err, "confirm delivery of %s", serial)
	}

	line = order.Line(key)
	e.log.WithFields(logrus.Fields{"order": order.SerialCode, "part": key, "serial": serial, "line_status": line.Status}).Info("delivery confirmed")
	e.publish(ctx, events.New(events.DeliveryConfirmed, order.SerialCode, now).WithPart(line.PartID, serial))
	if order.Status == OrderConfirmed && prior != OrderConfirmed {
		e.publish(ctx, events.New(events.OrderConfirmed, order.SerialCode, now))
	}
	return &ConfirmationResult{
		OrderCode:      order.SerialCode,
		Serial:         serial,
		LineConfirmed:  line.Status == LineConfirmed,
		OrderConfirmed: order.Status == OrderConfirmed,
	}, nil
}

func deliveryInput(part, serial string) (string, string, error) {
	key := catalog.NormalizeKey(part)
	serial = strings.TrimSpace(serial)
	if key == "" {
		return "", "", apperr.Validation("part identifier is required")
	}
	if serial == "" {
		return "", "", apperr.Validation("serial is required")
	}
	return key, serial, nil
}

// publish runs after the write committed. A failed publish is logged and
// never fails the operation.
func (e *Engine) publish(ctx context.Context, evs ...events.Event) {
	for _, ev := range evs {
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{"event": ev.Type, "order": ev.OrderCode}).Warn("publish event failed")
		}
	}
}
