// Package reporting holds the read-only views over orders: shift history,
// overdue and pending lines, and the logistic board.
package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/apperr"
	"github.com/Lokman32/leadprep/internal/catalog"
	"github.com/Lokman32/leadprep/internal/orders"
)

const (
	DefaultOverdueAfter  = 4 * time.Hour
	DefaultPendingWindow = 24 * time.Hour
)

type OrderLister interface {
	List(ctx context.Context, q orders.Query) ([]orders.Order, error)
}

type PartLister interface {
	List(ctx context.Context) ([]catalog.Part, error)
}

type Config struct {
	Location *time.Location
	// OverdueAfter is the age at which an undelivered line is late.
	OverdueAfter time.Duration
	// PendingWindow limits PendingDeliveries to recent orders; 0 means all.
	PendingWindow time.Duration
}

type Service struct {
	orders  OrderLister
	parts   PartLister
	log     logrus.FieldLogger
	cfg     Config
	nowFunc func() time.Time
}

func NewService(o OrderLister, p PartLister, log logrus.FieldLogger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.OverdueAfter <= 0 {
		cfg.OverdueAfter = DefaultOverdueAfter
	}
	return &Service{orders: o, parts: p, log: log.WithField("module", "reporting"), cfg: cfg, nowFunc: time.Now}
}

func (s *Service) Location() *time.Location { return s.cfg.Location }

// LineRow is one order line flattened for display.
type LineRow struct {
	OrderCode     string            `json:"order_code"`
	RequesterID   string            `json:"requester_id"`
	PartID        string            `json:"part_id"`
	AltIdentifier string            `json:"alt_identifier,omitempty"`
	Class         catalog.Class     `json:"class"`
	Description   string            `json:"description"`
	Rack          string            `json:"rack"`
	Quantity      int               `json:"quantity"`
	Delivered     int               `json:"delivered"`
	Status        orders.LineStatus `json:"status"`
	OrderedAt     time.Time         `json:"ordered_at"`
	LastDelivered *time.Time        `json:"last_delivered,omitempty"`
}

// DeliveryRow is one delivered unit waiting for confirmation.
type DeliveryRow struct {
	OrderCode   string    `json:"order_code"`
	PartID      string    `json:"part_id"`
	Rack        string    `json:"rack"`
	Serial      string    `json:"serial"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// BoardRow is one open line on the logistic board.
type BoardRow struct {
	OrderCode   string            `json:"order_code"`
	RequesterID string            `json:"requester_id"`
	PartID      string            `json:"part_id"`
	Description string            `json:"description"`
	Rack        string            `json:"rack"`
	Quantity    int               `json:"quantity"`
	Status      orders.LineStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	Deliveries  []orders.Delivery `json:"deliveries"`
}

type ShiftTotals struct {
	Window
	Orders         int `json:"orders"`
	ConfirmedUnits int `json:"confirmed_units"`
}

type DaySummary struct {
	Date   string        `json:"date"`
	Shifts []ShiftTotals `json:"shifts"`
}

func (s *Service) list(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	list, err := s.orders.List(ctx, q)
	if err != nil {
		return nil, apperr.Wrap(err, "list orders")
	}
	return list, nil
}

// racks maps part keys to their current rack.
func (s *Service) racks(ctx context.Context) (map[string]string, error) {
	parts, err := s.parts.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list parts")
	}
	out := make(map[string]string, len(parts))
	for _, p := range parts {
		out[catalog.NormalizeKey(p.Identifier)] = p.Rack
	}
	return out, nil
}

// ShiftSummary counts orders created and confirmed units per shift of date.
func (s *Service) ShiftSummary(ctx context.Context, date time.Time) (*DaySummary, error) {
	day := DayWindow(date, s.cfg.Location)
	night, _ := ShiftWindow(date, Night, s.cfg.Location)
	list, err := s.list(ctx, orders.Query{CreatedFrom: day.Start, CreatedTo: night.End})
	if err != nil {
		return nil, err
	}

	out := &DaySummary{Date: day.Start.Format(dateLayout)}
	for _, shift := range Shifts {
		w, _ := ShiftWindow(date, shift, s.cfg.Location)
		totals := ShiftTotals{Window: w}
		for _, o := range list {
			if !w.Contains(o.CreatedAt) {
				continue
			}
			totals.Orders++
			for _, l := range o.Lines {
				totals.ConfirmedUnits += l.ConfirmedCount()
			}
		}
		out.Shifts = append(out.Shifts, totals)
	}
	return out, nil
}

// ShiftDetails flattens every line of orders created during one shift.
func (s *Service) ShiftDetails(ctx context.Context, date time.Time, shift Shift) ([]LineRow, error) {
	w, err := ShiftWindow(date, shift, s.cfg.Location)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	list, err := s.list(ctx, orders.Query{CreatedFrom: w.Start, CreatedTo: w.End})
	if err != nil {
		return nil, err
	}
	return lineRows(list, nil, func(orders.Line) bool { return true }), nil
}

// DayLines flattens the lines of orders created on date, or of every order
// when date is nil.
func (s *Service) DayLines(ctx context.Context, date *time.Time) ([]LineRow, error) {
	q := orders.Query{}
	if date != nil {
		w := DayWindow(*date, s.cfg.Location)
		q.CreatedFrom, q.CreatedTo = w.Start, w.End
	}
	list, err := s.list(ctx, q)
	if err != nil {
		return nil, err
	}
	return lineRows(list, nil, func(orders.Line) bool { return true }), nil
}

// Overdue lists lines still short of delivery on orders created at least
// OverdueAfter before now.
func (s *Service) Overdue(ctx context.Context, now time.Time) ([]LineRow, error) {
	list, err := s.list(ctx, orders.Query{CreatedTo: now.Add(-s.cfg.OverdueAfter + time.Nanosecond)})
	if err != nil {
		return nil, err
	}
	racks, err := s.racks(ctx)
	if err != nil {
		return nil, err
	}
	rows := lineRows(list, racks, func(l orders.Line) bool { return l.Status.Open() })
	sortBoard(rows)
	return rows, nil
}

// PendingDeliveries lists open lines of recent orders with the catalog's
// current rack.
func (s *Service) PendingDeliveries(ctx context.Context) ([]LineRow, error) {
	q := orders.Query{Exclude: []orders.OrderStatus{orders.OrderConfirmed, orders.OrderCancelled}}
	if s.cfg.PendingWindow > 0 {
		q.CreatedFrom = s.nowFunc().Add(-s.cfg.PendingWindow)
	}
	list, err := s.list(ctx, q)
	if err != nil {
		return nil, err
	}
	racks, err := s.racks(ctx)
	if err != nil {
		return nil, err
	}
	rows := lineRows(list, racks, func(l orders.Line) bool { return l.Status.Open() })
	sortBoard(rows)
	return rows, nil
}

// AwaitingConfirmation lists delivered units not yet confirmed, newest first.
func (s *Service) AwaitingConfirmation(ctx context.Context) ([]DeliveryRow, error) {
	list, err := s.list(ctx, orders.Query{Exclude: []orders.OrderStatus{orders.OrderConfirmed}})
	if err != nil {
		return nil, err
	}
	racks, err := s.racks(ctx)
	if err != nil {
		return nil, err
	}
	var rows []DeliveryRow
	for _, o := range list {
		for _, l := range o.Lines {
			if l.Status == orders.LineCancelled {
				continue
			}
			for _, d := range l.Deliveries {
				if d.Status != orders.DeliveryDelivered {
					continue
				}
				rows = append(rows, DeliveryRow{
					OrderCode:   o.SerialCode,
					PartID:      l.PartID,
					Rack:        rackFor(racks, l),
					Serial:      d.Serial,
					DeliveredAt: d.DeliveredAt,
				})
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DeliveredAt.After(rows[j].DeliveredAt) })
	return rows, nil
}

// LogisticBoard lists the open lines of open orders with their snapshot rack.
func (s *Service) LogisticBoard(ctx context.Context) ([]BoardRow, error) {
	list, err := s.list(ctx, orders.Query{Exclude: []orders.OrderStatus{orders.OrderDelivered, orders.OrderConfirmed, orders.OrderCancelled}})
	if err != nil {
		return nil, err
	}
	var rows []BoardRow
	for _, o := range list {
		for _, l := range o.Lines {
			if !l.Status.Open() {
				continue
			}
			rows = append(rows, BoardRow{
				OrderCode:   o.SerialCode,
				RequesterID: o.RequesterID,
				PartID:      l.PartID,
				Description: l.Description,
				Rack:        l.Rack,
				Quantity:    l.Quantity,
				Status:      l.Status,
				CreatedAt:   o.CreatedAt,
				Deliveries:  append([]orders.Delivery{}, l.Deliveries...),
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Description != rows[j].Description {
			return rows[i].Description > rows[j].Description
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}

// lineRows flattens the lines accepted by keep. With racks set, the rack is
// taken from the catalog and falls back to the line snapshot.
func lineRows(list []orders.Order, racks map[string]string, keep func(orders.Line) bool) []LineRow {
	rows := []LineRow{}
	for _, o := range list {
		for _, l := range o.Lines {
			if !keep(l) {
				continue
			}
			rack := l.Rack
			if racks != nil {
				rack = rackFor(racks, l)
			}
			rows = append(rows, LineRow{
				OrderCode:     o.SerialCode,
				RequesterID:   o.RequesterID,
				PartID:        l.PartID,
				AltIdentifier: l.AltIdentifier,
				Class:         l.Class,
				Description:   l.Description,
				Rack:          rack,
				Quantity:      l.Quantity,
				Delivered:     l.DeliveredCount(),
				Status:        l.Status,
				OrderedAt:     o.CreatedAt,
				LastDelivered: l.LastDelivered(),
			})
		}
	}
	return rows
}

func rackFor(racks map[string]string, l orders.Line) string {
	if r, ok := racks[l.PartKey]; ok {
		return r
	}
	return l.Rack
}

func sortBoard(rows []LineRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Description != rows[j].Description {
			return rows[i].Description > rows[j].Description
		}
		return rows[i].OrderedAt.Before(rows[j].OrderedAt)
	})
}
