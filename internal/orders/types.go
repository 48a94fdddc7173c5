package orders

import (
	"time"

	"github.com/Lokman32/leadprep/internal/catalog"
)

type LineStatus string

// Line statuses. confirmed and cancelled are terminal.
const (
	LinePending            LineStatus = "pending"
	LinePartiallyDelivered LineStatus = "partially_delivered"
	LineDelivered          LineStatus = "delivered"
	LineConfirmed          LineStatus = "confirmed"
	LineCancelled          LineStatus = "cancelled"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderDelivered OrderStatus = "delivered"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryConfirmed DeliveryStatus = "confirmed"
)

// Delivery is one serialized unit delivered against a line.
type Delivery struct {
	Serial      string         `dynamodbav:"serial" json:"serial"`
	Status      DeliveryStatus `dynamodbav:"status" json:"status"`
	DeliveredAt time.Time      `dynamodbav:"delivered_at" json:"delivered_at"`
	ConfirmedAt *time.Time     `dynamodbav:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
}

// Line is embedded in its Order. Rack, Description, AltIdentifier and Class
// are snapshots taken from the catalog at creation time.
type Line struct {
	PartKey       string        `dynamodbav:"part_key" json:"-"`
	PartID        string        `dynamodbav:"part_id" json:"part_id"`
	AltIdentifier string        `dynamodbav:"alt_identifier,omitempty" json:"alt_identifier,omitempty"`
	Class         catalog.Class `dynamodbav:"class" json:"class"`
	Quantity      int           `dynamodbav:"quantity" json:"quantity"`
	Description   string        `dynamodbav:"description" json:"description"`
	FeedbackAt    *time.Time    `dynamodbav:"feedback_at,omitempty" json:"feedback_at,omitempty"`
	Rack          string        `dynamodbav:"rack" json:"rack"`
	Status        LineStatus    `dynamodbav:"status" json:"status"`
	UpdatedAt     time.Time     `dynamodbav:"updated_at" json:"updated_at"`
	Deliveries    []Delivery    `dynamodbav:"deliveries" json:"deliveries"`
}

// Order is the document stored in the orders table, keyed by SerialCode.
type Order struct {
	SerialCode  string      `dynamodbav:"serial_code" json:"serial_code"` // PK
	RequesterID string      `dynamodbav:"requester_id" json:"requester_id"`
	Status      OrderStatus `dynamodbav:"status" json:"status"`
	CreatedAt   time.Time   `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `dynamodbav:"updated_at" json:"updated_at"`
	Version     int         `dynamodbav:"version" json:"-"`
	Lines       []Line      `dynamodbav:"lines" json:"lines"`
}

// SerialClaim reserves a serial for exactly one line. One item per serial in
// the serials table is the store-enforced unique index.
type SerialClaim struct {
	Serial    string    `dynamodbav:"serial"` // PK
	OrderCode string    `dynamodbav:"order_code"`
	PartKey   string    `dynamodbav:"part_key"`
	ClaimedAt time.Time `dynamodbav:"claimed_at"`
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	c := o
	c.Lines = make([]Line, len(o.Lines))
	for i, l := range o.Lines {
		l.Deliveries = append([]Delivery(nil), l.Deliveries...)
		c.Lines[i] = l
	}
	return c
}

// Line returns the line for partKey, or nil.
func (o *Order) Line(partKey string) *Line {
	for i := range o.Lines {
		if o.Lines[i].PartKey == partKey {
			return &o.Lines[i]
		}
	}
	return nil
}

// RemoveLine drops the line for partKey and returns it.
func (o *Order) RemoveLine(partKey string) (Line, bool) {
	for i, l := range o.Lines {
		if l.PartKey == partKey {
			o.Lines = append(o.Lines[:i], o.Lines[i+1:]...)
			return l, true
		}
	}
	return Line{}, false
}

// Serials lists every serial delivered against o.
func (o *Order) Serials() []string {
	var out []string
	for _, l := range o.Lines {
		out = append(out, l.Serials()...)
	}
	return out
}

func (l Line) Serials() []string {
	out := make([]string, 0, len(l.Deliveries))
	for _, d := range l.Deliveries {
		out = append(out, d.Serial)
	}
	return out
}

// Delivery returns the record for serial, or nil.
func (l *Line) Delivery(serial string) *Delivery {
	for i := range l.Deliveries {
		if l.Deliveries[i].Serial == serial {
			return &l.Deliveries[i]
		}
	}
	return nil
}

// RemoveDelivery drops the record for serial.
func (l *Line) RemoveDelivery(serial string) bool {
	for i, d := range l.Deliveries {
		if d.Serial == serial {
			l.Deliveries = append(l.Deliveries[:i], l.Deliveries[i+1:]...)
			return true
		}
	}
	return false
}

func (l Line) DeliveredCount() int { return len(l.Deliveries) }

// Remaining is the number of units still expected.
func (l Line) Remaining() int { return l.Quantity - len(l.Deliveries) }

// LastDelivered returns the most recent delivery time, or nil.
func (l Line) LastDelivered() *time.Time {
	var last *time.Time
	for i := range l.Deliveries {
		at := l.Deliveries[i].DeliveredAt
		if last == nil || at.After(*last) {
			last = &at
		}
	}
	return last
}

// ConfirmedCount counts confirmed records on the line.
func (l Line) ConfirmedCount() int {
	n := 0
	for _, d := range l.Deliveries {
		if d.Status == DeliveryConfirmed {
			n++
		}
	}
	return n
}
