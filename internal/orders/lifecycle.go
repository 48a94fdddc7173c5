package orders

// Open reports whether a line still accepts deliveries.
func (s LineStatus) Open() bool {
	return s == LinePending || s == LinePartiallyDelivered
}

// Terminal reports whether no lifecycle operation may change the line.
func (s LineStatus) Terminal() bool {
	return s == LineConfirmed || s == LineCancelled
}

// DeriveLineStatus computes a line's status from its delivery records.
// A line only confirms when it is complete and every record is confirmed.
func DeriveLineStatus(l Line) LineStatus {
	if l.Status == LineCancelled {
		return LineCancelled
	}
	n := len(l.Deliveries)
	switch {
	case n == 0:
		return LinePending
	case n < l.Quantity:
		return LinePartiallyDelivered
	case l.ConfirmedCount() == n:
		return LineConfirmed
	default:
		return LineDelivered
	}
}

// DeriveOrderStatus computes an order's status from its lines. Cancelled
// lines are ignored unless every line is cancelled. An order without lines
// keeps its current status.
func DeriveOrderStatus(o Order) OrderStatus {
	if len(o.Lines) == 0 {
		return o.Status
	}
	active, confirmed, delivered := 0, 0, 0
	for _, l := range o.Lines {
		switch l.Status {
		case LineCancelled:
			continue
		case LineConfirmed:
			confirmed++
		case LineDelivered:
			delivered++
		}
		active++
	}
	switch {
	case active == 0:
		return OrderCancelled
	case confirmed == active:
		return OrderConfirmed
	case confirmed+delivered == active:
		return OrderDelivered
	default:
		return OrderPending
	}
}

// Recompute re-derives every line status and then the order status. It runs
// on the mutated document right before each conditional write.
func (o *Order) Recompute() {
	for i := range o.Lines {
		o.Lines[i].Status = DeriveLineStatus(o.Lines[i])
	}
	o.Status = DeriveOrderStatus(*o)
}
