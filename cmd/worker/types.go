package main

import "github.com/Lokman32/leadprep/internal/events"

// metricNames maps lifecycle events to the CloudWatch metric they feed.
// Unknown types are acknowledged without a metric.
var metricNames = map[events.Type]string{
	events.OrderCreated:      "OrdersCreated",
	events.DeliveryRecorded:  "DeliveriesRecorded",
	events.DeliveryConfirmed: "DeliveriesConfirmed",
	events.OrderDelivered:    "OrdersDelivered",
	events.OrderConfirmed:    "OrdersConfirmed",
	events.LineCancelled:     "LinesCancelled",
	events.OrderDeleted:      "OrdersDeleted",
}

const overdueMetric = "OverdueLines"
