package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Lokman32/leadprep/internal/events"
)

const meterName = "github.com/Lokman32/leadprep"

// Metrics holds the application instruments.
type Metrics struct {
	requests  metric.Int64Counter
	latency   metric.Float64Histogram
	lifecycle metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests by route and status"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	lifecycle, err := meter.Int64Counter("leadprep.lifecycle.events",
		metric.WithDescription("Committed order lifecycle events by type"))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, latency: latency, lifecycle: lifecycle}, nil
}

// Middleware records one request count and latency sample per request,
// labelled with the matched route rather than the raw path.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.status_code", strconv.Itoa(c.Writer.Status())),
		)
		ctx := c.Request.Context()
		m.requests.Add(ctx, 1, attrs)
		m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// Notify counts a lifecycle event, so Metrics can sit in an events.Multi.
func (m *Metrics) Notify(ctx context.Context, ev events.Event) error {
	m.lifecycle.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", string(ev.Type))))
	return nil
}
