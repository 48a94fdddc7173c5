package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/events"
	"github.com/Lokman32/leadprep/internal/reporting"
)

// MetricWriter is satisfied by aws.MetricsSink.
type MetricWriter interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
	Gauge(ctx context.Context, name string, value float64, dims map[string]string) error
}

// Processor turns lifecycle events from the queue into CloudWatch metrics.
type Processor struct {
	sink MetricWriter
	log  logrus.FieldLogger
}

func NewProcessor(sink MetricWriter, log logrus.FieldLogger) *Processor {
	return &Processor{sink: sink, log: log.WithField("module", "worker")}
}

// Handle processes an SQS batch and reports the messages that failed so only
// those are redelivered.
func (p *Processor) Handle(ctx context.Context, ev lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.WithError(err).WithField("message_id", rec.MessageId).Error("worker error")
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec lambdaevents.SQSMessage) error {
	var ev events.Event
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		// a malformed body will never parse; drop it instead of retrying
		p.log.WithError(err).WithField("message_id", rec.MessageId).Warn("discarding invalid message body")
		return nil
	}
	name, ok := metricNames[ev.Type]
	if !ok {
		p.log.WithField("event_type", ev.Type).Debug("no metric for event type")
		return nil
	}

	dims := map[string]string{"EventType": string(ev.Type)}
	if ev.Part != "" {
		dims["Part"] = ev.Part
	}
	if err := p.sink.Count(ctx, name, 1, dims); err != nil {
		return fmt.Errorf("record %s for order %s: %w", name, ev.OrderCode, err)
	}
	p.log.WithFields(logrus.Fields{"event_type": ev.Type, "order": ev.OrderCode}).Info("event processed")
	return nil
}

// OverdueLister is satisfied by reporting.Service.
type OverdueLister interface {
	Overdue(ctx context.Context, now time.Time) ([]reporting.LineRow, error)
}

// ScanOverdue logs the lines still open past the overdue threshold and
// publishes their count as a gauge.
func (p *Processor) ScanOverdue(ctx context.Context, reports OverdueLister, now time.Time) (int, error) {
	rows, err := reports.Overdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue lines: %w", err)
	}
	for _, r := range rows {
		p.log.WithFields(logrus.Fields{
			"order":      r.OrderCode,
			"part":       r.PartID,
			"delivered":  r.Delivered,
			"quantity":   r.Quantity,
			"ordered_at": r.OrderedAt,
		}).Warn("line overdue")
	}
	if err := p.sink.Gauge(ctx, overdueMetric, float64(len(rows)), nil); err != nil {
		return len(rows), fmt.Errorf("record %s: %w", overdueMetric, err)
	}
	return len(rows), nil
}

// logSink stands in for CloudWatch when no AWS clients are configured.
type logSink struct {
	log logrus.FieldLogger
}

func (s logSink) Count(_ context.Context, name string, value float64, dims map[string]string) error {
	s.log.WithFields(logrus.Fields{"metric": name, "value": value, "dims": dims}).Info("count")
	return nil
}

func (s logSink) Gauge(_ context.Context, name string, value float64, dims map[string]string) error {
	s.log.WithFields(logrus.Fields{"metric": name, "value": value, "dims": dims}).Info("gauge")
	return nil
}
