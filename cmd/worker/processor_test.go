package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lokman32/leadprep/internal/events"
	"github.com/Lokman32/leadprep/internal/reporting"
)

type datum struct {
	name  string
	value float64
	dims  map[string]string
}

type fakeSink struct {
	counts []datum
	gauges []datum
	err    error
}

func (f *fakeSink) Count(_ context.Context, name string, value float64, dims map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.counts = append(f.counts, datum{name, value, dims})
	return nil
}

func (f *fakeSink) Gauge(_ context.Context, name string, value float64, dims map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.gauges = append(f.gauges, datum{name, value, dims})
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func message(t *testing.T, id string, ev events.Event) lambdaevents.SQSMessage {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return lambdaevents.SQSMessage{MessageId: id, Body: string(body)}
}

func TestWorkerProcess_Success(t *testing.T) {
	sink := &fakeSink{}
	p := NewProcessor(sink, quietLogger())
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

	resp, err := p.Handle(context.Background(), lambdaevents.SQSEvent{Records: []lambdaevents.SQSMessage{
		message(t, "m1", events.New(events.DeliveryRecorded, "CMD-1", at).WithPart("X1", "S1")),
		message(t, "m2", events.New(events.OrderConfirmed, "CMD-1", at)),
		message(t, "m3", events.Event{Type: "unknown.type"}),
		{MessageId: "m4", Body: "not json"},
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)

	require.Len(t, sink.counts, 2)
	assert.Equal(t, "DeliveriesRecorded", sink.counts[0].name)
	assert.Equal(t, map[string]string{"EventType": "delivery.recorded", "Part": "X1"}, sink.counts[0].dims)
	assert.Equal(t, "OrdersConfirmed", sink.counts[1].name)
	assert.Equal(t, 1.0, sink.counts[1].value)
}

func TestWorkerProcess_ReportsFailures(t *testing.T) {
	sink := &fakeSink{err: errors.New("throttled")}
	p := NewProcessor(sink, quietLogger())

	resp, err := p.Handle(context.Background(), lambdaevents.SQSEvent{Records: []lambdaevents.SQSMessage{
		message(t, "m1", events.New(events.OrderCreated, "CMD-1", time.Now())),
	}})
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m1", resp.BatchItemFailures[0].ItemIdentifier)
}

type fakeOverdue struct {
	rows []reporting.LineRow
	err  error
}

func (f fakeOverdue) Overdue(context.Context, time.Time) ([]reporting.LineRow, error) {
	return f.rows, f.err
}

func TestScanOverdue(t *testing.T) {
	sink := &fakeSink{}
	p := NewProcessor(sink, quietLogger())

	n, err := p.ScanOverdue(context.Background(), fakeOverdue{rows: []reporting.LineRow{
		{OrderCode: "CMD-1", PartID: "X1"},
		{OrderCode: "CMD-2", PartID: "X2"},
	}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.gauges, 1)
	assert.Equal(t, overdueMetric, sink.gauges[0].name)
	assert.Equal(t, 2.0, sink.gauges[0].value)

	_, err = p.ScanOverdue(context.Background(), fakeOverdue{err: errors.New("scan failed")}, time.Now())
	assert.Error(t, err)
}
