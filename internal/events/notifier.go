package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Lokman32/leadprep/internal/aws"
)

// Notifier publishes committed lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// SQSNotifier sends events to an SQS queue through an aws.Publisher. The
// event type and order code travel as message attributes.
type SQSNotifier struct {
	pub *aws.Publisher
}

func NewSQSNotifier(pub *aws.Publisher) *SQSNotifier {
	return &SQSNotifier{pub: pub}
}

func (n *SQSNotifier) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.pub.Send(ctx, string(body), map[string]string{
		"event_type": string(ev.Type),
		"order_code": ev.OrderCode,
	})
}

// Discard drops every event. Used when no queue is configured.
type Discard struct{}

func (Discard) Notify(context.Context, Event) error { return nil }

// Multi fans each event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
