package visit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventType names a lifecycle change.
type EventType string

const (
	EventCreated         EventType = "visit.created"
	EventUpdated         EventType = "visit.updated"
	EventSubmitted       EventType = "visit.submitted"
	EventApproved        EventType = "visit.approved"
	EventRejected        EventType = "visit.rejected"
	EventRepostRequested EventType = "visit.repost_requested"
	EventReposted        EventType = "visit.reposted"
)

// Event is published after a lifecycle change has been persisted.
type Event struct {
	Type       EventType   `json:"type"`
	VisitID    string      `json:"visitId"`
	Place      string      `json:"place"`
	PostedTo   Designation `json:"postedTo"`
	Status     Status      `json:"status"`
	Deadline   time.Time   `json:"deadline"`
	ActorID    uint        `json:"actorId"`
	Actor      string      `json:"actor"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func newEvent(t EventType, v Visit, s Session, now time.Time) Event {
	return Event{
		Type:       t,
		VisitID:    v.ID,
		Place:      v.Place,
		PostedTo:   v.PostedTo,
		Status:     v.Status,
		Deadline:   v.Deadline,
		ActorID:    s.UserID,
		Actor:      s.Username,
		OccurredAt: now,
	}
}

// Publisher delivers lifecycle events to whoever reacts to them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher publishes events as JSON keyed by visit id, so every event
// of one visit lands on the same partition in order.
func NewKafkaPublisher(w *kafka.Writer) Publisher {
	return &kafkaPublisher{writer: w}
}

func (p *kafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.VisitID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	})
}

type nopPublisher struct{}

// NopPublisher drops every event.
func NopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
