// Package events publishes site domain events to NATS JetStream.
// A nil *Publisher, or one built without JetStream, is a silent no-op.
package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	StreamName = "SITE_EVENTS"

	SubjectCommentCreated   = "site.comments.created"
	SubjectCommentVoted     = "site.comments.voted"
	SubjectRevivalRequested = "site.revival.requested"
)

// Event is the envelope sent on every site.* subject.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.js != nil
}

// Publish sends an event fire-and-forget. Failures are logged, never returned.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if !p.Enabled() {
		return
	}
	data, err := json.Marshal(Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	})
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// EnsureStream creates SITE_EVENTS covering site.> or widens an existing one.
func EnsureStream(js nats.JetStreamContext) error {
	if js == nil {
		return errors.New("events: jetstream not configured")
	}
	info, err := js.StreamInfo(StreamName)
	if err == nil {
		for _, s := range info.Config.Subjects {
			if s == "site.>" {
				return nil
			}
		}
		cfg := info.Config
		cfg.Subjects = []string{"site.>"}
		_, err = js.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"site.>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	return err
}

// Decode unmarshals an Event from a message body.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
