package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ederziomek/real-digital-token/internal/reserve"
)

const (
	DefaultSubjectPrefix = "reserve.events"
	DefaultStreamName    = "RESERVE_EVENTS"
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher publishes committed reserve events to
// <prefix>.<kind>. The journal entry id is used as the message id so the
// stream drops redeliveries.
type JetStreamPublisher struct {
	js     streamPublisher
	prefix string
}

var _ reserve.Publisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher builds a publisher over js. An empty prefix selects
// DefaultSubjectPrefix.
func NewJetStreamPublisher(js jetstream.JetStream, prefix string) *JetStreamPublisher {
	return newJetStreamPublisher(js, prefix)
}

func newJetStreamPublisher(js streamPublisher, prefix string) *JetStreamPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &JetStreamPublisher{js: js, prefix: prefix}
}

// Subject returns the subject events of kind are published on.
func (p *JetStreamPublisher) Subject(kind reserve.EntryKind) string {
	return fmt.Sprintf("%s.%s", p.prefix, kind)
}

// Publish implements reserve.Publisher.
func (p *JetStreamPublisher) Publish(ctx context.Context, event reserve.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.Subject(event.Kind), data, jetstream.WithMsgID(event.Entry.ID)); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	return nil
}

// EnsureStream creates or updates the stream capturing all reserve events.
func EnsureStream(ctx context.Context, js jetstream.JetStream, prefix string) error {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       DefaultStreamName,
		Subjects:   []string{prefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     30 * 24 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", DefaultStreamName, err)
	}
	return nil
}
