package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

// MailJobMessage is the wire payload consumed by the external mail worker.
type MailJobMessage struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
	QueuedAt  time.Time         `json:"queuedAt"`
}

// PubSubMailer enqueues mail jobs on a Pub/Sub topic. Rendering and SMTP
// delivery happen in the mail worker; from the core's perspective a
// successful publish is a successful send.
type PubSubMailer struct {
	topic   *pubsub.Topic
	clock   func() time.Time
	timeout time.Duration
	marshal func(any) ([]byte, error)
}

// PubSubMailerOption customises PubSubMailer construction.
type PubSubMailerOption func(*PubSubMailer)

// WithPublishTimeout bounds each publish; a timeout surfaces as a delivery
// failure, never as a transition failure.
func WithPublishTimeout(timeout time.Duration) PubSubMailerOption {
	return func(m *PubSubMailer) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithClock overrides the queue timestamp source.
func WithClock(clock func() time.Time) PubSubMailerOption {
	return func(m *PubSubMailer) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewPubSubMailer constructs a Pub/Sub backed Mailer.
func NewPubSubMailer(topic *pubsub.Topic, opts ...PubSubMailerOption) (*PubSubMailer, error) {
	if topic == nil {
		return nil, errors.New("pubsub mailer: topic is required")
	}
	mailer := &PubSubMailer{
		topic:   topic,
		clock:   time.Now,
		timeout: 10 * time.Second,
		marshal: json.Marshal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mailer)
		}
	}
	return mailer, nil
}

// SendTemplatedEmail implements Mailer by publishing a mail job message.
func (m *PubSubMailer) SendTemplatedEmail(ctx context.Context, recipient string, template Template, variables map[Placeholder]string) error {
	if m == nil || m.topic == nil {
		return errors.New("pubsub mailer: not initialised")
	}
	if recipient == "" {
		return errors.New("pubsub mailer: recipient is required")
	}

	vars := make(map[string]string, len(variables))
	for key, value := range variables {
		vars[string(key)] = value
	}

	data, err := m.marshal(MailJobMessage{
		Recipient: recipient,
		Template:  string(template),
		Variables: vars,
		QueuedAt:  m.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}

	publishCtx := ctx
	var cancel context.CancelFunc
	if m.timeout > 0 {
		publishCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	result := m.topic.Publish(publishCtx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"template":  string(template),
			"recipient": recipient,
		},
	})
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}
