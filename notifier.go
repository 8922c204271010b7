package accounts

import (
	"bytes"
	"context"
	"io"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/oklog/ulid/v2"
)

// Notification is a rendered message ready for a transport
type Notification struct {
	ID         string
	Subject    string
	Body       string
	Recipients []string
	CreatedAt  time.Time
}

// Transport delivers notifications, SMTP in production and the console
// while developing
type Transport interface {
	Deliver(ctx context.Context, msg *Notification) error
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, msg *Notification) error

// Deliver implements Transport
func (f TransportFunc) Deliver(ctx context.Context, msg *Notification) error {
	return f(ctx, msg)
}

// TemplateRenderer renders a named template, the view engine satisfies it
type TemplateRenderer interface {
	Render(out io.Writer, name string, binding any, layout ...string) error
}

// Dispatcher renders and sends notifications
type Dispatcher struct {
	transport    Transport
	renderer     TemplateRenderer
	logger       Logger
	activitySink ActivitySink
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher for the given transport
func NewDispatcher(transport Transport, renderer TemplateRenderer) *Dispatcher {
	return &Dispatcher{
		transport:    transport,
		renderer:     renderer,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

// WithLogger sets the logger
func (d *Dispatcher) WithLogger(logger Logger) *Dispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithActivitySink records failed deliveries
func (d *Dispatcher) WithActivitySink(sink ActivitySink) *Dispatcher {
	d.activitySink = normalizeActivitySink(sink)
	return d
}

// Send delivers subject and body to every recipient in a single message.
// An empty recipient list is a no-op.
func (d *Dispatcher) Send(ctx context.Context, subject, body string, recipients ...string) error {
	to := compactRecipients(recipients)
	if len(to) == 0 {
		d.logger.Debug("notification skipped, no recipients", "subject", subject)
		return nil
	}

	msg := &Notification{
		ID:         newMessageID(),
		Subject:    subject,
		Body:       body,
		Recipients: to,
		CreatedAt:  time.Now().UTC(),
	}

	if err := d.transport.Deliver(ctx, msg); err != nil {
		d.logger.Error("notification delivery failed", "id", msg.ID, "subject", subject, "error", err)
		recordActivity(ctx, d.activitySink, d.logger, ActivityEvent{
			EventType: ActivityEventNotificationFailed,
			Actor:     ActorRef{Type: "system"},
			Metadata: map[string]any{
				"subject":    subject,
				"message_id": msg.ID,
			},
		})
		return errors.Wrap(err, errors.CategoryOperation, "failed to deliver notification").
			WithTextCode(TextCodeNotificationFailed).
			WithCode(errors.CodeInternal).
			WithMetadata(map[string]any{
				"subject":    subject,
				"message_id": msg.ID,
			})
	}

	d.logger.Info("notification sent", "id", msg.ID, "subject", subject, "recipients", len(to))
	return nil
}

// SendTemplate renders the named template with data and sends the result
func (d *Dispatcher) SendTemplate(ctx context.Context, subject, template string, data map[string]any, recipients ...string) error {
	var body bytes.Buffer
	if err := d.renderer.Render(&body, template, data); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to render notification template").
			WithMetadata(map[string]any{
				"template": template,
			})
	}
	return d.Send(ctx, subject, body.String(), recipients...)
}

func compactRecipients(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		key := strings.ToLower(r)
		if r == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
