package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
)

// StreamName is the JetStream stream holding status events.
const StreamName = "BBREPORT"

const publishTimeout = 5 * time.Second

// Event is the payload published for a builder status transition.
type Event struct {
	ID      string    `json:"id"`
	Builder string    `json:"builder"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

// NewEvent converts a transition into an event with a fresh id.
func NewEvent(t fleet.Transition) Event {
	return Event{
		ID:      uuid.NewString(),
		Builder: t.Builder,
		From:    string(t.From),
		To:      string(t.To),
		At:      t.At.UTC(),
	}
}

type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSNotifier publishes transitions to a JetStream subject. The event id is
// used as message id so that redelivered publishes are deduplicated.
type NATSNotifier struct {
	conn    *nats.Conn
	js      publisher
	subject string
	logger  *slog.Logger
}

var _ fleet.Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier connects to url and makes sure a stream captures subject.
func NewNATSNotifier(ctx context.Context, url, subject string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url, nats.Name("bbreport"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Builder status transitions",
		Subjects:    []string{subject},
		MaxAge:      7 * 24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}

	logger.Info("NATS notifier initialized", logfields.URL(url), slog.String("subject", subject))
	return &NATSNotifier{conn: conn, js: js, subject: subject, logger: logger}, nil
}

// Notify publishes one transition.
func (n *NATSNotifier) Notify(ctx context.Context, t fleet.Transition) error {
	event := NewEvent(t)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := n.js.Publish(pctx, n.subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	n.logger.Debug("Published status transition",
		logfields.Builder(t.Builder),
		slog.String("from", event.From),
		slog.String("to", event.To))
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// LogNotifier logs transitions when no broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs one transition.
func (l LogNotifier) Notify(_ context.Context, t fleet.Transition) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Builder status changed",
		logfields.Builder(t.Builder),
		slog.String("from", string(t.From)),
		slog.String("to", string(t.To)))
	return nil
}
