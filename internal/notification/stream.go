package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hotelbooking/internal/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName    = "EVENTS"
	subjectPrefix = "events.hotel."
)

// Stream republishes ledger events on NATS JetStream for downstream systems.
type Stream struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewStream(url string) (*Stream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	return &Stream{nc: nc, js: js}, nil
}

// Subject maps an event type to its JetStream subject, e.g. events.hotel.booking.confirmed.
func Subject(t events.Type) string {
	return subjectPrefix + string(t)
}

func (s *Stream) Publish(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := s.js.Publish(ctx, Subject(e.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", Subject(e.Type), err)
	}
	return nil
}

func (s *Stream) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
