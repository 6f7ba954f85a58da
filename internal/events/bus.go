package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"hotelbooking/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const Topic = "hotel.events"

type Type string

const (
	BookingCreated    Type = "booking.created"
	BookingConfirmed  Type = "booking.confirmed"
	BookingCheckedIn  Type = "booking.checked_in"
	BookingCheckedOut Type = "booking.checked_out"
	BookingCompleted  Type = "booking.completed"
	BookingCancelled  Type = "booking.cancelled"
	BookingRefunded   Type = "booking.refunded"
	BookingDeleted    Type = "booking.deleted"
	RoomStatusChanged Type = "room.status_changed"
	PaymentCompleted  Type = "payment.completed"
	PaymentFailed     Type = "payment.failed"
	RefundRequested   Type = "refund.requested"
	RefundCompleted   Type = "refund.completed"
	RefundFailed      Type = "refund.failed"
)

// Event is a fact about a committed ledger change.
type Event struct {
	Type       Type                   `json:"type"`
	BookingID  int64                  `json:"booking_id,omitempty"`
	RoomID     int64                  `json:"room_id,omitempty"`
	UserID     int64                  `json:"user_id,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// Bus is an in-process pub/sub backed by a watermill go channel.
type Bus struct {
	pubSub *gochannel.GoChannel
	log    logger.ILogger
}

func NewBus(log logger.ILogger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NopLogger{},
	)
	return &Bus{pubSub: pubSub, log: log}
}

// Publish never fails the caller. Ledger changes are already committed.
func (b *Bus) Publish(ctx context.Context, events ...Event) {
	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now().UTC()
		}
		payload, err := json.Marshal(e)
		if err != nil {
			b.log.Error("events", "Failed to marshal event", map[string]interface{}{"type": e.Type, "error": err})
			continue
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)
		if err := b.pubSub.Publish(Topic, msg); err != nil {
			b.log.Warn("events", "Failed to publish event", map[string]interface{}{"type": e.Type, "error": err.Error()})
		}
	}
}

// Subscribe delivers every event to handle until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, name string, handle func(context.Context, Event) error) error {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var e Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				b.log.Error("events", "Dropping malformed event", map[string]interface{}{"subscriber": name, "error": err})
				msg.Ack()
				continue
			}
			if err := handle(ctx, e); err != nil {
				b.log.Warn("events", "Subscriber failed", map[string]interface{}{
					"subscriber": name,
					"type":       e.Type,
					"booking_id": e.BookingID,
					"error":      err.Error(),
				})
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// Discard drops events. Handy when a caller has nothing listening.
type Discard struct{}

func (Discard) Publish(context.Context, ...Event) {}

// Recorder keeps published events in memory for assertions.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, events...)
}

func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}

// Outbox collects events inside a transaction. Flush it only after commit.
type Outbox struct {
	pending []Event
}

func (o *Outbox) Add(events ...Event) {
	o.pending = append(o.pending, events...)
}

func (o *Outbox) Flush(ctx context.Context, pub Publisher) {
	if pub == nil || len(o.pending) == 0 {
		return
	}
	pub.Publish(ctx, o.pending...)
	o.pending = nil
}
