package notification

import (
	"context"
	"fmt"

	"hotelbooking/internal/events"
	"hotelbooking/internal/pkg/logger"
)

const module = "notification"

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type template func(e events.Event) (subject, body string)

func fixed(subject, body string) template {
	return func(e events.Event) (string, string) {
		return fmt.Sprintf(subject, e.BookingID), body
	}
}

func withData(subject, body, key string) template {
	return func(e events.Event) (string, string) {
		return fmt.Sprintf(subject, e.BookingID), fmt.Sprintf(body, e.Data[key])
	}
}

var guestTemplates = map[events.Type]template{
	events.BookingCreated:   fixed("Booking #%d received", "Your room is held until the payment goes through."),
	events.BookingConfirmed: fixed("Booking #%d confirmed", "Payment received. We look forward to your stay."),
	events.BookingCheckedIn: fixed("Welcome, booking #%d", "You are checked in. Enjoy your stay."),
	events.BookingCheckedOut: func(e events.Event) (string, string) {
		return "Thank you for staying with us", fmt.Sprintf("Booking #%d is checked out.", e.BookingID)
	},
	events.BookingCancelled: fixed("Booking #%d cancelled", "Your booking has been cancelled."),
	events.BookingRefunded:  fixed("Booking #%d refunded", "The full amount has been returned."),
}

var opsTemplates = map[events.Type]template{
	events.PaymentFailed:   withData("Payment failed for booking #%d", "Reason: %v", "reason"),
	events.RefundRequested: withData("Refund requested for booking #%d", "Amount: %v", "amount"),
	events.RefundCompleted: withData("Refund completed for booking #%d", "Amount: %v", "amount"),
	events.RefundFailed:    withData("Refund failed for booking #%d", "Reason: %v", "reason"),
	events.BookingRefunded: func(e events.Event) (string, string) {
		return fmt.Sprintf("Booking #%d fully refunded", e.BookingID), "Status: " + e.Status
	},
}

// Dispatcher turns ledger events into notifications. Nothing it does can fail the ledger:
// every delivery error is logged and dropped.
type Dispatcher struct {
	inbox    Sender
	mail     Sender
	opsEmail string
	stream   EventPublisher
	log      logger.ILogger
}

// NewDispatcher accepts nil for mail and stream when they are not configured.
func NewDispatcher(inbox, mail Sender, opsEmail string, stream EventPublisher, log logger.ILogger) *Dispatcher {
	return &Dispatcher{inbox: inbox, mail: mail, opsEmail: opsEmail, stream: stream, log: log}
}

func (d *Dispatcher) Handle(ctx context.Context, e events.Event) error {
	if t, ok := guestTemplates[e.Type]; ok && e.UserID != 0 && d.inbox != nil {
		subject, body := t(e)
		d.deliver(ctx, d.inbox, Message{
			Template:  string(e.Type),
			Recipient: UserRecipient(e.UserID),
			Subject:   subject,
			Body:      body,
			Data:      map[string]interface{}{"booking_id": e.BookingID, "status": e.Status},
		})
	}

	if t, ok := opsTemplates[e.Type]; ok && d.mail != nil && d.opsEmail != "" {
		subject, body := t(e)
		d.deliver(ctx, d.mail, Message{
			Template:  string(e.Type),
			Recipient: d.opsEmail,
			Subject:   subject,
			Body:      body,
			Data:      e.Data,
		})
	}

	if d.stream != nil {
		if err := d.stream.Publish(ctx, e); err != nil {
			d.log.Warn(module, "Failed to stream event", map[string]interface{}{
				"type":       e.Type,
				"booking_id": e.BookingID,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, s Sender, msg Message) {
	if err := s.Send(ctx, msg); err != nil {
		d.log.Warn(module, "Notification not delivered", map[string]interface{}{
			"template":  msg.Template,
			"recipient": msg.Recipient,
			"error":     err.Error(),
		})
	}
}

// Subscribe attaches the dispatcher to the event bus until ctx ends.
func (d *Dispatcher) Subscribe(ctx context.Context, bus *events.Bus) error {
	return bus.Subscribe(ctx, module, d.Handle)
}
