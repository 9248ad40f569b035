package service

import (
	"context"

	"slotbook/pkg/kafka"
	"slotbook/pkg/model"
)

const (
	EventBookingCreated = "booking.created"
	EventBookingUpdated = "booking.updated"
	EventBookingDeleted = "booking.deleted"

	eventSchemaVersion = "1"
	eventSource        = "bookings"
)

// EventPublisher is the audit-event feed. Satisfied by kafka.Producer; a nil
// publisher disables the feed entirely.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	PublishBatch(ctx context.Context, messages []kafka.Message) error
}

func buildBookingEvent(eventType string, booking *model.Booking) kafka.Message {
	return kafka.NewMessage().
		WithKey(booking.ID).
		WithValue(booking).
		WithEventType(eventType).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(eventSource).
		Build()
}

// publishEvent emits one audit event. The feed is best-effort: a publish
// failure is logged and never fails the committed operation.
func (s *bookingService) publishEvent(ctx context.Context, eventType string, booking *model.Booking) {
	if s.events == nil {
		return
	}

	if err := s.events.Publish(ctx, buildBookingEvent(eventType, booking)); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

func (s *bookingService) publishEvents(ctx context.Context, eventType string, bookings []*model.Booking) {
	if s.events == nil || len(bookings) == 0 {
		return
	}

	messages := make([]kafka.Message, 0, len(bookings))
	for _, b := range bookings {
		messages = append(messages, buildBookingEvent(eventType, b))
	}

	if err := s.events.PublishBatch(ctx, messages); err != nil {
		s.cfg.Log.Warn("Failed to publish booking events",
			"event_type", eventType,
			"count", len(bookings),
			"error", err,
		)
	}
}
