package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/companionly/booking-server-go/internal/model"
	"github.com/companionly/booking-server-go/internal/sse"
)

// Lifecycle event names pushed through the notification relay.
const (
	EventBookingApproved     = "booking.approved"
	EventBookingCancelled    = "booking.cancelled"
	EventRequestAccepted     = "request.accepted"
	EventRequestRejected     = "request.rejected"
	EventMeetingVerified     = "meeting.verified"
	EventVerificationExpired = "verification.expired"
)

// Publisher is the slice of the SSE broker that services need.
type Publisher interface {
	Publish(ctx context.Context, partyID int64, event sse.Event) error
}

// Notifier pushes lifecycle-transition events to parties. Delivery is
// best-effort: a broadcast failure is logged and never fails the status
// mutation that triggered it.
type Notifier struct {
	publisher Publisher
}

func NewNotifier(publisher Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

func (n *Notifier) Notify(ctx context.Context, partyID int64, eventType string, payload any) {
	if n == nil || n.publisher == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		return
	}

	event := sse.Event{Type: eventType, Data: data}
	if err := n.publisher.Publish(ctx, partyID, event); err != nil {
		log.Warn().
			Err(err).
			Int64("partyId", partyID).
			Str("event", eventType).
			Msg("failed to publish event")
	}
}

// NotifyBoth sends the same event to both parties on a booking.
func (n *Notifier) NotifyBoth(ctx context.Context, booking *model.Booking, eventType string, payload any) {
	n.Notify(ctx, booking.ClientID, eventType, payload)
	n.Notify(ctx, booking.CompanionID, eventType, payload)
}
