package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	apperrors "github.com/companionly/booking-server-go/internal/errors"
	"github.com/companionly/booking-server-go/internal/geo"
	"github.com/companionly/booking-server-go/internal/model"
	"github.com/companionly/booking-server-go/internal/payment"
	"github.com/companionly/booking-server-go/internal/repository"
)

// BookingService orchestrates the booking lifecycle: quoting, creation against
// an authorized payment hold, approval, cancellation and auto-completion.
type BookingService struct {
	bookingRepo repository.BookingRepository
	partyRepo   repository.PartyRepository
	payments    payment.Client
	geocoder    geo.Client
	notifier    *Notifier
	currency    string
	grace       time.Duration
	now         func() time.Time
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	partyRepo repository.PartyRepository,
	payments payment.Client,
	geocoder geo.Client,
	notifier *Notifier,
	currency string,
	grace time.Duration,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		partyRepo:   partyRepo,
		payments:    payments,
		geocoder:    geocoder,
		notifier:    notifier,
		currency:    currency,
		grace:       grace,
		now:         time.Now,
	}
}

// Quote is the server-side money computation: duration in hours times the
// companion's hourly rate, plus extras. Caller-supplied totals are never
// trusted; they are checked against this figure.
type Quote struct {
	BaseAmount  decimal.Decimal `json:"baseAmount"`
	ExtraAmount decimal.Decimal `json:"extraAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
}

func (s *BookingService) QuoteFor(ctx context.Context, companionID int64, start, end time.Time, extra decimal.Decimal) (*Quote, error) {
	if !end.After(start) {
		return nil, apperrors.ValidationError("end time must be after start time")
	}
	if extra.IsNegative() {
		return nil, apperrors.ValidationError("extra amount must not be negative")
	}

	companion, err := s.partyRepo.FindByID(ctx, companionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if companion == nil || companion.Role != model.RoleCompanion {
		return nil, apperrors.NotFound("Companion")
	}

	hours := decimal.NewFromFloat(end.Sub(start).Hours())
	base := companion.HourlyRate.Mul(hours).Round(2)
	total := base.Add(extra).Round(2)

	return &Quote{
		BaseAmount:  base,
		ExtraAmount: extra,
		TotalAmount: total,
		Currency:    s.currency,
	}, nil
}

// CreatePaymentIntent quotes the booking and opens a payment authorization for
// the quoted total. The returned intent id is what CreateWithPayment consumes.
func (s *BookingService) CreatePaymentIntent(ctx context.Context, actor model.ActingParty, companionID int64, start, end time.Time, extra decimal.Decimal) (*payment.Intent, *Quote, error) {
	if actor.Role != model.RoleClient {
		return nil, nil, apperrors.PermissionDenied("only clients create payment intents")
	}

	quote, err := s.QuoteFor(ctx, companionID, start, end, extra)
	if err != nil {
		return nil, nil, err
	}

	intent, err := s.payments.CreateIntent(ctx, quote.TotalAmount, quote.Currency)
	if err != nil {
		return nil, nil, apperrors.External("payment gateway", err)
	}
	return intent, quote, nil
}

type CreateBookingInput struct {
	CompanionID     int64
	StartTime       time.Time
	EndTime         time.Time
	Timezone        string
	ExtraAmount     decimal.Decimal
	TotalAmount     decimal.Decimal // caller-claimed total, validated against the quote
	MeetingLocation string
	PlaceID         *string
	PaymentIntentID string
	RequestID       *int64
}

// CreateWithPayment persists a booking against a previously authorized payment
// intent. Money figures are recomputed server-side; a mismatched caller total
// is rejected, not corrected.
func (s *BookingService) CreateWithPayment(ctx context.Context, actor model.ActingParty, input CreateBookingInput) (*model.Booking, error) {
	if actor.Role != model.RoleClient {
		return nil, apperrors.PermissionDenied("only clients create bookings")
	}
	if input.MeetingLocation == "" {
		return nil, apperrors.MissingRequired("meetingLocation")
	}
	if input.PaymentIntentID == "" {
		return nil, apperrors.MissingRequired("paymentIntentId")
	}

	quote, err := s.QuoteFor(ctx, input.CompanionID, input.StartTime, input.EndTime, input.ExtraAmount)
	if err != nil {
		return nil, err
	}
	if !input.TotalAmount.Equal(quote.TotalAmount) {
		return nil, apperrors.ValidationError("total amount does not match the server-computed quote").
			WithDetails(map[string]string{"expectedTotal": quote.TotalAmount.String()})
	}

	if _, err := s.payments.ConfirmIntent(ctx, input.PaymentIntentID); err != nil {
		switch {
		case errors.Is(err, payment.ErrIntentNotFound):
			return nil, apperrors.PaymentError("unknown payment intent")
		case errors.Is(err, payment.ErrIntentConsumed):
			return nil, apperrors.PaymentError("payment intent already consumed")
		default:
			return nil, apperrors.External("payment gateway", err)
		}
	}

	timezone := input.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	params := model.CreateBookingParams{
		ClientID:        actor.ID,
		CompanionID:     input.CompanionID,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		Timezone:        timezone,
		BaseAmount:      quote.BaseAmount,
		ExtraAmount:     quote.ExtraAmount,
		TotalAmount:     quote.TotalAmount,
		Status:          model.BookingPaymentHeld,
		MeetingLocation: input.MeetingLocation,
		PlaceID:         input.PlaceID,
		PaymentIntentID: &input.PaymentIntentID,
		RequestID:       input.RequestID,
	}

	// Geocoding is best-effort: a booking without coordinates still works, the
	// verification proximity check just degrades to code-only.
	if s.geocoder != nil {
		coords, err := s.geocoder.Geocode(ctx, input.MeetingLocation)
		if err != nil {
			log.Warn().Err(err).Str("location", input.MeetingLocation).Msg("geocoding failed")
		} else if coords != nil {
			params.MeetingLat = &coords.Lat
			params.MeetingLon = &coords.Lon
		}
	}

	booking, err := s.bookingRepo.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Int64("bookingId", booking.ID).
		Int64("clientId", booking.ClientID).
		Int64("companionId", booking.CompanionID).
		Str("total", booking.TotalAmount.String()).
		Msg("booking created with payment held")

	return booking, nil
}

// Approve moves a pending or payment_held booking to confirmed. Only the
// booking's companion may approve.
func (s *BookingService) Approve(ctx context.Context, actor model.ActingParty, id int64) (*model.Booking, error) {
	booking, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != booking.CompanionID {
		return nil, apperrors.PermissionDenied("only the companion approves a booking")
	}

	ok, err := s.bookingRepo.MarkConfirmed(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ok {
		return nil, apperrors.InvalidState(fmt.Sprintf("booking cannot be approved from status %q", booking.Status))
	}

	booking, err = s.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, booking.ClientID, EventBookingApproved, booking)

	log.Info().Int64("bookingId", id).Msg("booking approved")
	return booking, nil
}

// Cancel moves a booking to cancelled, recording which party cancelled and
// why. Releasing the payment hold is best-effort: a gateway hiccup must never
// block the cancellation itself.
func (s *BookingService) Cancel(ctx context.Context, actor model.ActingParty, id int64, reason string) (*model.Booking, error) {
	if reason == "" {
		return nil, apperrors.MissingRequired("reason")
	}

	booking, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	role, _ := booking.RoleOf(actor.ID)
	ok, err := s.bookingRepo.MarkCancelled(ctx, id, &role, reason)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ok {
		// Lost the race; re-read to tell a verified meeting apart from a
		// terminal status.
		booking, err = s.reload(ctx, id)
		if err != nil {
			return nil, err
		}
		if booking.VerifiedAt != nil {
			return nil, apperrors.InvalidState("booking is already verified")
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("booking cannot be cancelled from status %q", booking.Status))
	}

	s.releasePayment(ctx, booking)

	booking, err = s.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	other := booking.PartyIDFor(role.Other())
	s.notifier.Notify(ctx, other, EventBookingCancelled, booking)

	log.Info().
		Int64("bookingId", id).
		Str("cancelledBy", string(role)).
		Msg("booking cancelled")

	return booking, nil
}

// AutoComplete transitions a confirmed-like booking to completed once the
// current time is past the scheduled end plus the grace period. Calls before
// the boundary, and repeat calls after completion, are no-ops.
func (s *BookingService) AutoComplete(ctx context.Context, id int64) error {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if booking == nil {
		return apperrors.NotFound("Booking")
	}
	if !booking.Status.ConfirmedLike() {
		return nil
	}

	endBefore := s.now().Add(-s.grace)
	completed, err := s.bookingRepo.MarkCompleted(ctx, id, endBefore)
	if err != nil {
		return apperrors.Database(err)
	}
	if completed {
		log.Info().Int64("bookingId", id).Msg("booking auto-completed")
	}
	return nil
}

// CompleteDue is the sweep variant of AutoComplete used by the background job.
func (s *BookingService) CompleteDue(ctx context.Context) (int64, error) {
	endBefore := s.now().Add(-s.grace)
	return s.bookingRepo.CompleteDue(ctx, endBefore)
}

// ListForParty returns the acting party's bookings in needing-attention order.
// filter is a status value or "all"/empty for everything.
func (s *BookingService) ListForParty(ctx context.Context, actor model.ActingParty, filter string) ([]model.Booking, error) {
	var status *model.BookingStatus
	if filter != "" && filter != "all" {
		st := model.BookingStatus(filter)
		if !st.Valid() {
			return nil, apperrors.InvalidInput("status", fmt.Sprintf("unknown status %q", filter))
		}
		status = &st
	}

	bookings, err := s.bookingRepo.ListForParty(ctx, actor.ID, actor.Role, status)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	SortByAttention(bookings)
	return bookings, nil
}

// GetForParty loads one booking the acting party is on.
func (s *BookingService) GetForParty(ctx context.Context, actor model.ActingParty, id int64) (*model.Booking, error) {
	return s.loadForParty(ctx, actor, id)
}

// SortByAttention orders bookings needing-attention first: pending requests,
// then confirmed/in-progress by date ascending, terminal states last with the
// most recent first. This priority ordering is a product decision, defined
// exactly once here.
func SortByAttention(bookings []model.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := &bookings[i], &bookings[j]

		ra, rb := attentionRank(a.Status), attentionRank(b.Status)
		if ra != rb {
			return ra < rb
		}
		if a.Status.Terminal() {
			return a.StartTime.After(b.StartTime)
		}
		return a.StartTime.Before(b.StartTime)
	})
}

func attentionRank(s model.BookingStatus) int {
	switch {
	case s == model.BookingPending:
		return 0
	case s.ConfirmedLike():
		return 1
	default:
		return 2
	}
}

func (s *BookingService) releasePayment(ctx context.Context, booking *model.Booking) {
	if booking.PaymentIntentID == nil {
		return
	}
	if err := s.payments.Release(ctx, *booking.PaymentIntentID); err != nil {
		log.Error().
			Err(err).
			Int64("bookingId", booking.ID).
			Str("intentId", *booking.PaymentIntentID).
			Msg("failed to release payment hold; needs reconciliation")
	}
}

func (s *BookingService) loadForParty(ctx context.Context, actor model.ActingParty, id int64) (*model.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("Booking")
	}
	if _, ok := booking.RoleOf(actor.ID); !ok {
		return nil, apperrors.PermissionDenied("not a party on this booking")
	}
	return booking, nil
}

func (s *BookingService) reload(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("Booking")
	}
	return booking, nil
}
