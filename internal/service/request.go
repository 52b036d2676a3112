package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/companionly/booking-server-go/internal/database"
	apperrors "github.com/companionly/booking-server-go/internal/errors"
	"github.com/companionly/booking-server-go/internal/model"
	"github.com/companionly/booking-server-go/internal/repository"
)

// TxRunner runs a function inside a database transaction. Satisfied by
// *database.DB.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// RequestService handles the pre-booking negotiation: a client proposes a
// custom booking, the companion accepts or rejects. Accepting materializes a
// Booking; the request itself never reaches confirmed or completed.
type RequestService struct {
	db          TxRunner
	requestRepo repository.RequestRepository
	bookingRepo repository.BookingRepository
	partyRepo   repository.PartyRepository
	notifier    *Notifier
	now         func() time.Time
}

func NewRequestService(
	db TxRunner,
	requestRepo repository.RequestRepository,
	bookingRepo repository.BookingRepository,
	partyRepo repository.PartyRepository,
	notifier *Notifier,
) *RequestService {
	return &RequestService{
		db:          db,
		requestRepo: requestRepo,
		bookingRepo: bookingRepo,
		partyRepo:   partyRepo,
		notifier:    notifier,
		now:         time.Now,
	}
}

type CreateRequestInput struct {
	CompanionID     int64
	StartTime       time.Time
	EndTime         time.Time
	Timezone        string
	ExtraAmount     decimal.Decimal
	MeetingLocation string
	Message         *string
}

func (s *RequestService) Create(ctx context.Context, actor model.ActingParty, input CreateRequestInput) (*model.BookingRequest, error) {
	if actor.Role != model.RoleClient {
		return nil, apperrors.PermissionDenied("only clients create booking requests")
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, apperrors.ValidationError("end time must be after start time")
	}
	if input.ExtraAmount.IsNegative() {
		return nil, apperrors.ValidationError("extra amount must not be negative")
	}
	if input.MeetingLocation == "" {
		return nil, apperrors.MissingRequired("meetingLocation")
	}

	companion, err := s.partyRepo.FindByID(ctx, input.CompanionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if companion == nil || companion.Role != model.RoleCompanion {
		return nil, apperrors.NotFound("Companion")
	}

	timezone := input.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	request, err := s.requestRepo.Create(ctx, model.CreateRequestParams{
		ClientID:        actor.ID,
		CompanionID:     input.CompanionID,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		Timezone:        timezone,
		ExtraAmount:     input.ExtraAmount,
		MeetingLocation: input.MeetingLocation,
		Message:         input.Message,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Int64("requestId", request.ID).
		Int64("clientId", request.ClientID).
		Int64("companionId", request.CompanionID).
		Msg("booking request created")

	return request, nil
}

func (s *RequestService) ListForParty(ctx context.Context, actor model.ActingParty, filter string) ([]model.BookingRequest, error) {
	var status *model.RequestStatus
	if filter != "" && filter != "all" {
		st := model.RequestStatus(filter)
		switch st {
		case model.RequestPending, model.RequestAccepted, model.RequestRejected, model.RequestCancelled:
			status = &st
		default:
			return nil, apperrors.InvalidInput("status", fmt.Sprintf("unknown status %q", filter))
		}
	}

	requests, err := s.requestRepo.ListForParty(ctx, actor.ID, actor.Role, status)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return requests, nil
}

// Accept materializes a pending request into a Booking. The request update and
// the booking insert are one transaction; the booking starts in pending with
// server-computed money and no payment hold yet.
func (s *RequestService) Accept(ctx context.Context, actor model.ActingParty, id int64) (*model.Booking, error) {
	request, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != request.CompanionID {
		return nil, apperrors.PermissionDenied("only the companion accepts a request")
	}
	if request.Status != model.RequestPending {
		return nil, apperrors.InvalidState(fmt.Sprintf("request cannot be accepted from status %q", request.Status))
	}

	companion, err := s.partyRepo.FindByID(ctx, request.CompanionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if companion == nil {
		return nil, apperrors.NotFound("Companion")
	}

	hours := decimal.NewFromFloat(request.EndTime.Sub(request.StartTime).Hours())
	base := companion.HourlyRate.Mul(hours).Round(2)
	total := base.Add(request.ExtraAmount).Round(2)

	var booking *model.Booking
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		created, err := s.bookingRepo.WithTx(tx).Create(ctx, model.CreateBookingParams{
			ClientID:        request.ClientID,
			CompanionID:     request.CompanionID,
			StartTime:       request.StartTime,
			EndTime:         request.EndTime,
			Timezone:        request.Timezone,
			BaseAmount:      base,
			ExtraAmount:     request.ExtraAmount,
			TotalAmount:     total,
			Status:          model.BookingPending,
			MeetingLocation: request.MeetingLocation,
			RequestID:       &request.ID,
		})
		if err != nil {
			return err
		}

		ok, err := s.requestRepo.WithTx(tx).MarkAccepted(ctx, request.ID, created.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.InvalidState("request was accepted concurrently")
		}

		booking = created
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Database(err)
	}

	s.notifier.Notify(ctx, request.ClientID, EventRequestAccepted, map[string]any{
		"requestId": request.ID,
		"bookingId": booking.ID,
	})

	log.Info().
		Int64("requestId", request.ID).
		Int64("bookingId", booking.ID).
		Msg("booking request accepted")

	return booking, nil
}

func (s *RequestService) Reject(ctx context.Context, actor model.ActingParty, id int64, reason string) (*model.BookingRequest, error) {
	if reason == "" {
		return nil, apperrors.MissingRequired("reason")
	}

	request, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != request.CompanionID {
		return nil, apperrors.PermissionDenied("only the companion rejects a request")
	}

	ok, err := s.requestRepo.MarkRejected(ctx, id, reason)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ok {
		return nil, apperrors.InvalidState(fmt.Sprintf("request cannot be rejected from status %q", request.Status))
	}

	request, err = s.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, request.ClientID, EventRequestRejected, request)

	log.Info().Int64("requestId", id).Msg("booking request rejected")
	return request, nil
}

func (s *RequestService) Cancel(ctx context.Context, actor model.ActingParty, id int64) (*model.BookingRequest, error) {
	request, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	role, _ := request.RoleOf(actor.ID)
	ok, err := s.requestRepo.MarkCancelled(ctx, id, role)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ok {
		return nil, apperrors.InvalidState(fmt.Sprintf("request cannot be cancelled from status %q", request.Status))
	}

	log.Info().Int64("requestId", id).Str("cancelledBy", string(role)).Msg("booking request cancelled")
	return s.reload(ctx, id)
}

func (s *RequestService) loadForParty(ctx context.Context, actor model.ActingParty, id int64) (*model.BookingRequest, error) {
	request, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if request == nil {
		return nil, apperrors.NotFound("Booking request")
	}
	if _, ok := request.RoleOf(actor.ID); !ok {
		return nil, apperrors.PermissionDenied("not a party on this request")
	}
	return request, nil
}

func (s *RequestService) reload(ctx context.Context, id int64) (*model.BookingRequest, error) {
	request, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if request == nil {
		return nil, apperrors.NotFound("Booking request")
	}
	return request, nil
}
