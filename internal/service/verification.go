package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/companionly/booking-server-go/internal/config"
	apperrors "github.com/companionly/booking-server-go/internal/errors"
	"github.com/companionly/booking-server-go/internal/geo"
	"github.com/companionly/booking-server-go/internal/model"
	"github.com/companionly/booking-server-go/internal/payment"
	"github.com/companionly/booking-server-go/internal/repository"
	"github.com/companionly/booking-server-go/internal/util"
)

// VerificationService runs the time-boxed meeting verification window entered
// once a booking is confirmed: it issues one code per party, validates
// code + GPS proximity on submission, and flips the booking to verified once
// both parties confirm.
//
// The window timeout is enforced lazily: every operation checks expiry against
// the stored timestamp, and the background sweep covers bookings nobody
// touches. There is no per-booking timer.
type VerificationService struct {
	bookingRepo repository.BookingRepository
	payments    payment.Client
	notifier    *Notifier
	window      time.Duration
	threshold   float64 // proximity threshold in meters
	now         func() time.Time
}

func NewVerificationService(
	bookingRepo repository.BookingRepository,
	payments payment.Client,
	notifier *Notifier,
	window time.Duration,
	threshold float64,
) *VerificationService {
	return &VerificationService{
		bookingRepo: bookingRepo,
		payments:    payments,
		notifier:    notifier,
		window:      window,
		threshold:   threshold,
		now:         time.Now,
	}
}

// VerificationStatus is the server-truth view of the verification window.
// Clients resync their countdown from RemainingSeconds; any client-side timer
// is advisory only.
type VerificationStatus struct {
	State             model.VerificationState `json:"state"`
	Code              string                  `json:"code,omitempty"` // acting party's own code
	ClientVerified    bool                    `json:"clientVerified"`
	CompanionVerified bool                    `json:"companionVerified"`
	ExpiresAt         *time.Time              `json:"expiresAt,omitempty"`
	RemainingSeconds  int64                   `json:"remainingSeconds"`
}

// VerifyOutcome is the result of a code submission. LocationMismatch is not an
// error: it asks the caller to confirm the location manually and retry with
// the override flag.
type VerifyOutcome struct {
	Verified         bool               `json:"verified"`
	BothVerified     bool               `json:"bothVerified"`
	LocationMismatch bool               `json:"locationMismatch"`
	DistanceMeters   float64            `json:"distanceMeters,omitempty"`
	Status           VerificationStatus `json:"status"`
}

// IssueCodes generates both parties' one-time codes and starts the window.
// Idempotent: if codes are already issued and the window is still open, the
// existing window is rehydrated, never reissued.
func (s *VerificationService) IssueCodes(ctx context.Context, actor model.ActingParty, id int64) (*VerificationStatus, error) {
	booking, role, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if booking.VerifiedAt != nil {
		return s.statusFor(booking, role), nil
	}
	if !booking.Status.ConfirmedLike() {
		return nil, apperrors.InvalidState("verification starts only on a confirmed booking")
	}

	if booking.CodesIssued() {
		if booking.VerificationWindowElapsed(s.now()) {
			s.expire(ctx, booking)
			return nil, apperrors.VerificationExpired()
		}
		return s.statusFor(booking, role), nil
	}

	clientCode := util.GenerateDigitCode(config.VerificationCodeLength)
	companionCode := util.GenerateDigitCode(config.VerificationCodeLength)
	for companionCode == clientCode {
		companionCode = util.GenerateDigitCode(config.VerificationCodeLength)
	}
	expiresAt := s.now().Add(s.window)

	ok, err := s.bookingRepo.SetVerificationCodes(ctx, id, clientCode, companionCode, expiresAt)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ok {
		// Lost the issuance race; rehydrate whatever the winner stored.
		booking, err = s.reload(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.statusFor(booking, role), nil
	}

	log.Info().
		Int64("bookingId", id).
		Str("clientCode", util.MaskCode(clientCode)).
		Str("companionCode", util.MaskCode(companionCode)).
		Time("expiresAt", expiresAt).
		Msg("verification codes issued")

	booking, err = s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.statusFor(booking, role), nil
}

// Verify validates the acting party's code and GPS proximity. A correct code
// from out-of-threshold coordinates returns a LocationMismatch outcome without
// mutating anything unless the override flag is set.
func (s *VerificationService) Verify(ctx context.Context, actor model.ActingParty, id int64, submittedCode string, coords *geo.Coordinates, overrideLocation bool) (*VerifyOutcome, error) {
	booking, role, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if booking.VerifiedAt != nil {
		return s.outcomeFor(booking, role), nil
	}
	if !booking.Status.ConfirmedLike() {
		return nil, apperrors.InvalidState("booking is not in a verifiable status")
	}
	if !booking.CodesIssued() {
		return nil, apperrors.InvalidState("verification codes have not been issued")
	}
	if booking.VerificationWindowElapsed(s.now()) {
		s.expire(ctx, booking)
		return nil, apperrors.VerificationExpired()
	}

	stored := util.NormalizeDigits(*booking.CodeFor(role))
	submitted := util.NormalizeDigits(submittedCode)
	if submitted == "" || !util.ConstantTimeEqual(stored, submitted) {
		return nil, apperrors.InvalidCode()
	}

	if booking.MeetingLat != nil && booking.MeetingLon != nil && coords != nil {
		distance := geo.Distance(geo.Coordinates{Lat: *booking.MeetingLat, Lon: *booking.MeetingLon}, *coords)
		if distance > s.threshold && !overrideLocation {
			outcome := s.outcomeFor(booking, role)
			outcome.LocationMismatch = true
			outcome.DistanceMeters = distance
			return outcome, nil
		}
	}

	ok, err := s.bookingRepo.MarkPartyVerified(ctx, id, role)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ok {
		// Raced with a cancellation or expiry; re-read to report the truth.
		booking, err = s.reload(ctx, id)
		if err != nil {
			return nil, err
		}
		if booking.VerificationWindowElapsed(s.now()) {
			s.expire(ctx, booking)
			return nil, apperrors.VerificationExpired()
		}
		return nil, apperrors.InvalidState("booking is no longer verifiable")
	}

	// Conditional flip: when both flags are set, exactly one of the racing
	// Verify calls wins this update and sends the broadcast.
	won, err := s.bookingRepo.MarkBothVerified(ctx, id, s.now())
	if err != nil {
		return nil, apperrors.Database(err)
	}

	booking, err = s.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	if won {
		s.capturePayment(ctx, booking)
		s.notifier.NotifyBoth(ctx, booking, EventMeetingVerified, booking)
		log.Info().Int64("bookingId", id).Msg("meeting verified by both parties")
	} else {
		log.Info().
			Int64("bookingId", id).
			Str("role", string(role)).
			Msg("party verified")
	}

	return s.outcomeFor(booking, role), nil
}

// Status reports the server-truth verification state for countdown resync.
func (s *VerificationService) Status(ctx context.Context, actor model.ActingParty, id int64) (*VerificationStatus, error) {
	booking, role, err := s.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.statusFor(booking, role), nil
}

// Expire is the explicit timeout handler. It is safe to call repeatedly and
// from both a client-side timer and the server-side sweep; only the call that
// wins the cancellation CAS performs the cascade. actor is nil when the server
// invokes it.
func (s *VerificationService) Expire(ctx context.Context, actor *model.ActingParty, id int64) error {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if booking == nil {
		return apperrors.NotFound("Booking")
	}
	if actor != nil {
		if _, ok := booking.RoleOf(actor.ID); !ok {
			return apperrors.PermissionDenied("not a party on this booking")
		}
	}

	// No-ops: already verified, codes never issued, or window still open.
	if booking.VerifiedAt != nil || !booking.CodesIssued() {
		return nil
	}
	if !booking.VerificationWindowElapsed(s.now()) {
		return nil
	}

	s.expire(ctx, booking)
	return nil
}

// ExpireDue sweeps all bookings whose verification window elapsed. Used by the
// background job so untouched bookings still expire.
func (s *VerificationService) ExpireDue(ctx context.Context) (int64, error) {
	expired, err := s.bookingRepo.ListVerificationExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	var count int64
	for i := range expired {
		if s.expire(ctx, &expired[i]) {
			count++
		}
	}
	return count, nil
}

// expire cascades a verification timeout into a booking cancellation.
// Returns true only for the call that wins the cancellation CAS.
func (s *VerificationService) expire(ctx context.Context, booking *model.Booking) bool {
	// System-initiated: no acting party is recorded, the reason text carries
	// the cause.
	ok, err := s.bookingRepo.MarkCancelled(ctx, booking.ID, nil, "verification timeout")
	if err != nil {
		log.Error().Err(err).Int64("bookingId", booking.ID).Msg("failed to cancel expired booking")
		return false
	}
	if !ok {
		return false
	}

	if booking.PaymentIntentID != nil {
		if err := s.payments.Release(ctx, *booking.PaymentIntentID); err != nil {
			log.Error().
				Err(err).
				Int64("bookingId", booking.ID).
				Str("intentId", *booking.PaymentIntentID).
				Msg("failed to release payment hold; needs reconciliation")
		}
	}

	s.notifier.NotifyBoth(ctx, booking, EventVerificationExpired, map[string]any{
		"bookingId": booking.ID,
		"reason":    "verification timeout",
	})

	log.Info().Int64("bookingId", booking.ID).Msg("verification window expired, booking cancelled")
	return true
}

// capturePayment settles the hold once the meeting is verified. Best-effort:
// a gateway failure is logged for reconciliation, never unwinds the
// verification.
func (s *VerificationService) capturePayment(ctx context.Context, booking *model.Booking) {
	if booking.PaymentIntentID == nil {
		return
	}
	if err := s.payments.Capture(ctx, *booking.PaymentIntentID); err != nil {
		log.Error().
			Err(err).
			Int64("bookingId", booking.ID).
			Str("intentId", *booking.PaymentIntentID).
			Msg("failed to capture payment; needs reconciliation")
	}
}

func (s *VerificationService) statusFor(booking *model.Booking, role model.PartyRole) *VerificationStatus {
	now := s.now()
	status := &VerificationStatus{
		State:             booking.VerificationState(now),
		ClientVerified:    booking.ClientVerified,
		CompanionVerified: booking.CompanionVerified,
		ExpiresAt:         booking.VerificationExpiresAt,
	}

	if code := booking.CodeFor(role); code != nil {
		status.Code = *code
	}
	if booking.VerificationExpiresAt != nil && booking.VerifiedAt == nil {
		if remaining := booking.VerificationExpiresAt.Sub(now); remaining > 0 {
			status.RemainingSeconds = int64(remaining.Seconds())
		}
	}
	return status
}

func (s *VerificationService) outcomeFor(booking *model.Booking, role model.PartyRole) *VerifyOutcome {
	return &VerifyOutcome{
		Verified:     booking.VerifiedFlag(role),
		BothVerified: booking.VerifiedAt != nil,
		Status:       *s.statusFor(booking, role),
	}
}

func (s *VerificationService) loadForParty(ctx context.Context, actor model.ActingParty, id int64) (*model.Booking, model.PartyRole, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, "", apperrors.Database(err)
	}
	if booking == nil {
		return nil, "", apperrors.NotFound("Booking")
	}
	role, ok := booking.RoleOf(actor.ID)
	if !ok {
		return nil, "", apperrors.PermissionDenied("not a party on this booking")
	}
	return booking, role, nil
}

func (s *VerificationService) reload(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("Booking")
	}
	return booking, nil
}
