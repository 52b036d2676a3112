package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/companionly/booking-server-go/internal/model"
)

type BookingRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Booking, error)
	Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error)
	ListForParty(ctx context.Context, partyID int64, role model.PartyRole, status *model.BookingStatus) ([]model.Booking, error)
	// MarkConfirmed moves a pending or payment_held booking to confirmed.
	// Returns false when the booking was not in an approvable status.
	MarkConfirmed(ctx context.Context, id int64) (bool, error)
	// MarkCancelled moves a cancellable booking to cancelled. by is nil for
	// system-initiated cancellations (verification timeout).
	MarkCancelled(ctx context.Context, id int64, by *model.PartyRole, reason string) (bool, error)
	// MarkCompleted completes a confirmed-like booking whose end time is
	// before endBefore. Returns false if the booking did not qualify.
	MarkCompleted(ctx context.Context, id int64, endBefore time.Time) (bool, error)
	// CompleteDue is the sweep variant of MarkCompleted over all bookings.
	CompleteDue(ctx context.Context, endBefore time.Time) (int64, error)
	// SetVerificationCodes issues both parties' codes exactly once.
	// Returns false if codes were already issued.
	SetVerificationCodes(ctx context.Context, id int64, clientCode, companionCode string, expiresAt time.Time) (bool, error)
	MarkPartyVerified(ctx context.Context, id int64, role model.PartyRole) (bool, error)
	// MarkBothVerified flips the booking to verified iff both flags are set and
	// it has not been flipped yet. Exactly one racing caller wins.
	MarkBothVerified(ctx context.Context, id int64, at time.Time) (bool, error)
	// ListVerificationExpired returns confirmed-like bookings whose window
	// elapsed without both parties verifying.
	ListVerificationExpired(ctx context.Context, now time.Time) ([]model.Booking, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) BookingRepository
}

// bookingDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type bookingDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type bookingRepo struct {
	db bookingDB
}

func NewBookingRepository(db *sqlx.DB) BookingRepository {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) WithTx(tx *sqlx.Tx) BookingRepository {
	return &bookingRepo{db: tx}
}

func (r *bookingRepo) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, `
		SELECT * FROM bookings WHERE id = $1
	`, id)
	return HandleNotFound(&booking, err)
}

func (r *bookingRepo) Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, `
		INSERT INTO bookings (
			client_id, companion_id, start_time, end_time, tz_name,
			base_amount, extra_amount, total_amount, status,
			meeting_location, meeting_lat, meeting_lon, place_id,
			payment_intent_id, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING *
	`,
		params.ClientID, params.CompanionID, params.StartTime, params.EndTime, params.Timezone,
		params.BaseAmount, params.ExtraAmount, params.TotalAmount, params.Status,
		params.MeetingLocation, params.MeetingLat, params.MeetingLon, params.PlaceID,
		params.PaymentIntentID, params.RequestID,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepo) ListForParty(ctx context.Context, partyID int64, role model.PartyRole, status *model.BookingStatus) ([]model.Booking, error) {
	column := "client_id"
	if role == model.RoleCompanion {
		column = "companion_id"
	}

	// Rows come back in schedule order; the needing-attention ordering is
	// applied by a single comparator in the service layer.
	query := fmt.Sprintf(`
		SELECT * FROM bookings
		WHERE %s = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY start_time ASC, id ASC
	`, column)

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	bookings := []model.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, partyID, statusArg); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepo) MarkConfirmed(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET
			status = 'confirmed',
			updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'payment_held')
	`, id, time.Now())
	return oneRowAffected(result, err)
}

func (r *bookingRepo) MarkCancelled(ctx context.Context, id int64, by *model.PartyRole, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET
			status = 'cancelled',
			cancelled_by = $2,
			cancel_reason = $3,
			updated_at = $4
		WHERE id = $1 AND status IN ('pending', 'payment_held', 'confirmed')
		AND verified_at IS NULL
	`, id, by, reason, time.Now())
	return oneRowAffected(result, err)
}

func (r *bookingRepo) MarkCompleted(ctx context.Context, id int64, endBefore time.Time) (bool, error) {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET
			status = 'completed',
			completed_at = $3,
			updated_at = $3
		WHERE id = $1
		AND status IN ('payment_held', 'confirmed')
		AND end_time < $2
	`, id, endBefore, now)
	return oneRowAffected(result, err)
}

func (r *bookingRepo) CompleteDue(ctx context.Context, endBefore time.Time) (int64, error) {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET
			status = 'completed',
			completed_at = $2,
			updated_at = $2
		WHERE status IN ('payment_held', 'confirmed')
		AND end_time < $1
	`, endBefore, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *bookingRepo) SetVerificationCodes(ctx context.Context, id int64, clientCode, companionCode string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET
			client_code = $2,
			companion_code = $3,
			verification_expires_at = $4,
			updated_at = $5
		WHERE id = $1
		AND status IN ('payment_held', 'confirmed')
		AND client_code IS NULL
	`, id, clientCode, companionCode, expiresAt, time.Now())
	return oneRowAffected(result, err)
}

func (r *bookingRepo) MarkPartyVerified(ctx context.Context, id int64, role model.PartyRole) (bool, error) {
	column := "client_verified"
	if role == model.RoleCompanion {
		column = "companion_verified"
	}

	query := fmt.Sprintf(`
		UPDATE bookings SET
			%s = TRUE,
			updated_at = $2
		WHERE id = $1
		AND status IN ('payment_held', 'confirmed')
		AND client_code IS NOT NULL
	`, column)

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	return oneRowAffected(result, err)
}

func (r *bookingRepo) MarkBothVerified(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET
			verified_at = $2,
			updated_at = $2
		WHERE id = $1
		AND client_verified
		AND companion_verified
		AND verified_at IS NULL
	`, id, at)
	return oneRowAffected(result, err)
}

func (r *bookingRepo) ListVerificationExpired(ctx context.Context, now time.Time) ([]model.Booking, error) {
	bookings := []model.Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings
		WHERE status IN ('payment_held', 'confirmed')
		AND verification_expires_at IS NOT NULL
		AND verification_expires_at < $1
		AND verified_at IS NULL
	`, now)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func oneRowAffected(result sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 1 {
		return false, errors.New("conditional update touched more than one row")
	}
	return n == 1, nil
}
