package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/companionly/booking-server-go/internal/model"
)

type RequestRepository interface {
	FindByID(ctx context.Context, id int64) (*model.BookingRequest, error)
	Create(ctx context.Context, params model.CreateRequestParams) (*model.BookingRequest, error)
	ListForParty(ctx context.Context, partyID int64, role model.PartyRole, status *model.RequestStatus) ([]model.BookingRequest, error)
	// MarkAccepted links the materialized booking and moves the request to
	// accepted. Returns false when the request was no longer pending.
	MarkAccepted(ctx context.Context, id int64, bookingID int64) (bool, error)
	MarkRejected(ctx context.Context, id int64, reason string) (bool, error)
	MarkCancelled(ctx context.Context, id int64, by model.PartyRole) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) RequestRepository
}

type requestDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type requestRepo struct {
	db requestDB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) WithTx(tx *sqlx.Tx) RequestRepository {
	return &requestRepo{db: tx}
}

func (r *requestRepo) FindByID(ctx context.Context, id int64) (*model.BookingRequest, error) {
	var request model.BookingRequest
	err := r.db.GetContext(ctx, &request, `
		SELECT * FROM booking_requests WHERE id = $1
	`, id)
	return HandleNotFound(&request, err)
}

func (r *requestRepo) Create(ctx context.Context, params model.CreateRequestParams) (*model.BookingRequest, error) {
	var request model.BookingRequest
	err := r.db.GetContext(ctx, &request, `
		INSERT INTO booking_requests (
			client_id, companion_id, start_time, end_time, tz_name,
			extra_amount, meeting_location, message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`,
		params.ClientID, params.CompanionID, params.StartTime, params.EndTime, params.Timezone,
		params.ExtraAmount, params.MeetingLocation, params.Message,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepo) ListForParty(ctx context.Context, partyID int64, role model.PartyRole, status *model.RequestStatus) ([]model.BookingRequest, error) {
	column := "client_id"
	if role == model.RoleCompanion {
		column = "companion_id"
	}

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	requests := []model.BookingRequest{}
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM booking_requests
		WHERE `+column+` = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY
			CASE WHEN status = 'pending' THEN 0 ELSE 1 END,
			start_time ASC
	`, partyID, statusArg)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepo) MarkAccepted(ctx context.Context, id int64, bookingID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE booking_requests SET
			status = 'accepted',
			booking_id = $2,
			updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, bookingID, time.Now())
	return oneRowAffected(result, err)
}

func (r *requestRepo) MarkRejected(ctx context.Context, id int64, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE booking_requests SET
			status = 'rejected',
			reject_reason = $2,
			updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, reason, time.Now())
	return oneRowAffected(result, err)
}

func (r *requestRepo) MarkCancelled(ctx context.Context, id int64, by model.PartyRole) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE booking_requests SET
			status = 'cancelled',
			cancelled_by = $2,
			updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, by, time.Now())
	return oneRowAffected(result, err)
}
