package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingRequest is a client's proposal for a custom booking. It carries the
// same schedule and location shape as a booking but only ever moves between
// pending, accepted, rejected and cancelled. Acceptance materializes a Booking.
type BookingRequest struct {
	ID          int64 `db:"id" json:"id"`
	ClientID    int64 `db:"client_id" json:"clientId"`
	CompanionID int64 `db:"companion_id" json:"companionId"`

	StartTime time.Time `db:"start_time" json:"startTime"`
	EndTime   time.Time `db:"end_time" json:"endTime"`
	Timezone  string    `db:"tz_name" json:"timezone"`

	ExtraAmount decimal.Decimal `db:"extra_amount" json:"extraAmount"`

	Status RequestStatus `db:"status" json:"status"`

	MeetingLocation string  `db:"meeting_location" json:"meetingLocation"`
	Message         *string `db:"message" json:"message,omitempty"`

	RejectReason *string    `db:"reject_reason" json:"rejectReason,omitempty"`
	CancelledBy  *PartyRole `db:"cancelled_by" json:"cancelledBy,omitempty"`
	BookingID    *int64     `db:"booking_id" json:"bookingId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (r *BookingRequest) RoleOf(partyID int64) (PartyRole, bool) {
	switch partyID {
	case r.ClientID:
		return RoleClient, true
	case r.CompanionID:
		return RoleCompanion, true
	}
	return "", false
}

type CreateRequestParams struct {
	ClientID        int64
	CompanionID     int64
	StartTime       time.Time
	EndTime         time.Time
	Timezone        string
	ExtraAmount     decimal.Decimal
	MeetingLocation string
	Message         *string
}
