package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID          int64 `db:"id" json:"id"`
	ClientID    int64 `db:"client_id" json:"clientId"`
	CompanionID int64 `db:"companion_id" json:"companionId"`

	StartTime time.Time `db:"start_time" json:"startTime"`
	EndTime   time.Time `db:"end_time" json:"endTime"`
	// Timezone in effect when the booking was created, stored explicitly so the
	// schedule stays unambiguous across DST changes.
	Timezone string `db:"tz_name" json:"timezone"`

	BaseAmount  decimal.Decimal `db:"base_amount" json:"baseAmount"`
	ExtraAmount decimal.Decimal `db:"extra_amount" json:"extraAmount"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"totalAmount"`

	Status BookingStatus `db:"status" json:"status"`

	MeetingLocation string   `db:"meeting_location" json:"meetingLocation"`
	MeetingLat      *float64 `db:"meeting_lat" json:"meetingLat,omitempty"`
	MeetingLon      *float64 `db:"meeting_lon" json:"meetingLon,omitempty"`
	PlaceID         *string  `db:"place_id" json:"placeId,omitempty"`

	PaymentIntentID *string `db:"payment_intent_id" json:"-"`

	CancelReason *string    `db:"cancel_reason" json:"cancelReason,omitempty"`
	CancelledBy  *PartyRole `db:"cancelled_by" json:"cancelledBy,omitempty"`

	ClientCode            *string    `db:"client_code" json:"-"`
	CompanionCode         *string    `db:"companion_code" json:"-"`
	ClientVerified        bool       `db:"client_verified" json:"clientVerified"`
	CompanionVerified     bool       `db:"companion_verified" json:"companionVerified"`
	VerificationExpiresAt *time.Time `db:"verification_expires_at" json:"verificationExpiresAt,omitempty"`
	VerifiedAt            *time.Time `db:"verified_at" json:"verifiedAt,omitempty"`

	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	RequestID   *int64     `db:"request_id" json:"requestId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// RoleOf returns the role the given party plays on this booking,
// or false if the party is on neither side.
func (b *Booking) RoleOf(partyID int64) (PartyRole, bool) {
	switch partyID {
	case b.ClientID:
		return RoleClient, true
	case b.CompanionID:
		return RoleCompanion, true
	}
	return "", false
}

func (b *Booking) PartyIDFor(role PartyRole) int64 {
	if role == RoleClient {
		return b.ClientID
	}
	return b.CompanionID
}

func (b *Booking) CodeFor(role PartyRole) *string {
	if role == RoleClient {
		return b.ClientCode
	}
	return b.CompanionCode
}

func (b *Booking) VerifiedFlag(role PartyRole) bool {
	if role == RoleClient {
		return b.ClientVerified
	}
	return b.CompanionVerified
}

// CodesIssued reports whether meeting codes have been issued for this booking.
func (b *Booking) CodesIssued() bool {
	return b.ClientCode != nil && b.CompanionCode != nil
}

// VerificationWindowElapsed reports whether the verification window has passed
// without both parties verifying.
func (b *Booking) VerificationWindowElapsed(now time.Time) bool {
	return b.VerificationExpiresAt != nil && now.After(*b.VerificationExpiresAt) && b.VerifiedAt == nil
}

// VerificationState derives the verification sub-state from the row.
func (b *Booking) VerificationState(now time.Time) VerificationState {
	switch {
	case b.VerifiedAt != nil:
		return VerificationBothVerified
	case !b.CodesIssued():
		return VerificationNotStarted
	case b.VerificationWindowElapsed(now):
		return VerificationExpired
	case b.ClientVerified || b.CompanionVerified:
		return VerificationOnePartyVerified
	default:
		return VerificationAwaitingCodes
	}
}

// CreateBookingParams carries the fields persisted at booking creation.
// Money figures are the server-computed ones, never caller-supplied.
type CreateBookingParams struct {
	ClientID        int64
	CompanionID     int64
	StartTime       time.Time
	EndTime         time.Time
	Timezone        string
	BaseAmount      decimal.Decimal
	ExtraAmount     decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          BookingStatus
	MeetingLocation string
	MeetingLat      *float64
	MeetingLon      *float64
	PlaceID         *string
	PaymentIntentID *string
	RequestID       *int64
}
