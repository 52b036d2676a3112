package model

// PartyRole identifies which side of a booking a party is on.
type PartyRole string

const (
	RoleClient    PartyRole = "client"
	RoleCompanion PartyRole = "companion"
)

func (r PartyRole) Valid() bool {
	return r == RoleClient || r == RoleCompanion
}

// Other returns the opposite role.
func (r PartyRole) Other() PartyRole {
	if r == RoleClient {
		return RoleCompanion
	}
	return RoleClient
}

// BookingStatus is the persisted lifecycle status of a booking.
type BookingStatus string

const (
	BookingPending     BookingStatus = "pending"
	BookingPaymentHeld BookingStatus = "payment_held"
	BookingConfirmed   BookingStatus = "confirmed"
	BookingCompleted   BookingStatus = "completed"
	BookingCancelled   BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingPaymentHeld, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// ConfirmedLike groups payment_held with confirmed. The two are stored as
// distinct values (payment_held records the hold step) but behave identically
// for approval, cancellation, auto-completion and verification purposes.
// This is the single place that grouping is defined.
func (s BookingStatus) ConfirmedLike() bool {
	return s == BookingPaymentHeld || s == BookingConfirmed
}

// Terminal reports whether the status permits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// Cancellable reports whether a cancel is legal from this status.
func (s BookingStatus) Cancellable() bool {
	return s == BookingPending || s.ConfirmedLike()
}

// RequestStatus is the status of a pre-booking negotiation request.
// Requests never reach confirmed or completed; accepting one materializes
// a Booking instead.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

func (s RequestStatus) Terminal() bool {
	return s != RequestPending
}

// VerificationState is the derived sub-state of the meeting verification
// window. It is never stored; it is computed from the booking row.
type VerificationState string

const (
	VerificationNotStarted       VerificationState = "not_started"
	VerificationAwaitingCodes    VerificationState = "awaiting_codes"
	VerificationOnePartyVerified VerificationState = "one_party_verified"
	VerificationBothVerified     VerificationState = "both_verified"
	VerificationExpired          VerificationState = "expired"
)
