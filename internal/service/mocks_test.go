package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/companionly/booking-server-go/internal/geo"
	"github.com/companionly/booking-server-go/internal/model"
	"github.com/companionly/booking-server-go/internal/payment"
	"github.com/companionly/booking-server-go/internal/repository"
	"github.com/companionly/booking-server-go/internal/sse"
)

// Mock party repository
type mockPartyRepo struct {
	mock.Mock
}

func (m *mockPartyRepo) FindByID(ctx context.Context, id int64) (*model.Party, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Party), args.Error(1)
}

func (m *mockPartyRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Party, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Party), args.Error(1)
}

func (m *mockPartyRepo) WithTx(tx *sqlx.Tx) repository.PartyRepository {
	return m
}

// Mock payment gateway client
type mockPaymentClient struct {
	mock.Mock
}

func (m *mockPaymentClient) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*payment.Intent, error) {
	args := m.Called(ctx, amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *mockPaymentClient) ConfirmIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *mockPaymentClient) Capture(ctx context.Context, intentID string) error {
	args := m.Called(ctx, intentID)
	return args.Error(0)
}

func (m *mockPaymentClient) Release(ctx context.Context, intentID string) error {
	args := m.Called(ctx, intentID)
	return args.Error(0)
}

// Stub geocoder
type stubGeocoder struct {
	coords *geo.Coordinates
	err    error
}

func (s *stubGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinates, error) {
	return s.coords, s.err
}

// Recording publisher captures events instead of hitting redis.
type recordedEvent struct {
	PartyID int64
	Event   sse.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, partyID int64, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{PartyID: partyID, Event: event})
	return nil
}

func (p *recordingPublisher) eventsOfType(eventType string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, e := range p.events {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeBookingRepo is an in-memory booking store whose conditional updates
// mirror the SQL guards, so lifecycle and race semantics can be exercised
// without a database.
type fakeBookingRepo struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]*model.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{rows: make(map[int64]*model.Booking)}
}

func (f *fakeBookingRepo) put(b *model.Booking) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == 0 {
		f.seq++
		b.ID = f.seq
	} else if b.ID > f.seq {
		f.seq = b.ID
	}
	copied := *b
	f.rows[b.ID] = &copied
	return b
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeBookingRepo) Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := time.Now()
	b := &model.Booking{
		ID:              f.seq,
		ClientID:        params.ClientID,
		CompanionID:     params.CompanionID,
		StartTime:       params.StartTime,
		EndTime:         params.EndTime,
		Timezone:        params.Timezone,
		BaseAmount:      params.BaseAmount,
		ExtraAmount:     params.ExtraAmount,
		TotalAmount:     params.TotalAmount,
		Status:          params.Status,
		MeetingLocation: params.MeetingLocation,
		MeetingLat:      params.MeetingLat,
		MeetingLon:      params.MeetingLon,
		PlaceID:         params.PlaceID,
		PaymentIntentID: params.PaymentIntentID,
		RequestID:       params.RequestID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.rows[b.ID] = b
	copied := *b
	return &copied, nil
}

func (f *fakeBookingRepo) ListForParty(ctx context.Context, partyID int64, role model.PartyRole, status *model.BookingStatus) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, row := range f.rows {
		if role == model.RoleClient && row.ClientID != partyID {
			continue
		}
		if role == model.RoleCompanion && row.CompanionID != partyID {
			continue
		}
		if status != nil && row.Status != *status {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (f *fakeBookingRepo) MarkConfirmed(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || (row.Status != model.BookingPending && row.Status != model.BookingPaymentHeld) {
		return false, nil
	}
	row.Status = model.BookingConfirmed
	return true, nil
}

func (f *fakeBookingRepo) MarkCancelled(ctx context.Context, id int64, by *model.PartyRole, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || !row.Status.Cancellable() || row.VerifiedAt != nil {
		return false, nil
	}
	row.Status = model.BookingCancelled
	row.CancelledBy = by
	row.CancelReason = &reason
	return true, nil
}

func (f *fakeBookingRepo) MarkCompleted(ctx context.Context, id int64, endBefore time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || !row.Status.ConfirmedLike() || !row.EndTime.Before(endBefore) {
		return false, nil
	}
	now := time.Now()
	row.Status = model.BookingCompleted
	row.CompletedAt = &now
	return true, nil
}

func (f *fakeBookingRepo) CompleteDue(ctx context.Context, endBefore time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	now := time.Now()
	for _, row := range f.rows {
		if row.Status.ConfirmedLike() && row.EndTime.Before(endBefore) {
			row.Status = model.BookingCompleted
			row.CompletedAt = &now
			count++
		}
	}
	return count, nil
}

func (f *fakeBookingRepo) SetVerificationCodes(ctx context.Context, id int64, clientCode, companionCode string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || !row.Status.ConfirmedLike() || row.ClientCode != nil {
		return false, nil
	}
	row.ClientCode = &clientCode
	row.CompanionCode = &companionCode
	row.VerificationExpiresAt = &expiresAt
	return true, nil
}

func (f *fakeBookingRepo) MarkPartyVerified(ctx context.Context, id int64, role model.PartyRole) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || !row.Status.ConfirmedLike() || row.ClientCode == nil {
		return false, nil
	}
	if role == model.RoleClient {
		row.ClientVerified = true
	} else {
		row.CompanionVerified = true
	}
	return true, nil
}

func (f *fakeBookingRepo) MarkBothVerified(ctx context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || !row.ClientVerified || !row.CompanionVerified || row.VerifiedAt != nil {
		return false, nil
	}
	row.VerifiedAt = &at
	return true, nil
}

func (f *fakeBookingRepo) ListVerificationExpired(ctx context.Context, now time.Time) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, row := range f.rows {
		if row.Status.ConfirmedLike() &&
			row.VerificationExpiresAt != nil && row.VerificationExpiresAt.Before(now) &&
			row.VerifiedAt == nil {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) WithTx(tx *sqlx.Tx) repository.BookingRepository {
	return f
}

func (f *fakeBookingRepo) mustGet(id int64) model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		panic(fmt.Sprintf("no booking %d in fake repo", id))
	}
	return *row
}
