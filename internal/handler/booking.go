package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/companionly/booking-server-go/internal/errors"
	"github.com/companionly/booking-server-go/internal/middleware"
	"github.com/companionly/booking-server-go/internal/service"
)

type BookingHandler struct {
	bookingService      *service.BookingService
	verificationHandler *VerificationHandler
}

func NewBookingHandler(bookingService *service.BookingService, verificationHandler *VerificationHandler) *BookingHandler {
	return &BookingHandler{
		bookingService:      bookingService,
		verificationHandler: verificationHandler,
	}
}

func (h *BookingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/cancel", h.Cancel)

	r.Post("/{id}/verification/codes", h.verificationHandler.IssueCodes)
	r.Get("/{id}/verification", h.verificationHandler.Status)
	r.Post("/{id}/verification/verify", h.verificationHandler.Verify)
	r.Post("/{id}/verification/expire", h.verificationHandler.Expire)

	return r
}

// POST /v1/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	party := middleware.GetParty(r.Context())
	if party == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		CompanionID     int64           `json:"companionId"`
		StartTime       time.Time       `json:"startTime"`
		EndTime         time.Time       `json:"endTime"`
		Timezone        string          `json:"timezone"`
		ExtraAmount     decimal.Decimal `json:"extraAmount"`
		TotalAmount     decimal.Decimal `json:"totalAmount"`
		MeetingLocation string          `json:"meetingLocation"`
		PlaceID         *string         `json:"placeId"`
		PaymentIntentID string          `json:"paymentIntentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	booking, err := h.bookingService.CreateWithPayment(r.Context(), party.Acting(), service.CreateBookingInput{
		CompanionID:     req.CompanionID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Timezone:        req.Timezone,
		ExtraAmount:     req.ExtraAmount,
		TotalAmount:     req.TotalAmount,
		MeetingLocation: req.MeetingLocation,
		PlaceID:         req.PlaceID,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// GET /v1/bookings?status=confirmed
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	party := middleware.GetParty(r.Context())
	if party == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	bookings, err := h.bookingService.ListForParty(r.Context(), party.Acting(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// GET /v1/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	party := middleware.GetParty(r.Context())
	if party == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.bookingService.GetForParty(r.Context(), party.Acting(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// POST /v1/bookings/{id}/approve
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	party := middleware.GetParty(r.Context())
	if party == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.bookingService.Approve(r.Context(), party.Acting(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// POST /v1/bookings/{id}/cancel
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	party := middleware.GetParty(r.Context())
	if party == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	booking, err := h.bookingService.Cancel(r.Context(), party.Acting(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}
