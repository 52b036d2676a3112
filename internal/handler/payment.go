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

type PaymentHandler struct {
	bookingService *service.BookingService
}

func NewPaymentHandler(bookingService *service.BookingService) *PaymentHandler {
	return &PaymentHandler{bookingService: bookingService}
}

func (h *PaymentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/intent", h.CreateIntent)

	return r
}

// POST /v1/payments/intent
//
// Quotes the proposed booking and opens a payment authorization for the
// quoted total. The response carries both so the client renders the charge it
// is about to authorize.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	party := middleware.GetParty(r.Context())
	if party == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		CompanionID int64           `json:"companionId"`
		StartTime   time.Time       `json:"startTime"`
		EndTime     time.Time       `json:"endTime"`
		ExtraAmount decimal.Decimal `json:"extraAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	intent, quote, err := h.bookingService.CreatePaymentIntent(r.Context(), party.Acting(), req.CompanionID, req.StartTime, req.EndTime, req.ExtraAmount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"intent": intent,
		"quote":  quote,
	})
}
