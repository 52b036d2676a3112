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

type RequestHandler struct {
	requestService *service.RequestService
}

func NewRequestHandler(requestService *service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/{id}/accept", h.Accept)
	r.Post("/{id}/reject", h.Reject)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

// POST /v1/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		MeetingLocation string          `json:"meetingLocation"`
		Message         *string         `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	request, err := h.requestService.Create(r.Context(), party.Acting(), service.CreateRequestInput{
		CompanionID:     req.CompanionID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Timezone:        req.Timezone,
		ExtraAmount:     req.ExtraAmount,
		MeetingLocation: req.MeetingLocation,
		Message:         req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

// GET /v1/requests?status=pending
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	party := middleware.GetParty(r.Context())
	if party == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	requests, err := h.requestService.ListForParty(r.Context(), party.Acting(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// POST /v1/requests/{id}/accept
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
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

	booking, err := h.requestService.Accept(r.Context(), party.Acting(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// POST /v1/requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
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

	request, err := h.requestService.Reject(r.Context(), party.Acting(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/cancel
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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

	request, err := h.requestService.Cancel(r.Context(), party.Acting(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}
