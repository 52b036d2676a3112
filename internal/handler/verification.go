package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/companionly/booking-server-go/internal/errors"
	"github.com/companionly/booking-server-go/internal/geo"
	"github.com/companionly/booking-server-go/internal/middleware"
	"github.com/companionly/booking-server-go/internal/service"
)

// VerificationHandler exposes the meeting verification window. Routes are
// mounted under /v1/bookings/{id}/verification.
type VerificationHandler struct {
	verificationService *service.VerificationService
}

func NewVerificationHandler(verificationService *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{verificationService: verificationService}
}

// POST /v1/bookings/{id}/verification/codes
func (h *VerificationHandler) IssueCodes(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.verificationService.IssueCodes(r.Context(), party.Acting(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GET /v1/bookings/{id}/verification
func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.verificationService.Status(r.Context(), party.Acting(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// POST /v1/bookings/{id}/verification/verify
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
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
		Code             string   `json:"code"`
		Lat              *float64 `json:"lat"`
		Lon              *float64 `json:"lon"`
		OverrideLocation bool     `json:"overrideLocation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	var coords *geo.Coordinates
	if req.Lat != nil && req.Lon != nil {
		coords = &geo.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
	}

	outcome, err := h.verificationService.Verify(r.Context(), party.Acting(), id, req.Code, coords, req.OverrideLocation)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// POST /v1/bookings/{id}/verification/expire
//
// Client-side countdown hitting zero calls this; the server re-checks the
// stored deadline and no-ops when the window is still open.
func (h *VerificationHandler) Expire(w http.ResponseWriter, r *http.Request) {
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

	actor := party.Acting()
	if err := h.verificationService.Expire(r.Context(), &actor, id); err != nil {
		writeError(w, err)
		return
	}

	status, err := h.verificationService.Status(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
