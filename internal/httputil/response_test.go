package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/companionly/booking-server-go/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   apperrors.ErrorCode
	}{
		{"validation", apperrors.ValidationError("end before start"), http.StatusBadRequest, apperrors.ErrCodeValidation},
		{"invalid code", apperrors.InvalidCode(), http.StatusBadRequest, apperrors.ErrCodeInvalidCode},
		{"payment", apperrors.PaymentError("intent already consumed"), http.StatusPaymentRequired, apperrors.ErrCodePayment},
		{"permission", apperrors.PermissionDenied("not a party"), http.StatusForbidden, apperrors.ErrCodeForbidden},
		{"not found", apperrors.NotFound("Booking"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"invalid state", apperrors.InvalidState("already cancelled"), http.StatusConflict, apperrors.ErrCodeInvalidState},
		{"expired", apperrors.VerificationExpired(), http.StatusGone, apperrors.ErrCodeVerificationExpired},
		{"payload too large", apperrors.PayloadTooLarge(), http.StatusRequestEntityTooLarge, apperrors.ErrCodePayloadTooLarge},
		{"unknown error wrapped as internal", assert.AnError, http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp ErrorResponse
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.expectedCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]any{"id": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id": 7}`, rec.Body.String())
}
