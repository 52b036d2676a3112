package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/companionly/booking-server-go/internal/errors"
	"github.com/companionly/booking-server-go/internal/model"
	"github.com/companionly/booking-server-go/internal/repository"
	"github.com/companionly/booking-server-go/internal/util"
)

type contextKey string

const PartyContextKey contextKey = "party"

func GetParty(ctx context.Context) *model.Party {
	if party, ok := ctx.Value(PartyContextKey).(*model.Party); ok {
		return party
	}
	return nil
}

type AuthMiddleware struct {
	partyRepo repository.PartyRepository
}

func NewAuthMiddleware(partyRepo repository.PartyRepository) *AuthMiddleware {
	return &AuthMiddleware{partyRepo: partyRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		tokenHash := util.HashToken(token)
		party, err := m.partyRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeError(w, apperrors.Internal("Authentication failed"))
			return
		}

		if party == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			writeError(w, apperrors.InvalidToken("Invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), PartyContextKey, party)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken prefers the query parameter so EventSource clients, which
// cannot set headers, can authenticate the stream endpoint.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
