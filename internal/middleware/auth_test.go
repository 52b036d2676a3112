package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/companionly/booking-server-go/internal/model"
	"github.com/companionly/booking-server-go/internal/repository"
	"github.com/companionly/booking-server-go/internal/util"
)

type mockPartyRepo struct {
	findByTokenHashFunc func(ctx context.Context, tokenHash string) (*model.Party, error)
}

func (m *mockPartyRepo) FindByID(ctx context.Context, id int64) (*model.Party, error) {
	return nil, nil
}

func (m *mockPartyRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Party, error) {
	if m.findByTokenHashFunc != nil {
		return m.findByTokenHashFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockPartyRepo) WithTx(tx *sqlx.Tx) repository.PartyRepository {
	return m
}

func TestAuthMiddleware(t *testing.T) {
	testParty := &model.Party{
		ID:              7,
		Role:            model.RoleClient,
		RateLimitPerMin: 60,
	}
	validToken := "valid-token"
	validTokenHash := util.HashToken(validToken)

	repoWithParty := func() *mockPartyRepo {
		return &mockPartyRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.Party, error) {
				if tokenHash == validTokenHash {
					return testParty, nil
				}
				return nil, nil
			},
		}
	}

	t.Run("allows request with valid bearer token", func(t *testing.T) {
		middleware := NewAuthMiddleware(repoWithParty())
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			party := GetParty(r.Context())
			require.NotNil(t, party)
			assert.Equal(t, int64(7), party.ID)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("allows request with query token", func(t *testing.T) {
		middleware := NewAuthMiddleware(repoWithParty())
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/test?token="+validToken, nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects request without token", func(t *testing.T) {
		middleware := NewAuthMiddleware(&mockPartyRepo{})
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects request with invalid token", func(t *testing.T) {
		middleware := NewAuthMiddleware(&mockPartyRepo{})
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns 500 on repository error", func(t *testing.T) {
		repo := &mockPartyRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.Party, error) {
				return nil, errors.New("connection refused")
			},
		}

		middleware := NewAuthMiddleware(repo)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("GetParty returns nil on empty context", func(t *testing.T) {
		assert.Nil(t, GetParty(context.Background()))
	})
}
