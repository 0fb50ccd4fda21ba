package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/auth"
	"github.com/tuanvumaihuynh/storefront/internal/http/middleware"
	"github.com/tuanvumaihuynh/storefront/pkg/correlationid"
)

type stubVerifier map[string]auth.Identity

func (v stubVerifier) Verify(token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, apperr.UnauthorizedErr
	}
	id, ok := v[token]
	if !ok {
		return auth.Identity{}, apperr.InvalidTokenErr
	}
	return id, nil
}

func TestAuthenticate(t *testing.T) {
	verifier := stubVerifier{"good": {Subject: "user-1", Email: "ada@example.com"}}

	var rejected error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		rejected = err
		w.WriteHeader(http.StatusUnauthorized)
	}

	var seen auth.Identity
	h := middleware.Authenticate(verifier, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("Should pass identity to next handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp := httptest.NewRecorder()

		h.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Equal(t, "user-1", seen.Subject)
	})

	t.Run("Should reject missing token", func(t *testing.T) {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.ErrorIs(t, rejected, apperr.UnauthorizedErr)
	})

	t.Run("Should reject unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer forged")
		resp := httptest.NewRecorder()

		h.ServeHTTP(resp, req)

		assert.ErrorIs(t, rejected, apperr.InvalidTokenErr)
	})
}

func TestCorrelationID(t *testing.T) {
	var seen string
	h := middleware.CorrelationID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = correlationid.FromContext(r.Context())
	}))

	t.Run("Should keep caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlationid.Header, "abc-123")
		resp := httptest.NewRecorder()

		h.ServeHTTP(resp, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", resp.Header().Get(correlationid.Header))
	})

	t.Run("Should generate id when absent", func(t *testing.T) {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, resp.Header().Get(correlationid.Header))
	})
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logger))
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"success":false,"code":"INTERNAL_SERVER_ERROR","message":"an unknown error occurred"}`, resp.Body.String())
	assert.Contains(t, buf.String(), "panic")
}
