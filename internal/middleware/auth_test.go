package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studio-api/internal/domain"
	"studio-api/pkg/logger"
)

// fakeVerifier accepts exactly one token and counts invocations
type fakeVerifier struct {
	validToken string
	claims     *domain.DecodedClaims
	calls      int
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*domain.DecodedClaims, error) {
	f.calls++
	if token == f.validToken {
		return f.claims, nil
	}
	return nil, errors.New("token verification failed")
}

func testGuard(verifier *fakeVerifier) (http.Handler, *int) {
	log := &logger.Logger{Logger: zap.NewNop()}

	handlerCalls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return Auth(verifier, log)(next), &handlerCalls
}

func TestAuthRejectsWithoutVerifierCall(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		message string
	}{
		{
			name:    "missing header",
			header:  "",
			message: "Authorization header is required",
		},
		{
			name:    "wrong scheme",
			header:  "Basic dXNlcjpwdw==",
			message: "Invalid authorization header format",
		},
		{
			name:    "empty bearer token",
			header:  "Bearer ",
			message: "Token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{}
			guard, handlerCalls := testGuard(verifier)

			req := httptest.NewRequest(http.MethodPost, "/api/clients", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			guard.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, 0, verifier.calls, "verifier must not run without a token")
			assert.Equal(t, 0, *handlerCalls, "handler must not run on rejection")

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	verifier := &fakeVerifier{validToken: "good-token"}
	guard, handlerCalls := testGuard(verifier)

	req := httptest.NewRequest(http.MethodPost, "/api/clients", nil)
	req.Header.Set("Authorization", "Bearer forged-token")
	rec := httptest.NewRecorder()

	guard.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, 0, *handlerCalls)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestAuthAttachesClaims(t *testing.T) {
	verifier := &fakeVerifier{
		validToken: "good-token",
		claims:     &domain.DecodedClaims{UID: "uid-123", Email: "owner@example.com"},
	}
	guard, handlerCalls := testGuard(verifier)

	req := httptest.NewRequest(http.MethodPost, "/api/clients", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	guard.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *handlerCalls)
}

func TestRequestIDHeader(t *testing.T) {
	log := &logger.Logger{Logger: zap.NewNop()}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := r.Context().Value(RequestIDContextKey).(string)
		assert.True(t, ok)
		assert.NotEmpty(t, id)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	RequestID(log)(next).ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
