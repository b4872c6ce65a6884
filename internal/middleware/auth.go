package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"studio-api/internal/domain"
	"studio-api/internal/service"
	"studio-api/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// ClaimsContextKey is the key for decoded token claims in context
	ClaimsContextKey ContextKey = "claims"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// Auth creates the request guard middleware. A missing bearer token fails
// immediately without touching the verifier; an invalid one short-circuits
// with the verifier's reason. The wrapped handler never runs on failure.
func Auth(verifier service.TokenVerifier, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "Authorization header is required", logger)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeUnauthorized(w, "Invalid authorization header format", logger)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" {
				writeUnauthorized(w, "Token is required", logger)
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.WithError(err).Warn("Token verification failed")
				writeUnauthorized(w, "Invalid or expired token", logger)
				return
			}

			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			r = r.WithContext(ctx)

			logger.WithField("user_id", claims.UID).Debug("Request authenticated")

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the decoded claims attached by the guard
func ClaimsFromContext(ctx context.Context) (*domain.DecodedClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*domain.DecodedClaims)
	return claims, ok
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := generateRequestID()

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r)
		})
	}
}

// generateRequestID generates a simple request ID
func generateRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
}

// writeUnauthorized writes the uniform failure envelope with a 401
func writeUnauthorized(w http.ResponseWriter, message string, logger *logger.Logger) {
	logger.WithField("reason", message).Debug("Request rejected by guard")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	}); err != nil {
		logger.WithError(err).Error("Failed to encode unauthorized response")
	}
}
