package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"studio-api/internal/domain"
	"studio-api/pkg/errors"
	"studio-api/pkg/logger"
)

// Verifier validates identity-provider ID tokens. Tokens are RS256 JWTs
// signed with one of the provider's published x509 certificates, keyed by
// the token's kid header.
type Verifier struct {
	projectID  string
	certsURL   string
	httpClient *http.Client
	logger     *logger.Logger

	mu          sync.Mutex
	certs       map[string]*rsa.PublicKey
	certsExpiry time.Time
}

// NewVerifier creates a token verifier for the given project. certsURL is the
// provider's public certificate endpoint.
func NewVerifier(projectID, certsURL string, logger *logger.Logger) *Verifier {
	return &Verifier{
		projectID: projectID,
		certsURL:  certsURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Verify decodes and validates an ID token, returning its claims. Nothing is
// cached between calls except the provider's signing certificates.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*domain.DecodedClaims, error) {
	v.logger.Debug("Verifying ID token")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}

		key, err := v.signingKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		v.logger.WithError(err).Error("ID token validation failed")
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		v.logger.Error("Failed to extract token claims")
		return nil, errors.NewAuthenticationError("Invalid token")
	}

	decoded := &domain.DecodedClaims{
		UID:           getStringClaim(claims, "sub"),
		Email:         getStringClaim(claims, "email"),
		EmailVerified: getBoolClaim(claims, "email_verified"),
		IssuedAt:      getInt64Claim(claims, "iat"),
		ExpiresAt:     getInt64Claim(claims, "exp"),
	}

	if decoded.UID == "" {
		v.logger.Error("No subject in verified token")
		return nil, errors.NewAuthenticationError("Invalid token: no user identifier")
	}

	v.logger.WithField("user_id", decoded.UID).Debug("ID token verified successfully")
	return decoded, nil
}

// signingKey returns the public key for kid, refreshing the certificate set
// when it has expired.
func (v *Verifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.certs == nil || time.Now().After(v.certsExpiry) {
		if err := v.fetchCertsLocked(ctx); err != nil {
			return nil, err
		}
	}

	key, ok := v.certs[kid]
	if !ok {
		// Key rotation can outpace the cached set; refetch once before failing.
		if err := v.fetchCertsLocked(ctx); err != nil {
			return nil, err
		}
		key, ok = v.certs[kid]
		if !ok {
			return nil, fmt.Errorf("no certificate for kid %s", kid)
		}
	}

	return key, nil
}

// fetchCertsLocked downloads and parses the provider's certificate set.
// Caller must hold v.mu.
func (v *Verifier) fetchCertsLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create certs request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch signing certificates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("certificate endpoint returned status %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode certificate response: %w", err)
	}

	certs := make(map[string]*rsa.PublicKey, len(raw))
	for kid, pemCert := range raw {
		block, _ := pem.Decode([]byte(pemCert))
		if block == nil {
			v.logger.WithField("kid", kid).Warn("Skipping non-PEM certificate")
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			v.logger.WithError(err).WithField("kid", kid).Warn("Skipping unparsable certificate")
			continue
		}

		if key, ok := cert.PublicKey.(*rsa.PublicKey); ok {
			certs[kid] = key
		}
	}

	if len(certs) == 0 {
		return fmt.Errorf("certificate endpoint returned no usable keys")
	}

	v.certs = certs
	v.certsExpiry = time.Now().Add(certsMaxAge(resp.Header.Get("Cache-Control")))

	v.logger.WithField("keys", len(certs)).Debug("Refreshed signing certificates")
	return nil
}

// certsMaxAge extracts max-age from a Cache-Control header, with a
// conservative fallback.
func certsMaxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "max-age="); ok {
			if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Hour
}

// Helper functions to safely extract values from token claims
func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func getBoolClaim(claims jwt.MapClaims, key string) bool {
	if val, ok := claims[key].(bool); ok {
		return val
	}
	return false
}

func getInt64Claim(claims jwt.MapClaims, key string) int64 {
	if val, ok := claims[key].(float64); ok {
		return int64(val)
	}
	return 0
}
