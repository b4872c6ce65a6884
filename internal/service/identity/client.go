package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"studio-api/internal/domain"
	"studio-api/internal/service"
	"studio-api/pkg/logger"
)

// Default identity provider endpoints
const (
	defaultAPIBaseURL   = "https://identitytoolkit.googleapis.com"
	defaultTokenBaseURL = "https://securetoken.googleapis.com"
)

// Client handles all interactions with the identity provider's REST API:
// the password grant, token refresh, and account lookups.
type Client struct {
	apiKey       string
	projectID    string
	apiBaseURL   string
	tokenBaseURL string
	tokenSource  oauth2.TokenSource
	httpClient   *http.Client
	logger       *logger.Logger
}

// NewClient creates a new identity provider client. tokenSource supplies the
// admin credential for uid lookups and may be nil when no service account is
// configured.
func NewClient(apiKey, projectID string, tokenSource oauth2.TokenSource, logger *logger.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		projectID:    projectID,
		apiBaseURL:   defaultAPIBaseURL,
		tokenBaseURL: defaultTokenBaseURL,
		tokenSource:  tokenSource,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// signInResponse is the provider's password-grant response body
type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// providerError is the provider's error envelope
type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword exchanges an email/password pair for tokens
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*service.SignInResult, error) {
	if c.apiKey == "" {
		return nil, service.ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/v1/accounts:signInWithPassword?key=%s", c.apiBaseURL, url.QueryEscape(c.apiKey))
	body := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var result signInResponse
	if err := c.postJSON(ctx, endpoint, "", body, &result); err != nil {
		return nil, c.mapSignInError(err)
	}

	expiresIn, _ := strconv.ParseInt(result.ExpiresIn, 10, 64)

	c.logger.WithField("user_id", result.LocalID).Info("Password grant succeeded")

	return &service.SignInResult{
		UID:          result.LocalID,
		Email:        result.Email,
		DisplayName:  result.DisplayName,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// Refresh exchanges a refresh token for a fresh token pair. The provider may
// rotate the refresh token; callers must store the returned one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error) {
	if c.apiKey == "" {
		return nil, service.ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/v1/token?key=%s", c.tokenBaseURL, url.QueryEscape(c.apiKey))
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(map[string]interface{}{
			"status_code":   resp.StatusCode,
			"response_body": string(respBody),
		}).Warn("Refresh token rejected by provider")
		return nil, service.ErrInvalidRefreshToken
	}

	var result struct {
		UserID       string `json:"user_id"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	expiresIn, _ := strconv.ParseInt(result.ExpiresIn, 10, 64)

	c.logger.WithField("user_id", result.UserID).Debug("Refresh token exchanged")

	return &service.RefreshResult{
		UID:          result.UserID,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// lookupResponse is the provider's account-lookup response body
type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		EmailVerified bool   `json:"emailVerified"`
		CreatedAt     string `json:"createdAt"`
		LastLoginAt   string `json:"lastLoginAt"`
	} `json:"users"`
}

// LookupByIDToken fetches the user record behind a valid ID token
func (c *Client) LookupByIDToken(ctx context.Context, idToken string) (*domain.UserProfile, error) {
	if c.apiKey == "" {
		return nil, service.ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/v1/accounts:lookup?key=%s", c.apiBaseURL, url.QueryEscape(c.apiKey))

	var result lookupResponse
	if err := c.postJSON(ctx, endpoint, "", map[string]interface{}{"idToken": idToken}, &result); err != nil {
		return nil, err
	}

	return c.profileFromLookup(&result)
}

// LookupByUID fetches a user record by its provider-assigned uid. This is an
// admin call and requires a service-account credential.
func (c *Client) LookupByUID(ctx context.Context, uid string) (*domain.UserProfile, error) {
	if c.tokenSource == nil {
		return nil, service.ErrNotConfigured
	}

	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain admin credential: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/accounts:lookup", c.apiBaseURL, c.projectID)

	var result lookupResponse
	if err := c.postJSON(ctx, endpoint, token.AccessToken, map[string]interface{}{"localId": []string{uid}}, &result); err != nil {
		return nil, err
	}

	return c.profileFromLookup(&result)
}

// profileFromLookup maps a lookup response onto a UserProfile
func (c *Client) profileFromLookup(result *lookupResponse) (*domain.UserProfile, error) {
	if len(result.Users) == 0 {
		return nil, service.ErrUserNotFound
	}

	user := result.Users[0]
	return &domain.UserProfile{
		UID:           user.LocalID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		PhotoURL:      user.PhotoURL,
		EmailVerified: user.EmailVerified,
		CreatedAt:     millisToRFC3339(user.CreatedAt),
		LastLoginAt:   millisToRFC3339(user.LastLoginAt),
	}, nil
}

// postJSON performs a JSON POST against the provider and decodes the
// response. Non-200 responses are returned as provider errors.
func (c *Client) postJSON(ctx context.Context, endpoint, bearerToken string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call identity provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var provErr providerError
		if json.Unmarshal(respBody, &provErr) == nil && provErr.Error.Message != "" {
			return fmt.Errorf("provider error: %s", provErr.Error.Message)
		}
		return fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.WithFields(map[string]interface{}{
			"response_body": string(respBody),
			"status_code":   resp.StatusCode,
		}).Error("Failed to parse identity provider response")
		return fmt.Errorf("failed to parse identity provider response: %w", err)
	}

	return nil
}

// mapSignInError translates provider error codes into sentinel errors so
// handlers can produce distinct messages for each failure class.
func (c *Client) mapSignInError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "EMAIL_NOT_FOUND"):
		return service.ErrUserNotFound
	case strings.Contains(msg, "INVALID_PASSWORD"), strings.Contains(msg, "INVALID_LOGIN_CREDENTIALS"):
		return service.ErrInvalidCredentials
	case strings.Contains(msg, "INVALID_EMAIL"), strings.Contains(msg, "MISSING_EMAIL"):
		return service.ErrInvalidEmail
	default:
		return err
	}
}

// millisToRFC3339 converts the provider's millisecond-epoch strings to a
// portable timestamp. Empty or malformed input reads as empty.
func millisToRFC3339(millis string) string {
	if millis == "" {
		return ""
	}
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
