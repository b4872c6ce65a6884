package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"studio-api/internal/domain"
	"studio-api/pkg/logger"
)

// APIError is a failure envelope returned by the server
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether the error is an authorization failure
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Client talks to the studio API. It attaches the stored access token to
// every request and, on an authorization failure, performs at most one
// refresh before retrying the original request once. Refreshes are
// serialized: concurrent requests that hit a 401 share a single refresh
// instead of racing their own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore
	logger     *logger.Logger

	refreshMu sync.Mutex
}

// NewClient creates a new API client against baseURL
func NewClient(baseURL string, store SessionStore, logger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store:  store,
		logger: logger,
	}
}

// envelope is the uniform response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// sessionEnvelope is the flattened auth response shape
type sessionEnvelope struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	User         *domain.UserProfile `json:"user"`
	Token        string              `json:"token"`
	RefreshToken string              `json:"refreshToken"`
	ExpiresIn    int64               `json:"expiresIn"`
}

// Login authenticates with the given credentials and persists the resulting
// session.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	body, err := c.post(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var resp sessionEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}

	session := &domain.Session{
		User:         resp.User,
		Token:        resp.Token,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}

	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	c.logger.WithField("user_id", resp.User.UID).Debug("Logged in")
	return session, nil
}

// Logout clears the persisted session
func (c *Client) Logout() error {
	return c.store.Clear()
}

// Refresh exchanges the stored refresh token ahead of expiry, without waiting
// for a request to fail.
func (c *Client) Refresh(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil {
		return err
	}
	if session == nil {
		return &APIError{StatusCode: http.StatusUnauthorized, Message: "no session"}
	}

	_, err = c.refresh(ctx, session.Token)
	return err
}

// Verify asks the server to verify the stored access token and returns the
// current user record behind it.
func (c *Client) Verify(ctx context.Context) (*domain.UserProfile, error) {
	session, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "no session"}
	}

	body, err := c.post(ctx, "/api/auth/verify", map[string]string{"idToken": session.Token})
	if err != nil {
		return nil, err
	}

	var resp sessionEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}
	return resp.User, nil
}

// List fetches all documents in a public collection
func (c *Client) List(ctx context.Context, collection string) ([]domain.Document, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/"+collection, nil)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	if err := c.decodeData(body, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Create adds a document to a collection (requires a session)
func (c *Client) Create(ctx context.Context, collection string, fields domain.Document) (domain.Document, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/"+collection, fields)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := c.decodeData(body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update merges fields into a document (requires a session)
func (c *Client) Update(ctx context.Context, collection, id string, fields domain.Document) (domain.Document, error) {
	body, err := c.do(ctx, http.MethodPut, "/api/"+collection+"/"+id, fields)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := c.decodeData(body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a document (requires a session)
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/"+collection+"/"+id, nil)
	return err
}

// GetHomepageSettings fetches the homepage settings document
func (c *Client) GetHomepageSettings(ctx context.Context) (domain.Document, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/homepage/settings", nil)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := c.decodeData(body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SetHomepageSettings merges fields into the homepage settings document
// (requires a session)
func (c *Client) SetHomepageSettings(ctx context.Context, fields domain.Document) (domain.Document, error) {
	body, err := c.do(ctx, http.MethodPut, "/api/homepage/settings", fields)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := c.decodeData(body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteImage removes an uploaded image by its public id (requires a session)
func (c *Client) DeleteImage(ctx context.Context, publicID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/cloudinary/delete", map[string]string{"publicId": publicID})
	return err
}

// do performs an authenticated request. On a 401 it attempts one serialized
// refresh and retries the original request once; a failed refresh clears the
// session and surfaces the original authorization failure.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	session, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	token := ""
	if session != nil {
		token = session.Token
	}

	respBody, err := c.send(ctx, method, path, body, token)
	apiErr, ok := err.(*APIError)
	if err == nil || !ok || !apiErr.IsUnauthorized() || session == nil {
		return respBody, err
	}

	newToken, refreshErr := c.refresh(ctx, token)
	if refreshErr != nil {
		c.logger.WithError(refreshErr).Debug("Session refresh failed")
		return nil, apiErr
	}

	return c.send(ctx, method, path, body, newToken)
}

// refresh exchanges the stored refresh token for a new session, serialized so
// concurrent 401s share one refresh. staleToken is the access token the
// caller just failed with; if another request already refreshed past it, the
// stored token is reused without another exchange.
func (c *Client) refresh(ctx context.Context, staleToken string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	session, err := c.store.Load()
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", &APIError{StatusCode: http.StatusUnauthorized, Message: "no session"}
	}
	if session.Token != staleToken {
		// Another request won the race and already refreshed.
		return session.Token, nil
	}

	body, err := c.post(ctx, "/api/auth/refresh", map[string]string{"refreshToken": session.RefreshToken})
	if err != nil {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.WithError(clearErr).Warn("Failed to clear session after refresh failure")
		}
		return "", err
	}

	var resp sessionEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse refresh response: %w", err)
	}

	session.Token = resp.Token
	if resp.RefreshToken != "" {
		session.RefreshToken = resp.RefreshToken
	}
	session.ExpiresIn = resp.ExpiresIn

	if err := c.store.Save(session); err != nil {
		return "", fmt.Errorf("failed to persist refreshed session: %w", err)
	}

	c.logger.Debug("Session refreshed")
	return session.Token, nil
}

// post performs an unauthenticated JSON POST (auth gateway endpoints)
func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return c.send(ctx, http.MethodPost, path, body, "")
}

// send performs one HTTP round trip and maps failure envelopes to APIError
func (c *Client) send(ctx context.Context, method, path string, body interface{}, token string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env envelope
		message := "operation failed"
		if json.Unmarshal(respBody, &env) == nil && env.Message != "" {
			message = env.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	return respBody, nil
}

// decodeData extracts the data payload from a success envelope
func (c *Client) decodeData(body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to parse response envelope: %w", err)
	}
	if env.Data == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}
