package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studio-api/internal/container"
	"studio-api/internal/domain"
	"studio-api/internal/middleware"
	"studio-api/internal/repository"
	"studio-api/internal/service"
	"studio-api/pkg/logger"
)

const testToken = "valid-test-token"

// fakeIdentity is a scriptable identity provider
type fakeIdentity struct {
	signIn      func(ctx context.Context, email, password string) (*service.SignInResult, error)
	refresh     func(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	lookupToken func(ctx context.Context, idToken string) (*domain.UserProfile, error)
	lookupUID   func(ctx context.Context, uid string) (*domain.UserProfile, error)
}

func (f *fakeIdentity) SignInWithPassword(ctx context.Context, email, password string) (*service.SignInResult, error) {
	if f.signIn == nil {
		return nil, service.ErrNotConfigured
	}
	return f.signIn(ctx, email, password)
}

func (f *fakeIdentity) Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error) {
	if f.refresh == nil {
		return nil, service.ErrNotConfigured
	}
	return f.refresh(ctx, refreshToken)
}

func (f *fakeIdentity) LookupByIDToken(ctx context.Context, idToken string) (*domain.UserProfile, error) {
	if f.lookupToken == nil {
		return nil, service.ErrUserNotFound
	}
	return f.lookupToken(ctx, idToken)
}

func (f *fakeIdentity) LookupByUID(ctx context.Context, uid string) (*domain.UserProfile, error) {
	if f.lookupUID == nil {
		return nil, service.ErrNotConfigured
	}
	return f.lookupUID(ctx, uid)
}

// staticVerifier accepts a single fixed token
type staticVerifier struct{}

func (staticVerifier) Verify(ctx context.Context, token string) (*domain.DecodedClaims, error) {
	if token != testToken {
		return nil, errors.New("token verification failed")
	}
	return &domain.DecodedClaims{UID: "uid-123", Email: "owner@example.com"}, nil
}

// recordingImageHost records destroy calls and returns a fixed result
type recordingImageHost struct {
	destroyed []string
	result    string
	err       error
}

func (f *recordingImageHost) Destroy(ctx context.Context, publicID string) (string, error) {
	f.destroyed = append(f.destroyed, publicID)
	if f.err != nil {
		return "", f.err
	}
	if f.result == "" {
		return "ok", nil
	}
	return f.result, nil
}

type handlerFixture struct {
	router   chi.Router
	identity *fakeIdentity
	images   *recordingImageHost
	repo     *repository.MemoryRepository
}

// newHandlerFixture wires the full API surface over fakes and an in-memory
// document store, mirroring the production router layout.
func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	log := &logger.Logger{Logger: zap.NewNop()}
	identity := &fakeIdentity{}
	images := &recordingImageHost{}
	repo := repository.NewMemoryRepository()

	resourceService := service.NewResourceService(repo, images, nil, nil, log)

	c := &container.Container{
		Logger: log,
		Services: &service.Services{
			Verifier: staticVerifier{},
			Identity: identity,
			Images:   images,
			Resource: resourceService,
		},
	}

	guard := middleware.Auth(c.GetVerifier(), log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		authHandler := NewAuthHandler(c)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/verify", authHandler.Verify)
			r.Post("/refresh", authHandler.Refresh)
			r.Get("/user/{uid}", authHandler.GetUser)
		})

		for _, def := range domain.ResourceDefinitions {
			NewResourceHandler(c, def).RegisterRoutes(r, guard)
		}

		homepageHandler := NewHomepageHandler(c)
		r.Route("/homepage", func(r chi.Router) {
			r.Get("/settings", homepageHandler.Get)
			r.With(guard).Put("/settings", homepageHandler.Set)
		})

		mediaHandler := NewMediaHandler(c)
		r.Route("/cloudinary", func(r chi.Router) {
			r.Use(guard)
			r.Post("/delete", mediaHandler.DeleteImage)
		})
	})

	return &handlerFixture{router: r, identity: identity, images: images, repo: repo}
}

// request performs one request against the fixture router. A non-empty token
// is sent as a bearer credential.
func (f *handlerFixture) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// decodeBody parses a response body into a generic map
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func testUser() *domain.UserProfile {
	return &domain.UserProfile{
		UID:           "uid-123",
		Email:         "owner@example.com",
		DisplayName:   "Studio Owner",
		EmailVerified: true,
	}
}
