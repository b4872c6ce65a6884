package container

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2/google"

	"studio-api/internal/config"
	"studio-api/internal/repository"
	"studio-api/internal/service"
	"studio-api/internal/service/auth"
	"studio-api/internal/service/identity"
	"studio-api/internal/service/media"
	"studio-api/pkg/logger"
	"studio-api/pkg/metrics"
	"studio-api/pkg/redis"
)

// Scope required for admin account lookups against the identity provider
const identityScope = "https://www.googleapis.com/auth/identitytoolkit"

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
	MetricsRegistry *prometheus.Registry
	RedisClient     *redis.Client
	Repository      repository.DocumentRepository
	Services        *service.Services
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Redis is optional; without it list responses always hit the store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			redisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without caching")
	}

	// Document store: Firestore when a project is configured, otherwise an
	// in-process store for local development
	var repo repository.DocumentRepository
	if cfg.FirebaseProjectID != "" {
		fsRepo, err := repository.NewFirestoreRepository(ctx, cfg.FirebaseProjectID, cfg.GoogleCredentials, log.Named("firestore"))
		if err != nil {
			return nil, err
		}
		repo = fsRepo
	} else {
		log.Warn("No project configured, using in-memory document store")
		repo = repository.NewMemoryRepository()
	}

	// Admin credential for uid lookups; absence only disables that endpoint
	tokenSource, err := google.DefaultTokenSource(ctx, identityScope)
	if err != nil {
		log.WithError(err).Warn("No admin credential available, user lookup by uid disabled")
		tokenSource = nil
	}

	verifier := auth.NewVerifier(cfg.FirebaseProjectID, cfg.FirebaseCertsURL, log.Named("verifier"))
	identityClient := identity.NewClient(cfg.FirebaseAPIKey, cfg.FirebaseProjectID, tokenSource, log.Named("identity"))

	var imageHost service.ImageHost
	if cfg.CloudinaryURL != "" {
		host, err := media.NewCloudinaryHost(cfg.CloudinaryURL, log.Named("cloudinary"))
		if err != nil {
			log.WithError(err).Warn("Failed to initialize image host, image deletion disabled")
		} else {
			imageHost = host
		}
	} else {
		log.Info("Image host not configured, image deletion disabled")
	}

	resourceService := service.NewResourceService(repo, imageHost, redisClient, m, log.Named("resources"))

	services := &service.Services{
		Verifier: verifier,
		Identity: identityClient,
		Images:   imageHost,
		Resource: resourceService,
	}

	return &Container{
		Config:          cfg,
		Logger:          log,
		Metrics:         m,
		MetricsRegistry: registry,
		RedisClient:     redisClient,
		Repository:      repo,
		Services:        services,
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetMetrics returns the metrics registry (may be nil in tests)
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.Metrics
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// GetVerifier returns the token verifier
func (c *Container) GetVerifier() service.TokenVerifier {
	return c.Services.Verifier
}

// GetIdentity returns the identity provider client
func (c *Container) GetIdentity() service.IdentityProvider {
	return c.Services.Identity
}

// GetImageHost returns the image host client (may be nil if not configured)
func (c *Container) GetImageHost() service.ImageHost {
	return c.Services.Images
}

// GetResourceService returns the resource CRUD service
func (c *Container) GetResourceService() *service.ResourceService {
	return c.Services.Resource
}
