package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studio-api/internal/domain"
	"studio-api/internal/repository"
	"studio-api/pkg/logger"
	"studio-api/pkg/metrics"
	"studio-api/pkg/redis"
)

// ResourceService orchestrates CRUD over the document collections: server
// timestamps, the best-effort image cascade on delete, and an optional
// cache-aside layer over the public list endpoints.
type ResourceService struct {
	repo    repository.DocumentRepository
	images  ImageHost
	cache   *redis.Client
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewResourceService creates a resource service. cache and m may be nil, in
// which case list responses always hit the store and no counters are kept.
func NewResourceService(repo repository.DocumentRepository, images ImageHost, cache *redis.Client, m *metrics.Metrics, logger *logger.Logger) *ResourceService {
	return &ResourceService{
		repo:    repo,
		images:  images,
		cache:   cache,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns every document in the collection with portable timestamps,
// serving from cache when possible.
func (s *ResourceService) List(ctx context.Context, def domain.ResourceDefinition) ([]domain.Document, error) {
	if s.cache != nil {
		key := s.cache.KeyBuilder.KeyResourceList(def.Collection)
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var docs []domain.Document
			if unmarshalErr := json.Unmarshal([]byte(cached), &docs); unmarshalErr == nil {
				s.logger.WithField("collection", def.Collection).Debug("List cache hit")
				s.countCacheHit()
				return docs, nil
			}
			s.logger.WithField("collection", def.Collection).Warn("List cache corrupted, falling back to store")
		} else if err != nil && !redis.IsNil(err) {
			s.logger.WithError(err).WithField("collection", def.Collection).Warn("List cache error, falling back to store")
		}
		s.countCacheMiss()
	}

	docs, err := s.repo.List(ctx, def.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", def.Collection, err)
	}

	for _, doc := range docs {
		doc.NormalizeTimestamps()
	}

	if s.cache != nil {
		if payload, err := json.Marshal(docs); err == nil {
			key := s.cache.KeyBuilder.KeyResourceList(def.Collection)
			if err := s.cache.Set(ctx, key, payload, redis.TTLResourceList); err != nil {
				s.logger.WithError(err).WithField("collection", def.Collection).Warn("Failed to cache list")
			}
		}
	}

	return docs, nil
}

// Create stores a new document with server-assigned timestamps and returns
// it, id populated.
func (s *ResourceService) Create(ctx context.Context, def domain.ResourceDefinition, fields domain.Document) (domain.Document, error) {
	now := s.now().UTC()

	doc := make(domain.Document, len(fields)+2)
	for k, v := range fields {
		doc[k] = v
	}
	doc[domain.FieldCreatedAt] = now
	doc[domain.FieldUpdatedAt] = now

	id, err := s.repo.Create(ctx, def.Collection, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create document in %s: %w", def.Collection, err)
	}

	s.invalidateList(ctx, def.Collection)

	doc[domain.FieldID] = id
	doc.NormalizeTimestamps()

	s.logger.WithFields(map[string]interface{}{
		"collection": def.Collection,
		"id":         id,
	}).Info("Document created")

	return doc, nil
}

// Update merges fields into an existing document, bumping updatedAt and
// leaving createdAt untouched. Returns repository.ErrNotFound for unknown ids.
func (s *ResourceService) Update(ctx context.Context, def domain.ResourceDefinition, id string, fields domain.Document) (domain.Document, error) {
	merged := make(domain.Document, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[domain.FieldUpdatedAt] = s.now().UTC()

	if err := s.repo.Update(ctx, def.Collection, id, merged); err != nil {
		return nil, err
	}

	s.invalidateList(ctx, def.Collection)

	doc, err := s.repo.Get(ctx, def.Collection, id)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"collection": def.Collection,
		"id":         id,
	}).Info("Document updated")

	return doc.NormalizeTimestamps(), nil
}

// Delete removes a document. When the document references a hosted image the
// image is destroyed first; a failed destroy is logged and swallowed, never
// failing the delete.
func (s *ResourceService) Delete(ctx context.Context, def domain.ResourceDefinition, id string) error {
	doc, err := s.repo.Get(ctx, def.Collection, id)
	if err != nil {
		return err
	}

	if publicID := doc.ImagePublicID(); publicID != "" && s.images != nil {
		if result, err := s.images.Destroy(ctx, publicID); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"collection": def.Collection,
				"id":         id,
				"public_id":  publicID,
			}).Warn("Image deletion failed, proceeding with document delete")
			s.countCascadeFailure()
		} else if result != "ok" {
			s.logger.WithFields(map[string]interface{}{
				"collection": def.Collection,
				"id":         id,
				"public_id":  publicID,
				"result":     result,
			}).Warn("Image host reported non-ok destroy result")
		}
	}

	if err := s.repo.Delete(ctx, def.Collection, id); err != nil {
		return err
	}

	s.invalidateList(ctx, def.Collection)

	s.logger.WithFields(map[string]interface{}{
		"collection": def.Collection,
		"id":         id,
	}).Info("Document deleted")

	return nil
}

// GetSettings returns the homepage settings singleton with every schema
// field present, absent ones defaulting to empty strings.
func (s *ResourceService) GetSettings(ctx context.Context) (domain.Document, error) {
	if s.cache != nil {
		key := s.cache.KeyBuilder.KeyHomepageSettings()
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var doc domain.Document
			if unmarshalErr := json.Unmarshal([]byte(cached), &doc); unmarshalErr == nil {
				s.countCacheHit()
				return doc, nil
			}
		}
		s.countCacheMiss()
	}

	doc, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get homepage settings: %w", err)
	}

	doc = fillSettingsDefaults(doc)

	if s.cache != nil {
		if payload, err := json.Marshal(doc); err == nil {
			key := s.cache.KeyBuilder.KeyHomepageSettings()
			if err := s.cache.Set(ctx, key, payload, redis.TTLHomepageSettings); err != nil {
				s.logger.WithError(err).Warn("Failed to cache homepage settings")
			}
		}
	}

	return doc, nil
}

// SetSettings merges fields into the homepage settings singleton and returns
// the resulting document. Merge semantics: untouched fields keep their prior
// values.
func (s *ResourceService) SetSettings(ctx context.Context, fields domain.Document) (domain.Document, error) {
	if err := s.repo.MergeSettings(ctx, fields); err != nil {
		return nil, fmt.Errorf("failed to update homepage settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, s.cache.KeyBuilder.KeyHomepageSettings()); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate homepage settings cache")
		}
	}

	doc, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read back homepage settings: %w", err)
	}

	s.logger.WithField("fields", len(fields)).Info("Homepage settings updated")

	return fillSettingsDefaults(doc), nil
}

// invalidateList drops the cached list for a collection after any write
func (s *ResourceService) invalidateList(ctx context.Context, collection string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cache.KeyBuilder.KeyResourceList(collection)); err != nil {
		s.logger.WithError(err).WithField("collection", collection).Warn("Failed to invalidate list cache")
	}
}

func fillSettingsDefaults(doc domain.Document) domain.Document {
	if doc == nil {
		doc = domain.Document{}
	}
	for _, field := range domain.HomepageSettingsFields {
		if _, ok := doc[field].(string); !ok {
			doc[field] = ""
		}
	}
	return doc
}

func (s *ResourceService) countCacheHit() {
	if s.metrics != nil {
		s.metrics.CacheHits.Inc()
	}
}

func (s *ResourceService) countCacheMiss() {
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}
}

func (s *ResourceService) countCascadeFailure() {
	if s.metrics != nil {
		s.metrics.CascadeFailures.Inc()
	}
}
