package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studio-api/internal/domain"
	"studio-api/internal/repository"
	"studio-api/pkg/logger"
	"studio-api/pkg/redis"
)

// fakeImageHost records destroy calls and can be told to fail
type fakeImageHost struct {
	destroyed []string
	result    string
	err       error
}

func (f *fakeImageHost) Destroy(ctx context.Context, publicID string) (string, error) {
	f.destroyed = append(f.destroyed, publicID)
	if f.err != nil {
		return "", f.err
	}
	if f.result != "" {
		return f.result, nil
	}
	return "ok", nil
}

type serviceFixture struct {
	svc    *ResourceService
	repo   *repository.MemoryRepository
	images *fakeImageHost
	cache  *redis.Client
	mr     *miniredis.Miniredis
	now    time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	repo := repository.NewMemoryRepository()
	images := &fakeImageHost{}
	log := &logger.Logger{Logger: zap.NewNop()}

	svc := NewResourceService(repo, images, cache, nil, log)

	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &serviceFixture{svc: svc, repo: repo, images: images, cache: cache, mr: mr, now: now}
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, domain.Clients, domain.Document{"name": "Acme Studios"})
	require.NoError(t, err)

	assert.NotEmpty(t, doc[domain.FieldID])
	assert.Equal(t, "Acme Studios", doc["name"])
	assert.Equal(t, "2025-03-14T09:26:53Z", doc[domain.FieldCreatedAt])
	assert.Equal(t, "2025-03-14T09:26:53Z", doc[domain.FieldUpdatedAt])

	docs, err := f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc[domain.FieldID], docs[0][domain.FieldID])
}

func TestListServesFromCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.Clients, domain.Document{"name": "Acme Studios"})
	require.NoError(t, err)

	// First list populates the cache.
	docs, err := f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	key := f.cache.KeyBuilder.KeyResourceList(domain.Clients.Collection)
	cached, err := f.cache.Get(ctx, key)
	require.NoError(t, err)
	assert.NotEmpty(t, cached)

	// A write behind the service's back is invisible while the cache holds.
	_, err = f.repo.Create(ctx, domain.Clients.Collection, domain.Document{"name": "Shadow"})
	require.NoError(t, err)

	docs, err = f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestWritesInvalidateListCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.Clients, domain.Document{"name": "Acme Studios"})
	require.NoError(t, err)

	_, err = f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.Clients, domain.Document{"name": "Second"})
	require.NoError(t, err)

	docs, err := f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, f.svc.Delete(ctx, domain.Clients, created[domain.FieldID].(string)))

	docs, err = f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestListFallsBackOnCorruptedCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.Clients, domain.Document{"name": "Acme Studios"})
	require.NoError(t, err)

	key := f.cache.KeyBuilder.KeyResourceList(domain.Clients.Collection)
	require.NoError(t, f.cache.Set(ctx, key, "{not json", redis.TTLResourceList))

	docs, err := f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestListWithoutCache(t *testing.T) {
	repo := repository.NewMemoryRepository()
	log := &logger.Logger{Logger: zap.NewNop()}
	svc := NewResourceService(repo, nil, nil, nil, log)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Services, domain.Document{"title": "Editing", "description": "Post-production"})
	require.NoError(t, err)

	docs, err := svc.List(ctx, domain.Services)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpdateMergesAndBumpsUpdatedAt(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.Clients, domain.Document{
		"name":        "Acme Studios",
		"description": "Original",
	})
	require.NoError(t, err)
	id := created[domain.FieldID].(string)

	later := f.now.Add(time.Hour)
	f.svc.now = func() time.Time { return later }

	updated, err := f.svc.Update(ctx, domain.Clients, id, domain.Document{"description": "Revised"})
	require.NoError(t, err)

	assert.Equal(t, "Acme Studios", updated["name"])
	assert.Equal(t, "Revised", updated["description"])
	assert.Equal(t, "2025-03-14T09:26:53Z", updated[domain.FieldCreatedAt])
	assert.Equal(t, "2025-03-14T10:26:53Z", updated[domain.FieldUpdatedAt])
}

func TestUpdateUnknownID(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Update(context.Background(), domain.Clients, "missing", domain.Document{"name": "X"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteDestroysHostedImage(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.Clients, domain.Document{
		"name":                    "Acme Studios",
		domain.FieldImageURL:      "https://cdn.example.com/acme.png",
		domain.FieldImagePublicID: "studio/acme",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, domain.Clients, created[domain.FieldID].(string)))

	assert.Equal(t, []string{"studio/acme"}, f.images.destroyed)

	docs, err := f.svc.List(ctx, domain.Clients)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDeleteSucceedsWhenImageDestroyFails(t *testing.T) {
	f := newServiceFixture(t)
	f.images.err = errors.New("image host unavailable")
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.Clients, domain.Document{
		"name":                    "Acme Studios",
		domain.FieldImagePublicID: "studio/acme",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, domain.Clients, created[domain.FieldID].(string)))

	_, err = f.repo.Get(ctx, domain.Clients.Collection, created[domain.FieldID].(string))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteSkipsDestroyWithoutImage(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, domain.Clients, domain.Document{"name": "Acme Studios"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, domain.Clients, created[domain.FieldID].(string)))
	assert.Empty(t, f.images.destroyed)
}

func TestDeleteUnknownID(t *testing.T) {
	f := newServiceFixture(t)

	err := f.svc.Delete(context.Background(), domain.Clients, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetSettingsFillsDefaults(t *testing.T) {
	f := newServiceFixture(t)

	doc, err := f.svc.GetSettings(context.Background())
	require.NoError(t, err)

	for _, field := range domain.HomepageSettingsFields {
		assert.Equal(t, "", doc[field], "field %s should default to empty", field)
	}
}

func TestSetSettingsMerges(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetSettings(ctx, domain.Document{
		"heroTitle":  "Welcome",
		"projectId1": "proj-a",
	})
	require.NoError(t, err)

	doc, err := f.svc.SetSettings(ctx, domain.Document{"projectId1": "proj-b"})
	require.NoError(t, err)

	assert.Equal(t, "Welcome", doc["heroTitle"])
	assert.Equal(t, "proj-b", doc["projectId1"])
	assert.Equal(t, "", doc["contactEmail"])
}

func TestSetSettingsInvalidatesCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetSettings(ctx)
	require.NoError(t, err)

	key := f.cache.KeyBuilder.KeyHomepageSettings()
	cached, err := f.cache.Get(ctx, key)
	require.NoError(t, err)

	var doc domain.Document
	require.NoError(t, json.Unmarshal([]byte(cached), &doc))

	_, err = f.svc.SetSettings(ctx, domain.Document{"heroTitle": "Updated"})
	require.NoError(t, err)

	_, err = f.cache.Get(ctx, key)
	assert.True(t, redis.IsNil(err))

	doc, err = f.svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Updated", doc["heroTitle"])
}
