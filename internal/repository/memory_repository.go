package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"studio-api/internal/domain"
)

// MemoryRepository is an in-process DocumentRepository. It backs local
// development without cloud credentials and the test suite.
type MemoryRepository struct {
	mu          sync.RWMutex
	collections map[string]map[string]domain.Document
	settings    domain.Document
}

// NewMemoryRepository creates an empty in-memory document repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		collections: make(map[string]map[string]domain.Document),
		settings:    domain.Document{},
	}
}

func copyDoc(doc domain.Document) domain.Document {
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// List retrieves all documents in a collection
func (r *MemoryRepository) List(ctx context.Context, collection string) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]domain.Document, 0, len(r.collections[collection]))
	for id, doc := range r.collections[collection] {
		out := copyDoc(doc)
		out[domain.FieldID] = id
		docs = append(docs, out)
	}
	return docs, nil
}

// Get retrieves a single document by id
func (r *MemoryRepository) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	out := copyDoc(doc)
	out[domain.FieldID] = id
	return out, nil
}

// Create stores a new document and returns its assigned id
func (r *MemoryRepository) Create(ctx context.Context, collection string, doc domain.Document) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.collections[collection] == nil {
		r.collections[collection] = make(map[string]domain.Document)
	}

	id := uuid.NewString()
	r.collections[collection][id] = copyDoc(doc)
	return id, nil
}

// Update merges fields into an existing document
func (r *MemoryRepository) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.collections[collection][id]
	if !ok {
		return ErrNotFound
	}

	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// Delete removes a document by id
func (r *MemoryRepository) Delete(ctx context.Context, collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[collection][id]; !ok {
		return ErrNotFound
	}

	delete(r.collections[collection], id)
	return nil
}

// GetSettings retrieves the homepage settings singleton
func (r *MemoryRepository) GetSettings(ctx context.Context) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyDoc(r.settings), nil
}

// MergeSettings merges fields into the homepage settings singleton
func (r *MemoryRepository) MergeSettings(ctx context.Context, fields domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range fields {
		r.settings[k] = v
	}
	return nil
}

// Close is a no-op for the in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}
