package repository

import (
	"context"
	"errors"

	"studio-api/internal/domain"
)

// ErrNotFound is returned when a document id does not exist in a collection
var ErrNotFound = errors.New("document not found")

// DocumentRepository defines the interface for document store operations.
// Collections hold flat documents keyed by a store-assigned id; the homepage
// settings document is a singleton at a fixed path with merge semantics.
type DocumentRepository interface {
	// List retrieves all documents in a collection
	List(ctx context.Context, collection string) ([]domain.Document, error)

	// Get retrieves a single document by id
	Get(ctx context.Context, collection, id string) (domain.Document, error)

	// Create stores a new document and returns its assigned id
	Create(ctx context.Context, collection string, doc domain.Document) (string, error)

	// Update merges fields into an existing document
	Update(ctx context.Context, collection, id string, fields domain.Document) error

	// Delete removes a document by id
	Delete(ctx context.Context, collection, id string) error

	// GetSettings retrieves the homepage settings singleton; a missing
	// document reads as an empty one
	GetSettings(ctx context.Context) (domain.Document, error)

	// MergeSettings merges fields into the homepage settings singleton,
	// creating it if absent
	MergeSettings(ctx context.Context, fields domain.Document) error

	// Close releases the underlying store connection
	Close() error
}
