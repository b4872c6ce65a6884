package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"studio-api/internal/domain"
	"studio-api/pkg/logger"
)

// Fixed path of the homepage settings singleton
const (
	settingsCollection = "settings"
	settingsDocID      = "homepage"
)

// FirestoreRepository implements DocumentRepository against Cloud Firestore
type FirestoreRepository struct {
	client *firestore.Client
	log    *logger.Logger
}

// NewFirestoreRepository creates a Firestore-backed document repository.
// credentialsFile may be empty, in which case application default credentials
// are used.
func NewFirestoreRepository(ctx context.Context, projectID, credentialsFile string, log *logger.Logger) (*FirestoreRepository, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreRepository{client: client, log: log}, nil
}

// List retrieves all documents in a collection
func (r *FirestoreRepository) List(ctx context.Context, collection string) ([]domain.Document, error) {
	iter := r.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	docs := make([]domain.Document, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
		}

		doc := domain.Document(snap.Data())
		doc[domain.FieldID] = snap.Ref.ID
		docs = append(docs, doc)
	}

	r.log.WithFields(map[string]interface{}{
		"collection": collection,
		"count":      len(docs),
	}).Debug("Listed documents")

	return docs, nil
}

// Get retrieves a single document by id
func (r *FirestoreRepository) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	snap, err := r.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	doc := domain.Document(snap.Data())
	doc[domain.FieldID] = snap.Ref.ID
	return doc, nil
}

// Create stores a new document and returns its assigned id
func (r *FirestoreRepository) Create(ctx context.Context, collection string, doc domain.Document) (string, error) {
	ref, _, err := r.client.Collection(collection).Add(ctx, map[string]interface{}(doc))
	if err != nil {
		return "", fmt.Errorf("failed to create document in %s: %w", collection, err)
	}

	r.log.WithFields(map[string]interface{}{
		"collection": collection,
		"id":         ref.ID,
	}).Debug("Created document")

	return ref.ID, nil
}

// Update merges fields into an existing document
func (r *FirestoreRepository) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	ref := r.client.Collection(collection).Doc(id)

	// Firestore's Set with merge would upsert; the contract requires 404 on
	// unknown ids, so existence is checked first.
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}

	if _, err := ref.Set(ctx, map[string]interface{}(fields), firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}

	return nil
}

// Delete removes a document by id
func (r *FirestoreRepository) Delete(ctx context.Context, collection, id string) error {
	ref := r.client.Collection(collection).Doc(id)

	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}

	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	return nil
}

// GetSettings retrieves the homepage settings singleton
func (r *FirestoreRepository) GetSettings(ctx context.Context) (domain.Document, error) {
	snap, err := r.client.Collection(settingsCollection).Doc(settingsDocID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get homepage settings: %w", err)
	}

	return domain.Document(snap.Data()), nil
}

// MergeSettings merges fields into the homepage settings singleton
func (r *FirestoreRepository) MergeSettings(ctx context.Context, fields domain.Document) error {
	ref := r.client.Collection(settingsCollection).Doc(settingsDocID)
	if _, err := ref.Set(ctx, map[string]interface{}(fields), firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to merge homepage settings: %w", err)
	}
	return nil
}

// Close releases the Firestore client
func (r *FirestoreRepository) Close() error {
	return r.client.Close()
}
