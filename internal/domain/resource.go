package domain

import (
	"fmt"
	"time"
)

// Document is a flat record stored in one of the resource collections.
// Scalar fields only, plus the server-assigned id and timestamps.
type Document map[string]interface{}

// Field names shared by every image-bearing document
const (
	FieldID            = "id"
	FieldImageURL      = "imageUrl"
	FieldImagePublicID = "imagePublicId"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
)

// ResourceDefinition describes one CRUD collection: its collection name and
// which request fields are required versus accepted.
type ResourceDefinition struct {
	Collection string
	Required   []string
	Optional   []string
}

// Resource collection definitions. Every mutation endpoint validates its body
// against one of these.
var (
	Clients = ResourceDefinition{
		Collection: "clients",
		Required:   []string{"name"},
		Optional:   []string{"description", "websiteUrl", FieldImageURL, FieldImagePublicID},
	}

	CoreValues = ResourceDefinition{
		Collection: "core-values",
		Required:   []string{"title", "description"},
		Optional:   []string{FieldImageURL, FieldImagePublicID},
	}

	Services = ResourceDefinition{
		Collection: "services",
		Required:   []string{"title", "description"},
		Optional:   []string{FieldImageURL, FieldImagePublicID},
	}

	Reviews = ResourceDefinition{
		Collection: "reviews",
		Required:   []string{"authorName", "content"},
		Optional:   []string{"role", "rating", FieldImageURL, FieldImagePublicID},
	}
)

// ResourceDefinitions lists every CRUD collection served by the API
var ResourceDefinitions = []ResourceDefinition{Clients, CoreValues, Services, Reviews}

// ValidateFields checks a decoded request body against the definition.
// Required fields must be present non-empty strings; unknown fields are
// rejected at the boundary.
func (d ResourceDefinition) ValidateFields(fields Document) error {
	allowed := make(map[string]bool, len(d.Required)+len(d.Optional))
	for _, f := range d.Required {
		allowed[f] = true
	}
	for _, f := range d.Optional {
		allowed[f] = true
	}

	for key := range fields {
		if !allowed[key] {
			return fmt.Errorf("unknown field: %s", key)
		}
	}

	for _, f := range d.Required {
		val, ok := fields[f].(string)
		if !ok || val == "" {
			return fmt.Errorf("field %s is required", f)
		}
	}

	return nil
}

// HomepageSettingsFields enumerates the singleton homepage document. Absent
// fields always read as empty strings; writes merge rather than replace.
var HomepageSettingsFields = []string{
	"heroTitle",
	"heroSubtitle",
	"showreelUrl",
	"aboutText",
	"contactEmail",
	"projectId1",
	"projectId2",
	"projectId3",
}

// ValidateHomepageSettings rejects fields outside the fixed settings schema
// and non-string values.
func ValidateHomepageSettings(fields Document) error {
	allowed := make(map[string]bool, len(HomepageSettingsFields))
	for _, f := range HomepageSettingsFields {
		allowed[f] = true
	}

	for key, val := range fields {
		if !allowed[key] {
			return fmt.Errorf("unknown field: %s", key)
		}
		if _, ok := val.(string); !ok {
			return fmt.Errorf("field %s must be a string", key)
		}
	}

	return nil
}

// NormalizeTimestamps converts time-typed timestamp fields to RFC3339 strings
// so list responses are portable regardless of the backing store.
func (doc Document) NormalizeTimestamps() Document {
	for _, key := range []string{FieldCreatedAt, FieldUpdatedAt} {
		if ts, ok := doc[key].(time.Time); ok {
			doc[key] = ts.UTC().Format(time.RFC3339)
		}
	}
	return doc
}

// ImagePublicID returns the document's image reference, if any
func (doc Document) ImagePublicID() string {
	if id, ok := doc[FieldImagePublicID].(string); ok {
		return id
	}
	return ""
}
