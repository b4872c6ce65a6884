package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio-api/internal/container"
	"studio-api/internal/domain"
	"studio-api/internal/repository"
	"studio-api/pkg/errors"
)

// ResourceHandler serves the uniform CRUD contract for one document
// collection. Lists are public; every mutation sits behind the request guard.
type ResourceHandler struct {
	container *container.Container
	def       domain.ResourceDefinition
}

// NewResourceHandler creates a CRUD handler for a collection definition
func NewResourceHandler(container *container.Container, def domain.ResourceDefinition) *ResourceHandler {
	return &ResourceHandler{
		container: container,
		def:       def,
	}
}

// RegisterRoutes mounts the collection's routes. guard wraps the mutation
// endpoints only.
func (h *ResourceHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Route("/"+h.def.Collection, func(r chi.Router) {
		r.Get("/", h.List)

		r.Group(func(r chi.Router) {
			r.Use(guard)

			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles GET /api/{collection}
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	docs, err := h.container.GetResourceService().List(r.Context(), h.def)
	if err != nil {
		respondError(w, errors.NewExternalError("Failed to list "+h.def.Collection, err), log)
		return
	}

	respondData(w, http.StatusOK, docs, log)
}

// Create handles POST /api/{collection}
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	fields, err := h.decodeFields(r)
	if err != nil {
		respondError(w, err, log)
		return
	}

	doc, err := h.container.GetResourceService().Create(r.Context(), h.def, fields)
	if err != nil {
		respondError(w, errors.NewExternalError("Failed to create "+h.def.Collection+" entry", err), log)
		return
	}

	respondData(w, http.StatusCreated, doc, log)
}

// Update handles PUT /api/{collection}/{id}
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, errors.NewValidationError("id is required", nil), log)
		return
	}

	fields, err := h.decodeFields(r)
	if err != nil {
		respondError(w, err, log)
		return
	}

	doc, err := h.container.GetResourceService().Update(r.Context(), h.def, id, fields)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			respondError(w, errors.NewNotFoundError("Entry not found"), log)
			return
		}
		respondError(w, errors.NewExternalError("Failed to update "+h.def.Collection+" entry", err), log)
		return
	}

	respondData(w, http.StatusOK, doc, log)
}

// Delete handles DELETE /api/{collection}/{id}
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, errors.NewValidationError("id is required", nil), log)
		return
	}

	err := h.container.GetResourceService().Delete(r.Context(), h.def, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			respondError(w, errors.NewNotFoundError("Entry not found"), log)
			return
		}
		respondError(w, errors.NewExternalError("Failed to delete "+h.def.Collection+" entry", err), log)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Entry deleted",
	}, log)
}

// decodeFields parses and validates a mutation body against the collection
// definition. Unknown-shaped input is rejected at the boundary.
func (h *ResourceHandler) decodeFields(r *http.Request) (domain.Document, error) {
	var fields domain.Document
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, errors.NewValidationError("Invalid request body", nil)
	}

	if err := h.def.ValidateFields(fields); err != nil {
		return nil, errors.NewValidationError(err.Error(), nil)
	}

	return fields, nil
}
