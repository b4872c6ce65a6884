package handler

import (
	"encoding/json"
	"net/http"

	"studio-api/internal/container"
	"studio-api/internal/domain"
	"studio-api/pkg/errors"
)

// HomepageHandler serves the homepage settings singleton: public read,
// guarded merge-write, no id and no delete.
type HomepageHandler struct {
	container *container.Container
}

// NewHomepageHandler creates a new homepage settings handler
func NewHomepageHandler(container *container.Container) *HomepageHandler {
	return &HomepageHandler{
		container: container,
	}
}

// Get handles GET /api/homepage/settings
func (h *HomepageHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	doc, err := h.container.GetResourceService().GetSettings(r.Context())
	if err != nil {
		respondError(w, errors.NewExternalError("Failed to load homepage settings", err), log)
		return
	}

	respondData(w, http.StatusOK, doc, log)
}

// Set handles PUT /api/homepage/settings. Writes always merge: fields absent
// from the body keep their prior values.
func (h *HomepageHandler) Set(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	var fields domain.Document
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil), log)
		return
	}

	if err := domain.ValidateHomepageSettings(fields); err != nil {
		respondError(w, errors.NewValidationError(err.Error(), nil), log)
		return
	}

	doc, err := h.container.GetResourceService().SetSettings(r.Context(), fields)
	if err != nil {
		respondError(w, errors.NewExternalError("Failed to update homepage settings", err), log)
		return
	}

	respondData(w, http.StatusOK, doc, log)
}
