package handler

import (
	"encoding/json"
	"net/http"

	"studio-api/internal/container"
	"studio-api/pkg/errors"
)

// MediaHandler handles direct image-host operations
type MediaHandler struct {
	container *container.Container
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(container *container.Container) *MediaHandler {
	return &MediaHandler{
		container: container,
	}
}

// deleteImageRequest is the POST /api/cloudinary/delete body
type deleteImageRequest struct {
	PublicID string `json:"publicId"`
}

// DeleteImage handles POST /api/cloudinary/delete
func (h *MediaHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	var req deleteImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil), log)
		return
	}
	if req.PublicID == "" {
		respondError(w, errors.NewValidationError("publicId is required", nil), log)
		return
	}

	images := h.container.GetImageHost()
	if images == nil {
		respondError(w, errors.NewConfigurationError("Image host is not configured"), log)
		return
	}

	result, err := images.Destroy(r.Context(), req.PublicID)
	if err != nil {
		respondError(w, errors.NewExternalError("Failed to delete image", err), log)
		return
	}

	if result == "not found" {
		respondError(w, errors.NewNotFoundError("Image not found"), log)
		return
	}

	log.WithField("public_id", req.PublicID).Info("Image deleted")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	}, log)
}
