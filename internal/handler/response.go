package handler

import (
	"encoding/json"
	"net/http"

	"studio-api/pkg/errors"
	"studio-api/pkg/logger"
)

// respondJSON writes a JSON body with the given status code
func respondJSON(w http.ResponseWriter, status int, body interface{}, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// respondData writes the uniform success envelope around a data payload
func respondData(w http.ResponseWriter, status int, data interface{}, log *logger.Logger) {
	respondJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	}, log)
}

// respondError converts any error to the uniform failure envelope. Unknown
// errors are wrapped as internal so no upstream detail leaks to the client.
func respondError(w http.ResponseWriter, err error, log *logger.Logger) {
	appErr := errors.FromError(err)
	log.WithError(appErr).Error("Request error")

	respondJSON(w, appErr.StatusCode, map[string]interface{}{
		"success": false,
		"message": appErr.Message,
	}, log)
}
