// Package handlers provides HTTP handlers for the flashcards API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/pipeline"
	"github.com/Raumain/flashcards/internal/storage"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeData wraps data in the success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

// writeError maps err onto the failure envelope. Internal error text is
// logged here and never sent.
func writeError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		err = domain.NotFound("Ressource non trouvée ou accès refusé")
	}
	apiErr := pipeline.ToAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.WithRequest(r.Context()).Error().Err(err).Str("code", apiErr.Code).Msg("request failed")
	}
	writeAPIError(w, apiErr)
}

// writeInputError reports a rejected request body. Validation failures of
// caller input are a client error, unlike those of model output.
func writeInputError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidationFailed, domain.KindInvalidInput:
		de, _ := domain.AsError(err)
		writeAPIError(w, &pipeline.APIError{
			Code:    pipeline.CodeValidation,
			Message: de.Message,
			Details: de.Details,
			Status:  http.StatusBadRequest,
		})
	default:
		writeError(w, r, logger, err)
	}
}

func writeAPIError(w http.ResponseWriter, apiErr *pipeline.APIError) {
	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	writeJSON(w, apiErr.Status, map[string]any{"success": false, "error": apiErr})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ValidationFailed("Corps de requête invalide", []string{err.Error()})
	}
	return nil
}

// pathID parses a UUID path parameter.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.ValidationFailed("Identifiant invalide", []string{name + ": uuid attendu"})
	}
	return id, nil
}
