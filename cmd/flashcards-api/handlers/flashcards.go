package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/storage"
)

// FlashcardHandler serves a user's stored flashcards.
type FlashcardHandler struct {
	logger     *observability.Logger
	flashcards *storage.FlashcardRepository
	stats      *StatsCache
}

func NewFlashcardHandler(logger *observability.Logger, flashcards *storage.FlashcardRepository, stats *StatsCache) *FlashcardHandler {
	return &FlashcardHandler{logger: logger, flashcards: flashcards, stats: stats}
}

// List handles GET /api/v1/flashcards.
func (h *FlashcardHandler) List(w http.ResponseWriter, r *http.Request) {
	cards, err := h.flashcards.ListAll(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, cards)
}

type byThematicsRequest struct {
	ThematicIDs []uuid.UUID `json:"thematicIds"`
}

// ByThematics handles POST /api/v1/flashcards/by-thematics.
func (h *FlashcardHandler) ByThematics(w http.ResponseWriter, r *http.Request) {
	var body byThematicsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	if len(body.ThematicIDs) == 0 {
		writeInputError(w, r, h.logger, domain.ValidationFailed("Au moins une thématique est requise", []string{"thematicIds: vide"}))
		return
	}

	cards, err := h.flashcards.ListByThematics(r.Context(), middleware.UserID(r.Context()), body.ThematicIDs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, cards)
}

// Get handles GET /api/v1/flashcards/{id}.
func (h *FlashcardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	card, err := h.flashcards.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, card)
}

// Delete handles DELETE /api/v1/flashcards/{id}.
func (h *FlashcardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	if err := h.flashcards.Delete(ctx, userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.stats.Invalidate(ctx, userID)
	writeData(w, http.StatusOK, map[string]any{"id": id})
}
