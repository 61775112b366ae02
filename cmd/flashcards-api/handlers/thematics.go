package handlers

import (
	"net/http"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/reconcile"
	"github.com/Raumain/flashcards/internal/storage"
	"github.com/Raumain/flashcards/internal/validation"
)

const recentThematics = 5

// ThematicHandler serves a user's thematics and the direct save of cards
// into one of them.
type ThematicHandler struct {
	logger     *observability.Logger
	thematics  *storage.ThematicRepository
	flashcards *storage.FlashcardRepository
	reconciler *reconcile.Reconciler
	stats      *StatsCache
}

func NewThematicHandler(
	logger *observability.Logger,
	thematics *storage.ThematicRepository,
	flashcards *storage.FlashcardRepository,
	reconciler *reconcile.Reconciler,
	stats *StatsCache,
) *ThematicHandler {
	return &ThematicHandler{
		logger:     logger,
		thematics:  thematics,
		flashcards: flashcards,
		reconciler: reconciler,
		stats:      stats,
	}
}

// List handles GET /api/v1/thematics.
func (h *ThematicHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, 0)
}

// Recent handles GET /api/v1/thematics/recent.
func (h *ThematicHandler) Recent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, recentThematics)
}

func (h *ThematicHandler) list(w http.ResponseWriter, r *http.Request, limit int) {
	out, err := h.thematics.List(r.Context(), middleware.UserID(r.Context()), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

// Get handles GET /api/v1/thematics/{id}.
func (h *ThematicHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	t, err := h.thematics.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

// Create handles POST /api/v1/thematics.
func (h *ThematicHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body domain.ThematicDraft
	if err := decodeJSON(w, r, &body); err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	draft, err := validation.ThematicDraft(body)
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	userID := middleware.UserID(ctx)
	t := &domain.Thematic{
		UserID:      userID,
		Name:        draft.Name,
		Description: draft.Description,
		Color:       draft.Color,
		Icon:        draft.Icon,
	}
	if err := h.thematics.Create(ctx, t); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.stats.Invalidate(ctx, userID)
	writeData(w, http.StatusCreated, t)
}

// Update handles PATCH /api/v1/thematics/{id}.
func (h *ThematicHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	var body domain.ThematicUpdate
	if err := decodeJSON(w, r, &body); err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	if err := validation.ThematicUpdate(body); err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}

	t, err := h.thematics.Update(r.Context(), middleware.UserID(r.Context()), id, body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

// Delete handles DELETE /api/v1/thematics/{id}. Its cards and their study
// sessions go with it.
func (h *ThematicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	if err := h.thematics.Delete(ctx, userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.stats.Invalidate(ctx, userID)
	writeData(w, http.StatusOK, map[string]any{"id": id})
}

// Flashcards handles GET /api/v1/thematics/{id}/flashcards.
func (h *ThematicHandler) Flashcards(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	if _, err := h.thematics.Get(ctx, userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cards, err := h.flashcards.ListByThematic(ctx, userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, cards)
}

type saveFlashcardsRequest struct {
	Flashcards []domain.FlashcardInput `json:"flashcards"`
}

// SaveFlashcards handles POST /api/v1/thematics/{id}/flashcards.
func (h *ThematicHandler) SaveFlashcards(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	var body saveFlashcardsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	userID := middleware.UserID(ctx)
	cards, err := h.reconciler.SaveToThematic(ctx, userID, id, body.Flashcards)
	if err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	h.stats.Invalidate(ctx, userID)
	writeData(w, http.StatusCreated, cards)
}
