package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/storage"
)

// StudyHandler records answers and lists cards due for revision.
type StudyHandler struct {
	logger *observability.Logger
	study  *storage.StudyRepository
	stats  *StatsCache
}

func NewStudyHandler(logger *observability.Logger, study *storage.StudyRepository, stats *StatsCache) *StudyHandler {
	return &StudyHandler{logger: logger, study: study, stats: stats}
}

type recordRequest struct {
	FlashcardID  uuid.UUID `json:"flashcardId"`
	IsCorrect    *bool     `json:"isCorrect"`
	ResponseTime *int      `json:"responseTime,omitempty"`
}

func (req recordRequest) validate() error {
	var issues []string
	if req.FlashcardID == uuid.Nil {
		issues = append(issues, "flashcardId: requis")
	}
	if req.IsCorrect == nil {
		issues = append(issues, "isCorrect: requis")
	}
	if req.ResponseTime != nil && *req.ResponseTime <= 0 {
		issues = append(issues, "responseTime: doit être positif")
	}
	if len(issues) > 0 {
		return domain.ValidationFailed("Session d'étude invalide", issues)
	}
	return nil
}

// Record handles POST /api/v1/study.
func (h *StudyHandler) Record(w http.ResponseWriter, r *http.Request) {
	var body recordRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}
	if err := body.validate(); err != nil {
		writeInputError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	userID := middleware.UserID(ctx)
	session := &domain.StudySession{
		FlashcardID:  body.FlashcardID,
		UserID:       userID,
		IsCorrect:    *body.IsCorrect,
		ResponseTime: body.ResponseTime,
	}
	if err := h.study.Record(ctx, session); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.stats.Invalidate(ctx, userID)
	writeData(w, http.StatusCreated, session)
}

// Revision handles GET /api/v1/study/revision?threshold=N.
func (h *StudyHandler) Revision(w http.ResponseWriter, r *http.Request) {
	threshold := storage.DefaultRevisionThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeInputError(w, r, h.logger, domain.ValidationFailed("Seuil invalide", []string{"threshold: entier >= 1 attendu"}))
			return
		}
		threshold = n
	}

	cards, err := h.study.RevisionCards(r.Context(), middleware.UserID(r.Context()), threshold)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, cards)
}
