// Package reconcile turns a validated generation into persisted records.
package reconcile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/storage"
	"github.com/Raumain/flashcards/internal/validation"
)

// DefaultThematicPages is how many leading pages feed thematic extraction.
const DefaultThematicPages = 2

// Reconciler creates the thematic for a generation and stores its cards.
type Reconciler struct {
	db        *sql.DB
	extractor domain.ThematicExtractor
	pages     int
	logger    *observability.Logger
}

func New(db *sql.DB, extractor domain.ThematicExtractor, pages int, logger *observability.Logger) *Reconciler {
	if pages <= 0 {
		pages = DefaultThematicPages
	}
	return &Reconciler{
		db:        db,
		extractor: extractor,
		pages:     pages,
		logger:    logger.WithComponent("reconcile"),
	}
}

// Reconcile labels the generation from its first pages, then writes one
// thematic and all its flashcards in a single transaction.
func (r *Reconciler) Reconcile(ctx context.Context, images []domain.PageImage, result *domain.GenerationResult, ownerID, fileName string) (*domain.Thematic, []domain.Flashcard, error) {
	if ownerID == "" {
		return nil, nil, domain.Unauthorized("an authenticated user is required to save flashcards")
	}

	lead := images
	if len(lead) > r.pages {
		lead = lead[:r.pages]
	}
	draft := r.extractor.Extract(ctx, lead)

	thematic := &domain.Thematic{
		UserID:      ownerID,
		Name:        draft.Name,
		Description: draft.Description,
		Color:       draft.Color,
		Icon:        draft.Icon,
		PDFName:     fileName,
	}

	inputs := make([]domain.FlashcardInput, len(result.Flashcards))
	for i, c := range result.Flashcards {
		inputs[i] = domain.FlashcardInput{
			Front:      c.Front,
			Back:       c.Back,
			Category:   c.Category,
			Difficulty: c.Difficulty,
		}
	}

	var cards []domain.Flashcard
	err := storage.WithTx(ctx, r.db, func(tx storage.DB) error {
		if err := storage.NewThematicRepository(tx).Create(ctx, thematic); err != nil {
			return err
		}
		var err error
		cards, err = storage.NewFlashcardRepository(tx).CreateBatch(ctx, ownerID, thematic.ID, inputs)
		return err
	})
	if err != nil {
		return nil, nil, domain.PersistenceFailed("Impossible d'enregistrer les flashcards", err)
	}

	r.logger.Info().
		Str("user_id", ownerID).
		Str("thematic_id", thematic.ID.String()).
		Str("thematic", thematic.Name).
		Int("flashcards", len(cards)).
		Msg("generation persisted")

	return thematic, cards, nil
}

// SaveToThematic validates externally supplied cards and adds them to a
// thematic the user owns.
func (r *Reconciler) SaveToThematic(ctx context.Context, ownerID string, thematicID uuid.UUID, inputs []domain.FlashcardInput) ([]domain.Flashcard, error) {
	if ownerID == "" {
		return nil, domain.Unauthorized("an authenticated user is required to save flashcards")
	}
	cleaned, err := validation.FlashcardInputs(inputs)
	if err != nil {
		return nil, err
	}

	var cards []domain.Flashcard
	err = storage.WithTx(ctx, r.db, func(tx storage.DB) error {
		if _, err := storage.NewThematicRepository(tx).Get(ctx, ownerID, thematicID); err != nil {
			return err
		}
		var err error
		cards, err = storage.NewFlashcardRepository(tx).CreateBatch(ctx, ownerID, thematicID, cleaned)
		return err
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, domain.NotFound("Thématique non trouvée ou accès refusé")
	case err != nil:
		return nil, domain.PersistenceFailed("Impossible d'enregistrer les flashcards", err)
	}
	return cards, nil
}
