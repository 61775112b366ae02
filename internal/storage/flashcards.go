package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Raumain/flashcards/internal/domain"
)

const flashcardColumns = `f.id, f.thematic_id, f.user_id, f.front, f.back, f.category, f.difficulty, f.created_at, f.updated_at`

// flashcardOrder lists cards in creation order, keeping the generation order
// of cards inserted together.
const flashcardOrder = ` ORDER BY f.created_at, f.position, f.id`

// FlashcardRepository handles flashcard persistence.
type FlashcardRepository struct {
	db DB
}

// NewFlashcardRepository creates a new flashcard repository.
func NewFlashcardRepository(db DB) *FlashcardRepository {
	return &FlashcardRepository{db: db}
}

// CreateBatch inserts cards under a thematic with a single statement and
// returns them as stored.
func (r *FlashcardRepository) CreateBatch(ctx context.Context, userID string, thematicID uuid.UUID, inputs []domain.FlashcardInput) ([]domain.Flashcard, error) {
	if len(inputs) == 0 {
		return []domain.Flashcard{}, nil
	}

	ts := now()
	cards := make([]domain.Flashcard, len(inputs))
	values := make([]string, len(inputs))
	args := make([]any, 0, len(inputs)*10)

	for i, in := range inputs {
		front, err := json.Marshal(in.Front)
		if err != nil {
			return nil, fmt.Errorf("encode flashcard front: %w", err)
		}
		back, err := json.Marshal(in.Back)
		if err != nil {
			return nil, fmt.Errorf("encode flashcard back: %w", err)
		}

		cards[i] = domain.Flashcard{
			ID:         uuid.New(),
			ThematicID: thematicID,
			UserID:     userID,
			Front:      in.Front,
			Back:       in.Back,
			Category:   in.Category,
			Difficulty: in.Difficulty,
			CreatedAt:  ts,
			UpdatedAt:  ts,
		}

		n := len(args)
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10)
		args = append(args,
			cards[i].ID, thematicID, userID, i, string(front), string(back),
			in.Category, string(in.Difficulty), ts, ts,
		)
	}

	query := `INSERT INTO flashcards (id, thematic_id, user_id, position, front, back, category, difficulty, created_at, updated_at) VALUES ` +
		strings.Join(values, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert flashcards: %w", err)
	}
	return cards, nil
}

// Get retrieves a flashcard owned by userID.
func (r *FlashcardRepository) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Flashcard, error) {
	query := `SELECT ` + flashcardColumns + ` FROM flashcards f WHERE f.id = $1 AND f.user_id = $2`

	var c domain.Flashcard
	err := scanFlashcard(r.db.QueryRowContext(ctx, query, id, userID), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flashcard: %w", err)
	}
	return &c, nil
}

// Delete removes a flashcard and its study sessions.
func (r *FlashcardRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM flashcards WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete flashcard: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByThematic returns the user's cards of one thematic.
func (r *FlashcardRepository) ListByThematic(ctx context.Context, userID string, thematicID uuid.UUID) ([]domain.Flashcard, error) {
	return r.ListByThematics(ctx, userID, []uuid.UUID{thematicID})
}

// ListByThematics returns the user's cards of several thematics.
func (r *FlashcardRepository) ListByThematics(ctx context.Context, userID string, thematicIDs []uuid.UUID) ([]domain.Flashcard, error) {
	if len(thematicIDs) == 0 {
		return []domain.Flashcard{}, nil
	}

	args := []any{userID}
	marks := make([]string, len(thematicIDs))
	for i, id := range thematicIDs {
		args = append(args, id)
		marks[i] = fmt.Sprintf("$%d", i+2)
	}

	query := `SELECT ` + flashcardColumns + ` FROM flashcards f WHERE f.user_id = $1 AND f.thematic_id IN (` +
		strings.Join(marks, ", ") + `)` + flashcardOrder
	return r.list(ctx, query, args...)
}

// ListAll returns every card the user owns.
func (r *FlashcardRepository) ListAll(ctx context.Context, userID string) ([]domain.Flashcard, error) {
	query := `SELECT ` + flashcardColumns + ` FROM flashcards f WHERE f.user_id = $1` + flashcardOrder
	return r.list(ctx, query, userID)
}

// Count returns how many flashcards the user owns.
func (r *FlashcardRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flashcards WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *FlashcardRepository) list(ctx context.Context, query string, args ...any) ([]domain.Flashcard, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	out := []domain.Flashcard{}
	for rows.Next() {
		var c domain.Flashcard
		if err := scanFlashcard(rows, &c); err != nil {
			return nil, fmt.Errorf("scan flashcard: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFlashcard(s scanner, c *domain.Flashcard, extra ...any) error {
	var (
		front, back []byte
		difficulty  string
	)
	dest := append([]any{
		&c.ID, &c.ThematicID, &c.UserID, &front, &back, &c.Category, &difficulty,
		timestamp{&c.CreatedAt}, timestamp{&c.UpdatedAt},
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return err
	}
	c.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal(front, &c.Front); err != nil {
		return fmt.Errorf("decode flashcard front: %w", err)
	}
	if err := json.Unmarshal(back, &c.Back); err != nil {
		return fmt.Errorf("decode flashcard back: %w", err)
	}
	return nil
}
