package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Raumain/flashcards/internal/domain"
)

// DefaultRevisionThreshold is the error count from which a card is due for
// revision.
const DefaultRevisionThreshold = 3

// StudyRepository records answers and derives study statistics.
type StudyRepository struct {
	db DB
}

func NewStudyRepository(db DB) *StudyRepository {
	return &StudyRepository{db: db}
}

// Record stores one answer. The flashcard must belong to the user.
func (r *StudyRepository) Record(ctx context.Context, s *domain.StudySession) error {
	var owned int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flashcards WHERE id = $1 AND user_id = $2`,
		s.FlashcardID, s.UserID,
	).Scan(&owned)
	if err != nil {
		return fmt.Errorf("check flashcard owner: %w", err)
	}
	if owned == 0 {
		return ErrNotFound
	}

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.StudiedAt.IsZero() {
		s.StudiedAt = now()
	}

	var responseTime sql.NullInt64
	if s.ResponseTime != nil {
		responseTime = sql.NullInt64{Int64: int64(*s.ResponseTime), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO study_sessions (id, flashcard_id, user_id, is_correct, response_time, studied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.FlashcardID, s.UserID, s.IsCorrect, responseTime, s.StudiedAt)
	if err != nil {
		return fmt.Errorf("insert study session: %w", err)
	}
	return nil
}

// RevisionCards returns the user's cards answered wrong at least threshold
// times, most missed first.
func (r *StudyRepository) RevisionCards(ctx context.Context, userID string, threshold int) ([]domain.RevisionCard, error) {
	if threshold < 1 {
		threshold = DefaultRevisionThreshold
	}

	query := `
		SELECT ` + flashcardColumns + `, t.name, t.icon,
			COUNT(CASE WHEN s.is_correct = FALSE THEN 1 END) AS error_count,
			COUNT(s.id)
		FROM flashcards f
		JOIN thematics t ON t.id = f.thematic_id
		LEFT JOIN study_sessions s ON s.flashcard_id = f.id
		WHERE f.user_id = $1
		GROUP BY f.id, t.name, t.icon
		HAVING COUNT(CASE WHEN s.is_correct = FALSE THEN 1 END) >= $2
		ORDER BY error_count DESC, f.created_at, f.position
	`
	rows, err := r.db.QueryContext(ctx, query, userID, threshold)
	if err != nil {
		return nil, fmt.Errorf("query revision cards: %w", err)
	}
	defer rows.Close()

	out := []domain.RevisionCard{}
	for rows.Next() {
		var c domain.RevisionCard
		if err := scanFlashcard(rows, &c.Flashcard, &c.ThematicName, &c.ThematicIcon, &c.ErrorCount, &c.TotalSessions); err != nil {
			return nil, fmt.Errorf("scan revision card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SessionStats aggregates the user's answers.
type SessionStats struct {
	Total           int
	Correct         int
	AvgResponseTime sql.NullFloat64
}

func (r *StudyRepository) Stats(ctx context.Context, userID string) (SessionStats, error) {
	var s SessionStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0),
			AVG(response_time)
		FROM study_sessions
		WHERE user_id = $1
	`, userID).Scan(&s.Total, &s.Correct, &s.AvgResponseTime)
	if err != nil {
		return s, fmt.Errorf("query session stats: %w", err)
	}
	return s, nil
}

// StudyTimes returns when the user answered, most recent first.
func (r *StudyRepository) StudyTimes(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT studied_at FROM study_sessions WHERE user_id = $1 ORDER BY studied_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query study times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(timestamp{&t}); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
