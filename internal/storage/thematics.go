package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Raumain/flashcards/internal/domain"
)

const thematicColumns = `t.id, t.user_id, t.name, t.description, t.color, t.icon, t.pdf_name, t.created_at, t.updated_at`

// ThematicRepository handles thematic CRUD operations. Every query is scoped
// to the owning user.
type ThematicRepository struct {
	db DB
}

// NewThematicRepository creates a new thematic repository.
func NewThematicRepository(db DB) *ThematicRepository {
	return &ThematicRepository{db: db}
}

// Create inserts a thematic, assigning its ID and timestamps.
func (r *ThematicRepository) Create(ctx context.Context, t *domain.Thematic) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt

	query := `
		INSERT INTO thematics (id, user_id, name, description, color, icon, pdf_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.Name, t.Description, t.Color, t.Icon, t.PDFName,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert thematic: %w", err)
	}
	return nil
}

// Get retrieves a thematic owned by userID.
func (r *ThematicRepository) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Thematic, error) {
	query := `SELECT ` + thematicColumns + ` FROM thematics t WHERE t.id = $1 AND t.user_id = $2`

	t, err := scanThematic(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get thematic: %w", err)
	}
	return t, nil
}

// List returns the user's thematics with their card counts, newest first.
// A positive limit caps the result.
func (r *ThematicRepository) List(ctx context.Context, userID string, limit int) ([]domain.ThematicSummary, error) {
	query := `
		SELECT ` + thematicColumns + `, COUNT(f.id)
		FROM thematics t
		LEFT JOIN flashcards f ON f.thematic_id = t.id
		WHERE t.user_id = $1
		GROUP BY t.id
		ORDER BY t.created_at DESC, t.id
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list thematics: %w", err)
	}
	defer rows.Close()

	out := []domain.ThematicSummary{}
	for rows.Next() {
		var s domain.ThematicSummary
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Name, &s.Description, &s.Color, &s.Icon, &s.PDFName,
			timestamp{&s.CreatedAt}, timestamp{&s.UpdatedAt}, &s.FlashcardCount,
		); err != nil {
			return nil, fmt.Errorf("scan thematic: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of u and returns the updated thematic.
func (r *ThematicRepository) Update(ctx context.Context, userID string, id uuid.UUID, u domain.ThematicUpdate) (*domain.Thematic, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Name != nil {
		set("name", strings.TrimSpace(*u.Name))
	}
	if u.Description != nil {
		set("description", *u.Description)
	}
	if u.Color != nil {
		set("color", *u.Color)
	}
	if u.Icon != nil {
		set("icon", *u.Icon)
	}
	set("updated_at", now())

	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE thematics SET %s WHERE id = $%d AND user_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update thematic: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, userID, id)
}

// Delete removes a thematic and, through the cascade, its flashcards and
// their study sessions.
func (r *ThematicRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM thematics WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete thematic: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns how many thematics the user owns.
func (r *ThematicRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thematics WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func scanThematic(row *sql.Row) (*domain.Thematic, error) {
	t := &domain.Thematic{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Description, &t.Color, &t.Icon, &t.PDFName,
		timestamp{&t.CreatedAt}, timestamp{&t.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
