package storage

import (
	"context"
	"math"
	"time"

	"github.com/Raumain/flashcards/internal/domain"
)

// Dashboard computes the user's dashboard metrics as of now.
func Dashboard(ctx context.Context, db DB, userID string, at time.Time) (*domain.DashboardMetrics, error) {
	cards, err := NewFlashcardRepository(db).Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	thematics, err := NewThematicRepository(db).Count(ctx, userID)
	if err != nil {
		return nil, err
	}

	study := NewStudyRepository(db)
	stats, err := study.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	times, err := study.StudyTimes(ctx, userID)
	if err != nil {
		return nil, err
	}

	m := &domain.DashboardMetrics{
		TotalFlashcards: cards,
		TotalThematics:  thematics,
		TotalSessions:   stats.Total,
		Streak:          Streak(times, at),
	}
	if stats.Total > 0 {
		m.SuccessRate = int(math.Round(float64(stats.Correct) / float64(stats.Total) * 100))
	}
	if stats.AvgResponseTime.Valid {
		m.AvgResponseTime = int(math.Round(stats.AvgResponseTime.Float64))
	}
	return m, nil
}

// Streak counts consecutive study days ending today, or ending yesterday
// when nothing was studied today. Days are taken in at's location.
func Streak(times []time.Time, at time.Time) int {
	if len(times) == 0 {
		return 0
	}

	const layout = "2006-01-02"
	days := make(map[string]bool, len(times))
	for _, t := range times {
		days[t.In(at.Location()).Format(layout)] = true
	}

	y, m, d := at.Date()
	cursor := time.Date(y, m, d, 12, 0, 0, 0, at.Location())
	if !days[cursor.Format(layout)] {
		cursor = cursor.AddDate(0, 0, -1)
	}

	streak := 0
	for days[cursor.Format(layout)] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
