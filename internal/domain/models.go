package domain

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty tiers of a flashcard.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every tier in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ImageMimeType is the only encoded format produced by the optimizer.
const ImageMimeType = "image/jpeg"

// PageImage is one rasterized and optimized page of the source PDF.
type PageImage struct {
	PageIndex int    `json:"pageIndex"`
	Data      string `json:"base64"`
	MimeType  string `json:"mimeType"`
}

// DataURL renders the image as a data URL for multimodal requests.
func (p PageImage) DataURL() string {
	return "data:" + p.MimeType + ";base64," + p.Data
}

// RawPage is a rasterized page written to the rasterizer's working directory.
type RawPage struct {
	PageIndex int
	Path      string
}

type FlashcardFront struct {
	Question         string `json:"question" jsonschema:"Question claire et précise"`
	ImagePageIndex   *int   `json:"imagePageIndex,omitempty" jsonschema:"Index de la page contenant une image pertinente"`
	ImageDescription string `json:"imageDescription,omitempty"`
}

type FlashcardBack struct {
	Answer           string `json:"answer" jsonschema:"Réponse concise"`
	Details          string `json:"details,omitempty"`
	ImagePageIndex   *int   `json:"imagePageIndex,omitempty"`
	ImageDescription string `json:"imageDescription,omitempty"`
}

// GeneratedFlashcard is a flashcard as produced by the model, before it is
// bound to a thematic.
type GeneratedFlashcard struct {
	ID         string         `json:"id"`
	Front      FlashcardFront `json:"front"`
	Back       FlashcardBack  `json:"back"`
	Category   string         `json:"category"`
	Difficulty Difficulty     `json:"difficulty"`
}

type GenerationMetadata struct {
	Subject         string `json:"subject"`
	TotalConcepts   int    `json:"totalConcepts"`
	Recommendations string `json:"recommendations,omitempty"`
}

// GenerationResult is the complete output of one generation call.
type GenerationResult struct {
	Flashcards []GeneratedFlashcard `json:"flashcards"`
	Metadata   GenerationMetadata   `json:"metadata"`
	PageImages []PageImage          `json:"pageImages,omitempty"`
}

// CountByDifficulty tallies flashcards per tier.
func (r *GenerationResult) CountByDifficulty() map[Difficulty]int {
	counts := make(map[Difficulty]int, len(Difficulties))
	for _, d := range Difficulties {
		counts[d] = 0
	}
	for _, fc := range r.Flashcards {
		counts[fc.Difficulty]++
	}
	return counts
}

// PartialResult is a snapshot of a generation still in progress. Fields may
// be incomplete.
type PartialResult struct {
	Flashcards []GeneratedFlashcard `json:"flashcards"`
	Metadata   *GenerationMetadata  `json:"metadata,omitempty"`
}

// ThematicDraft is the label derived from the leading pages of a PDF.
type ThematicDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

// Thematic is a user-owned grouping of flashcards from one PDF.
type Thematic struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	PDFName     string    `json:"pdfName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ThematicSummary is a thematic with its flashcard count.
type ThematicSummary struct {
	Thematic
	FlashcardCount int `json:"flashcardCount"`
}

// ThematicUpdate carries a partial update; nil fields are left unchanged.
type ThematicUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	Icon        *string `json:"icon,omitempty"`
}

// Flashcard is a persisted flashcard.
type Flashcard struct {
	ID         uuid.UUID      `json:"id"`
	ThematicID uuid.UUID      `json:"thematicId"`
	UserID     string         `json:"userId"`
	Front      FlashcardFront `json:"front"`
	Back       FlashcardBack  `json:"back"`
	Category   string         `json:"category,omitempty"`
	Difficulty Difficulty     `json:"difficulty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// FlashcardInput is a flashcard supplied by a caller for direct save.
type FlashcardInput struct {
	Front      FlashcardFront `json:"front"`
	Back       FlashcardBack  `json:"back"`
	Category   string         `json:"category,omitempty"`
	Difficulty Difficulty     `json:"difficulty,omitempty"`
}

// StudySession records one answer to a flashcard.
type StudySession struct {
	ID           uuid.UUID `json:"id"`
	FlashcardID  uuid.UUID `json:"flashcardId"`
	UserID       string    `json:"userId"`
	IsCorrect    bool      `json:"isCorrect"`
	ResponseTime *int      `json:"responseTime,omitempty"`
	StudiedAt    time.Time `json:"studiedAt"`
}

// RevisionCard is a flashcard the user keeps getting wrong.
type RevisionCard struct {
	Flashcard
	ErrorCount    int    `json:"errorCount"`
	TotalSessions int    `json:"totalSessions"`
	ThematicName  string `json:"thematicName"`
	ThematicIcon  string `json:"thematicIcon"`
}

// DashboardMetrics summarizes a user's study activity.
type DashboardMetrics struct {
	TotalFlashcards int `json:"totalFlashcards"`
	TotalThematics  int `json:"totalThematics"`
	TotalSessions   int `json:"totalSessions"`
	SuccessRate     int `json:"successRate"`
	AvgResponseTime int `json:"avgResponseTime"`
	Streak          int `json:"streak"`
}
