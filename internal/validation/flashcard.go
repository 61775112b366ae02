// Package validation enforces the structural contracts on generated and
// caller-supplied flashcard data.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Raumain/flashcards/internal/domain"
)

const (
	QuestionMinLen = 10
	QuestionMaxLen = 500
	AnswerMinLen   = 5
	AnswerMaxLen   = 1000

	MinFlashcards    = 9
	MaxFlashcards    = 100
	MinPerDifficulty = 3
)

// DistributionMessage is reported when a tier has fewer than MinPerDifficulty cards.
const DistributionMessage = "Il faut au minimum 3 flashcards par niveau de difficulté (easy, medium, hard)"

// issues accumulates field errors with a path prefix.
type issues []string

func (is *issues) addf(format string, args ...any) {
	*is = append(*is, fmt.Sprintf(format, args...))
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

// GenerationResult checks a model output against the flashcard bounds and
// the distribution invariant. pageCount is the number of page images sent
// with the request; image references must fall inside it.
func GenerationResult(res *domain.GenerationResult, pageCount int) error {
	if res == nil {
		return domain.ValidationFailed("résultat de génération vide", nil)
	}

	var is issues
	n := len(res.Flashcards)
	if n < MinFlashcards {
		is.addf("flashcards: au moins %d flashcards attendues, %d reçues", MinFlashcards, n)
	}
	if n > MaxFlashcards {
		is.addf("flashcards: au plus %d flashcards attendues, %d reçues", MaxFlashcards, n)
	}

	for i, fc := range res.Flashcards {
		checkGenerated(&is, fmt.Sprintf("flashcards[%d]", i), fc, pageCount)
	}

	counts := res.CountByDifficulty()
	for _, d := range domain.Difficulties {
		if counts[d] < MinPerDifficulty {
			is = append(is, DistributionMessage)
			break
		}
	}

	if res.Metadata.TotalConcepts < 0 {
		is.addf("metadata.totalConcepts: doit être positif")
	}

	if len(is) > 0 {
		return domain.ValidationFailed("la génération ne respecte pas le schéma attendu", is)
	}
	return nil
}

func checkGenerated(is *issues, path string, fc domain.GeneratedFlashcard, pageCount int) {
	if l := length(fc.Front.Question); l < QuestionMinLen || l > QuestionMaxLen {
		is.addf("%s.front.question: longueur %d hors de [%d, %d]", path, l, QuestionMinLen, QuestionMaxLen)
	}
	if l := length(fc.Back.Answer); l < AnswerMinLen || l > AnswerMaxLen {
		is.addf("%s.back.answer: longueur %d hors de [%d, %d]", path, l, AnswerMinLen, AnswerMaxLen)
	}
	if !fc.Difficulty.Valid() {
		is.addf("%s.difficulty: valeur inconnue %q", path, fc.Difficulty)
	}
	checkPageIndex(is, path+".front.imagePageIndex", fc.Front.ImagePageIndex, pageCount)
	checkPageIndex(is, path+".back.imagePageIndex", fc.Back.ImagePageIndex, pageCount)
}

func checkPageIndex(is *issues, path string, idx *int, pageCount int) {
	if idx == nil {
		return
	}
	if *idx < 0 || *idx >= pageCount {
		is.addf("%s: page %d inexistante (%d pages)", path, *idx, pageCount)
	}
}

// FlashcardInputs validates flashcards supplied through the direct-save path
// and returns them with defaults applied.
func FlashcardInputs(inputs []domain.FlashcardInput) ([]domain.FlashcardInput, error) {
	var is issues
	if len(inputs) == 0 {
		is.addf("flashcards: au moins une flashcard est requise")
	}

	out := make([]domain.FlashcardInput, 0, len(inputs))
	for i, in := range inputs {
		path := fmt.Sprintf("flashcards[%d]", i)
		if strings.TrimSpace(in.Front.Question) == "" {
			is.addf("%s.front.question: requis", path)
		}
		if strings.TrimSpace(in.Back.Answer) == "" {
			is.addf("%s.back.answer: requis", path)
		}
		if in.Difficulty == "" {
			in.Difficulty = domain.DifficultyMedium
		}
		if !in.Difficulty.Valid() {
			is.addf("%s.difficulty: valeur inconnue %q", path, in.Difficulty)
		}
		if in.Front.ImagePageIndex != nil && *in.Front.ImagePageIndex < 0 {
			is.addf("%s.front.imagePageIndex: doit être positif", path)
		}
		if in.Back.ImagePageIndex != nil && *in.Back.ImagePageIndex < 0 {
			is.addf("%s.back.imagePageIndex: doit être positif", path)
		}
		out = append(out, in)
	}

	if len(is) > 0 {
		return nil, domain.ValidationFailed("flashcards invalides", is)
	}
	return out, nil
}
