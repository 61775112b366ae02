package llm

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/validation"
)

// generationOutput is the object the model is asked to return.
type generationOutput struct {
	Flashcards []domain.GeneratedFlashcard `json:"flashcards"`
	Metadata   domain.GenerationMetadata   `json:"metadata"`
}

// thematicOutput is the object returned by thematic extraction.
type thematicOutput struct {
	Name        string `json:"name" jsonschema:"Nom court de la thématique"`
	Description string `json:"description" jsonschema:"Description du contenu"`
	Color       string `json:"color" jsonschema:"Couleur hexadécimale #RRGGBB"`
	Icon        string `json:"icon" jsonschema:"Un emoji"`
}

func ptr[T any](v T) *T { return &v }

func property(s *jsonschema.Schema, name string) *jsonschema.Schema {
	if s == nil || s.Properties == nil {
		return nil
	}
	return s.Properties[name]
}

func bound(s *jsonschema.Schema, minLen, maxLen int) {
	if s == nil {
		return
	}
	s.MinLength = ptr(minLen)
	s.MaxLength = ptr(maxLen)
}

// generationSchema derives the structured output schema from the Go types and
// tightens it with the flashcard bounds.
func generationSchema() (json.RawMessage, error) {
	s, err := jsonschema.For[generationOutput](nil)
	if err != nil {
		return nil, fmt.Errorf("derive generation schema: %w", err)
	}

	if cards := property(s, "flashcards"); cards != nil {
		cards.MinItems = ptr(validation.MinFlashcards)
		cards.MaxItems = ptr(validation.MaxFlashcards)

		item := cards.Items
		bound(property(property(item, "front"), "question"), validation.QuestionMinLen, validation.QuestionMaxLen)
		bound(property(property(item, "back"), "answer"), validation.AnswerMinLen, validation.AnswerMaxLen)
		if d := property(item, "difficulty"); d != nil {
			d.Enum = []any{string(domain.DifficultyEasy), string(domain.DifficultyMedium), string(domain.DifficultyHard)}
		}
	}

	return json.Marshal(s)
}

// thematicSchema returns the thematic output schema as a generic map, the
// form the Responses API parameters expect.
func thematicSchema() (map[string]any, error) {
	s, err := jsonschema.For[thematicOutput](nil)
	if err != nil {
		return nil, fmt.Errorf("derive thematic schema: %w", err)
	}
	bound(property(s, "name"), 1, validation.ThematicNameMaxLen)
	if d := property(s, "description"); d != nil {
		d.MaxLength = ptr(validation.ThematicDescriptionMaxLen)
	}
	if c := property(s, "color"); c != nil {
		c.Pattern = `^#[0-9A-Fa-f]{6}$`
	}
	bound(property(s, "icon"), 1, validation.ThematicIconMaxLen)

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
