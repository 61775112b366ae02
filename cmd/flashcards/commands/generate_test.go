package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/validation"
)

func TestWriteOutcome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	outcome := &domain.Outcome{Result: &domain.GenerationResult{
		Flashcards: []domain.GeneratedFlashcard{
			{
				Front:      domain.FlashcardFront{Question: "Q"},
				Back:       domain.FlashcardBack{Answer: "A"},
				Category:   "Cardiologie",
				Difficulty: domain.DifficultyEasy,
			},
		},
		Metadata: domain.GenerationMetadata{Subject: "Cardiologie", TotalConcepts: 1},
	}}

	require.NoError(t, writeOutcome(path, outcome))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got domain.Outcome
	require.NoError(t, json.Unmarshal(raw, &got))
	require.NotNil(t, got.Result)
	assert.Equal(t, "Cardiologie", got.Result.Metadata.Subject)
	assert.Len(t, got.Result.Flashcards, 1)
	assert.Nil(t, got.Thematic)
}

func TestStageLabels(t *testing.T) {
	running := []domain.Stage{
		domain.StageAdmitted,
		domain.StageRasterizing,
		domain.StageOptimizing,
		domain.StageGuardChecked,
		domain.StageGenerating,
		domain.StageValidated,
		domain.StagePersisting,
	}
	for _, s := range running {
		assert.NotEmpty(t, stageLabels[s], "stage %s", s)
	}
}

func TestRootRegistersCommands(t *testing.T) {
	for _, name := range []string{"generate", "migrate", "thematics", "serve"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestCardsBarCoversLargestGeneration(t *testing.T) {
	assert.GreaterOrEqual(t, cardsBarTotal, validation.MaxFlashcards)
	assert.Greater(t, cardsBarTotal, validation.MinFlashcards)
}
