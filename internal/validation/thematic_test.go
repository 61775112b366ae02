package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raumain/flashcards/internal/domain"
)

func TestThematicDraft(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		d, err := ThematicDraft(domain.ThematicDraft{Name: "  Cardiologie "})
		require.NoError(t, err)
		assert.Equal(t, "Cardiologie", d.Name)
		assert.Equal(t, DefaultThematicColor, d.Color)
		assert.Equal(t, DefaultThematicIcon, d.Icon)
	})

	tests := []struct {
		name  string
		draft domain.ThematicDraft
	}{
		{"empty name", domain.ThematicDraft{Name: ""}},
		{"long name", domain.ThematicDraft{Name: strings.Repeat("n", 101)}},
		{"long description", domain.ThematicDraft{Name: "x", Description: strings.Repeat("d", 501)}},
		{"bad color", domain.ThematicDraft{Name: "x", Color: "red"}},
		{"short hex", domain.ThematicDraft{Name: "x", Color: "#FFF"}},
		{"long icon", domain.ThematicDraft{Name: "x", Icon: "abcdefghijk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ThematicDraft(tt.draft)
			assert.Equal(t, domain.KindValidationFailed, domain.KindOf(err))
		})
	}
}

func TestThematicUpdate(t *testing.T) {
	name := "Neurologie"
	color := "#6366F1"
	require.NoError(t, ThematicUpdate(domain.ThematicUpdate{Name: &name, Color: &color}))
	require.NoError(t, ThematicUpdate(domain.ThematicUpdate{}))

	blank := " "
	assert.Error(t, ThematicUpdate(domain.ThematicUpdate{Name: &blank}))

	bad := "#GGGGGG"
	assert.Error(t, ThematicUpdate(domain.ThematicUpdate{Color: &bad}))

	empty := ""
	assert.Error(t, ThematicUpdate(domain.ThematicUpdate{Icon: &empty}))
}

func TestDefaultThematic(t *testing.T) {
	d, err := ThematicDraft(DefaultThematic())
	require.NoError(t, err)
	assert.Equal(t, "Document médical", d.Name)
}
