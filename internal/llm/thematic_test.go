package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/validation"
)

func TestParseThematic(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		color   string
		wantErr bool
	}{
		{
			name:  "valid",
			input: `{"name":"Cardiologie","description":"Le coeur","color":"#EF4444","icon":"❤️"}`,
			want:  "Cardiologie",
			color: "#EF4444",
		},
		{
			name:  "fenced with defaults",
			input: "```json\n{\"name\":\"  Neurologie \",\"description\":\"\",\"color\":\"\",\"icon\":\"\"}\n```",
			want:  "Neurologie",
			color: validation.DefaultThematicColor,
		},
		{
			name:    "not json",
			input:   "je ne sais pas",
			want:    "Document médical",
			color:   validation.DefaultThematicColor,
			wantErr: true,
		},
		{
			name:    "bad color keeps name",
			input:   `{"name":"Pneumologie","description":"x","color":"red","icon":"🫁"}`,
			want:    "Pneumologie",
			color:   validation.DefaultThematicColor,
			wantErr: true,
		},
		{
			name:    "empty name",
			input:   `{"name":"","description":"x","color":"#000000","icon":"x"}`,
			want:    "Document médical",
			color:   validation.DefaultThematicColor,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseThematic(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got.Name)
			assert.Equal(t, tt.color, got.Color)
		})
	}
}

func TestParseThematicTruncatesLongName(t *testing.T) {
	long := strings.Repeat("é", 150)
	got, err := parseThematic(`{"name":"` + long + `","color":"nope"}`)
	require.Error(t, err)
	assert.Equal(t, 100, len([]rune(got.Name)))
}

func TestExtractWithoutKeyReturnsDefault(t *testing.T) {
	e, err := NewThematicExtractor(ThematicOptions{}, observability.NewNop())
	require.NoError(t, err)

	got := e.Extract(context.Background(), testImages(3))
	assert.Equal(t, validation.DefaultThematic(), got)
}
