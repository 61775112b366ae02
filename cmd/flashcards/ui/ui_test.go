package ui

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressBarSet(t *testing.T) {
	errOut = io.Discard

	bar := NewProgressBar(100, "Flashcards")
	bar.Set(9)
	assert.Equal(t, int64(100), bar.max)

	bar.Set(120)
	assert.Equal(t, int64(120), bar.max)
	bar.Finish()
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1540 * time.Millisecond, "1.5s"},
		{90400 * time.Millisecond, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}
