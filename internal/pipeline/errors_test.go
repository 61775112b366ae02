package pipeline

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Raumain/flashcards/internal/domain"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"invalid input", domain.InvalidInput("bad", nil), CodeInvalidFile, http.StatusBadRequest},
		{"empty document", domain.EmptyDocument("empty"), CodeInvalidFile, http.StatusBadRequest},
		{"file too large", domain.FileTooLarge("big"), CodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{"payload too large", domain.PayloadTooLarge("big"), CodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"missing dependency", domain.MissingDependency("pdftoppm", nil), CodeProcessing, http.StatusInternalServerError},
		{"conversion", domain.ConversionFailed("x", nil), CodeProcessing, http.StatusInternalServerError},
		{"configuration", domain.ConfigurationError("no key"), CodeAI, http.StatusBadGateway},
		{"content filtered", domain.ContentFiltered("x", nil), CodeAI, http.StatusBadGateway},
		{"generation", domain.GenerationFailed("x", nil), CodeAI, http.StatusBadGateway},
		{"validation", domain.ValidationFailed("x", []string{"a"}), CodeAI, http.StatusBadGateway},
		{"timeout", domain.Timeout("x", context.DeadlineExceeded), CodeTimeout, http.StatusGatewayTimeout},
		{"rate limited", domain.RateLimited("x", 30), CodeRateLimited, http.StatusTooManyRequests},
		{"not found", domain.NotFound("x"), CodeNotFound, http.StatusNotFound},
		{"unauthorized", domain.Unauthorized("x"), CodeUnauthorized, http.StatusUnauthorized},
		{"persistence", domain.PersistenceFailed("x", nil), CodeProcessing, http.StatusInternalServerError},
		{"plain error", errors.New("secret internals"), CodeProcessing, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.Status)
			assert.NotContains(t, got.Message, "secret")
		})
	}
}

func TestToAPIErrorRateLimitedRetryAfter(t *testing.T) {
	got := ToAPIError(domain.RateLimited("x", 30))
	assert.Equal(t, 30, got.RetryAfter)
	assert.True(t, got.Retryable)

	got = ToAPIError(domain.RateLimited("x", 0))
	assert.Equal(t, 1, got.RetryAfter)
}

func TestToAPIErrorTimeoutMessage(t *testing.T) {
	got := ToAPIError(domain.Timeout("AI generation timed out after 180s", nil))
	assert.Equal(t, timeoutMessage, got.Message)
}

func TestToAPIErrorKeepsDetails(t *testing.T) {
	err := domain.PayloadTooLarge("big").WithDetails(map[string]any{"imageCount": 3})
	got := ToAPIError(err)
	assert.Equal(t, 3, got.Details["imageCount"])
}
