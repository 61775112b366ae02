package pipeline

import (
	"net/http"

	"github.com/Raumain/flashcards/internal/domain"
)

// Error codes surfaced to API callers.
const (
	CodeInvalidFile     = "INVALID_FILE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeProcessing      = "PROCESSING_ERROR"
	CodeAI              = "AI_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
)

const timeoutMessage = "La génération a pris trop de temps. Essayez avec un PDF plus court."

// APIError is the error object of a failed response envelope. It never
// carries internal error text beyond the kind's message.
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RetryAfter int            `json:"retryAfter,omitempty"`
	Retryable  bool           `json:"retryable"`

	Status int `json:"-"`
}

// ToAPIError maps err onto a stable code, message and HTTP status.
func ToAPIError(err error) *APIError {
	de, ok := domain.AsError(err)
	if !ok {
		return &APIError{
			Code:      CodeProcessing,
			Message:   "Une erreur inattendue est survenue",
			Retryable: true,
			Status:    http.StatusInternalServerError,
		}
	}

	out := &APIError{
		Message:   de.Message,
		Details:   de.Details,
		Retryable: domain.IsRetryable(de.Kind),
	}

	switch de.Kind {
	case domain.KindInvalidInput, domain.KindEmptyDocument:
		out.Code, out.Status = CodeInvalidFile, http.StatusBadRequest
	case domain.KindFileTooLarge:
		out.Code, out.Status = CodeFileTooLarge, http.StatusRequestEntityTooLarge
	case domain.KindPayloadTooLarge:
		out.Code, out.Status = CodePayloadTooLarge, http.StatusRequestEntityTooLarge
	case domain.KindMissingDependency, domain.KindConversionFailed,
		domain.KindPersistenceFailed, domain.KindInternal:
		out.Code, out.Status = CodeProcessing, http.StatusInternalServerError
	case domain.KindConfiguration, domain.KindContentFiltered,
		domain.KindGenerationFailed, domain.KindValidationFailed:
		out.Code, out.Status = CodeAI, http.StatusBadGateway
	case domain.KindTimeout:
		out.Code, out.Status = CodeTimeout, http.StatusGatewayTimeout
		out.Message = timeoutMessage
	case domain.KindRateLimited:
		out.Code, out.Status = CodeRateLimited, http.StatusTooManyRequests
		out.RetryAfter = max(de.RetryAfter, 1)
	case domain.KindNotFound:
		out.Code, out.Status = CodeNotFound, http.StatusNotFound
	case domain.KindUnauthorized:
		out.Code, out.Status = CodeUnauthorized, http.StatusUnauthorized
	default:
		out.Code, out.Status = CodeProcessing, http.StatusInternalServerError
	}
	return out
}
