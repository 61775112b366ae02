package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/pdf"
	"github.com/Raumain/flashcards/internal/pipeline"
	"github.com/Raumain/flashcards/internal/ratelimit"
)

const multipartMemory = 32 << 20

// Runner executes the generation pipeline. See pipeline.Service.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*domain.Outcome, error)
	Stream(ctx context.Context, req pipeline.Request) <-chan domain.StreamEvent
}

// GenerateHandler turns uploaded PDFs into flashcards.
type GenerateHandler struct {
	logger    *observability.Logger
	runner    Runner
	validator *pdf.Validator
	stats     *StatsCache
	maxSize   int64
}

func NewGenerateHandler(logger *observability.Logger, runner Runner, validator *pdf.Validator, stats *StatsCache, maxSize int64) *GenerateHandler {
	return &GenerateHandler{
		logger:    logger.WithComponent("generate"),
		runner:    runner,
		validator: validator,
		stats:     stats,
		maxSize:   maxSize,
	}
}

// persisted drops the caller's cached metrics when a run stored cards.
func (h *GenerateHandler) persisted(ctx context.Context, req pipeline.Request, out *domain.Outcome) {
	if out == nil || out.Thematic == nil || req.UserID == "" {
		return
	}
	h.stats.Invalidate(ctx, req.UserID)
}

// generateResponse is the success body. Anonymous runs nest the generation
// under data; persisted runs return the stored thematic and cards.
type generateResponse struct {
	Success    bool                       `json:"success"`
	Data       *domain.GenerationResult   `json:"data,omitempty"`
	Thematic   *domain.Thematic           `json:"thematic,omitempty"`
	Flashcards []domain.Flashcard         `json:"flashcards,omitempty"`
	Metadata   *domain.GenerationMetadata `json:"metadata,omitempty"`
	PageImages []domain.PageImage         `json:"pageImages,omitempty"`
}

func toResponse(out *domain.Outcome) generateResponse {
	if out.Thematic == nil {
		return generateResponse{Success: true, Data: out.Result}
	}
	return generateResponse{
		Success:    true,
		Thematic:   out.Thematic,
		Flashcards: out.Flashcards,
		Metadata:   &out.Result.Metadata,
		PageImages: out.Result.PageImages,
	}
}

// Generate handles POST /api/v1/generate.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.runner.Run(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.persisted(r.Context(), req, out)
	writeJSON(w, http.StatusOK, toResponse(out))
}

// Stream handles POST /api/v1/generate/stream with Server-Sent Events.
// Admission failures are answered with a plain error response so RATE_LIMITED
// keeps its 429 status and Retry-After header.
func (h *GenerateHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, h.logger, domain.Internal("streaming unsupported", nil))
		return
	}

	req, err := h.readRequest(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	events := h.runner.Stream(r.Context(), req)
	first, ok := <-events
	if !ok {
		return
	}
	if first.Type == domain.EventError {
		writeError(w, r, h.logger, first.Err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(ev domain.StreamEvent) error {
		if err := writeEvent(w, ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ev, open := first, true
	for open {
		if ev.Type == domain.EventComplete {
			h.persisted(context.WithoutCancel(r.Context()), req, ev.Outcome)
		}
		if err := send(ev); err != nil {
			h.logger.WithRequest(r.Context()).Debug().Err(err).Msg("client went away")
			for rest := range events {
				if rest.Type == domain.EventComplete {
					h.persisted(context.WithoutCancel(r.Context()), req, rest.Outcome)
				}
			}
			return
		}
		ev, open = <-events
	}
}

func writeEvent(w io.Writer, ev domain.StreamEvent) error {
	var payload any
	switch ev.Type {
	case domain.EventStage:
		payload = map[string]any{"stage": ev.Stage, "timestamp": ev.Timestamp}
	case domain.EventPartial:
		payload = ev.Partial
	case domain.EventComplete:
		payload = toResponse(ev.Outcome)
	case domain.EventError:
		payload = pipeline.ToAPIError(ev.Err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

// readRequest extracts the uploaded PDF. The part is named "file"; "pdf" is
// accepted for older clients.
func (h *GenerateHandler) readRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pipeline.Request{}, domain.FileTooLarge(fmt.Sprintf("le fichier dépasse la taille maximale de %d Mo", h.maxSize/(1024*1024)))
		}
		return pipeline.Request{}, domain.InvalidInput("formulaire multipart invalide", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := formFile(r, "file", "pdf")
	if err != nil {
		return pipeline.Request{}, domain.InvalidInput("aucun fichier PDF fourni", err)
	}
	defer file.Close()

	if err := h.validator.ValidateUpload(header.Header.Get("Content-Type"), header.Size); err != nil {
		return pipeline.Request{}, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Request{}, domain.InvalidInput("lecture du fichier impossible", err)
	}

	return pipeline.Request{
		ClientKey: ratelimit.ClientKey(r),
		UserID:    middleware.UserID(r.Context()),
		FileName:  header.Filename,
		PDF:       data,
	}, nil
}

func formFile(r *http.Request, names ...string) (multipart.File, *multipart.FileHeader, error) {
	err := http.ErrMissingFile
	for _, name := range names {
		var (
			file   multipart.File
			header *multipart.FileHeader
		)
		file, header, err = r.FormFile(name)
		if err == nil {
			return file, header, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, nil, err
		}
	}
	return nil, nil, err
}
