package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
	"github.com/Raumain/flashcards/internal/cache"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/pdf"
	"github.com/Raumain/flashcards/internal/pipeline"
)

type fakeRunner struct {
	last    pipeline.Request
	outcome *domain.Outcome
	err     error
	events  []domain.StreamEvent
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) (*domain.Outcome, error) {
	f.last = req
	return f.outcome, f.err
}

func (f *fakeRunner) Stream(ctx context.Context, req pipeline.Request) <-chan domain.StreamEvent {
	f.last = req
	ch := make(chan domain.StreamEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func sampleOutcome(persisted bool) *domain.Outcome {
	out := &domain.Outcome{Result: &domain.GenerationResult{
		Flashcards: []domain.GeneratedFlashcard{{ID: "c1", Difficulty: domain.DifficultyEasy}},
		Metadata:   domain.GenerationMetadata{Subject: "Cardiologie", TotalConcepts: 1},
		PageImages: []domain.PageImage{{PageIndex: 0, Data: "aGVsbG8=", MimeType: domain.ImageMimeType}},
	}}
	if persisted {
		out.Thematic = &domain.Thematic{ID: uuid.New(), UserID: "alice", Name: "Cardiologie"}
		out.Flashcards = []domain.Flashcard{{ID: uuid.New(), UserID: "alice"}}
	}
	return out
}

func uploadRequest(t *testing.T, path, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="cours.pdf"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	return req
}

func newStatsCache() *StatsCache {
	return NewStatsCache(cache.NewMemoryClient(100), time.Minute, observability.NewNop())
}

func newGenerateHandler(runner Runner) *GenerateHandler {
	return NewGenerateHandler(observability.NewNop(), runner, pdf.NewValidator(1024*1024), newStatsCache(), 1024*1024)
}

var uploadPDF = []byte("%PDF-1.4\n% upload\n")

func TestGenerate(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		runner := &fakeRunner{outcome: sampleOutcome(false)}
		rec := httptest.NewRecorder()
		newGenerateHandler(runner).Generate(rec, uploadRequest(t, "/api/v1/generate", "file", "application/pdf", uploadPDF))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		data := body["data"].(map[string]any)
		assert.Len(t, data["flashcards"], 1)
		assert.Len(t, data["pageImages"], 1)
		assert.NotContains(t, body, "thematic")

		assert.Equal(t, "10.0.0.1", runner.last.ClientKey)
		assert.Equal(t, "cours.pdf", runner.last.FileName)
		assert.Empty(t, runner.last.UserID)
		assert.Equal(t, uploadPDF, runner.last.PDF)
	})

	t.Run("authenticated", func(t *testing.T) {
		runner := &fakeRunner{outcome: sampleOutcome(true)}
		req := uploadRequest(t, "/api/v1/generate", "pdf", "application/pdf", uploadPDF)
		req = req.WithContext(middleware.WithUser(req.Context(), &middleware.User{ID: "alice"}))
		rec := httptest.NewRecorder()
		newGenerateHandler(runner).Generate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "thematic")
		assert.Contains(t, body, "metadata")
		assert.Len(t, body["pageImages"], 1)
		assert.NotContains(t, body, "data")
		assert.Equal(t, "alice", runner.last.UserID)
	})
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		contentType string
		runErr      error
		status      int
		code        string
		retryAfter  string
	}{
		{"wrong type", "file", "text/plain", nil, http.StatusBadRequest, pipeline.CodeInvalidFile, ""},
		{"missing file", "other", "application/pdf", nil, http.StatusBadRequest, pipeline.CodeInvalidFile, ""},
		{"rate limited", "file", "application/pdf", domain.RateLimited("Trop de requêtes. Veuillez réessayer plus tard.", 42), http.StatusTooManyRequests, pipeline.CodeRateLimited, "42"},
		{"payload", "file", "application/pdf", domain.PayloadTooLarge("trop gros"), http.StatusRequestEntityTooLarge, pipeline.CodePayloadTooLarge, ""},
		{"timeout", "file", "application/pdf", domain.Timeout("x", nil), http.StatusGatewayTimeout, pipeline.CodeTimeout, ""},
		{"model", "file", "application/pdf", domain.GenerationFailed("x", nil), http.StatusBadGateway, pipeline.CodeAI, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.runErr}
			rec := httptest.NewRecorder()
			newGenerateHandler(runner).Generate(rec, uploadRequest(t, "/api/v1/generate", tt.field, tt.contentType, uploadPDF))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestGenerateFileTooLarge(t *testing.T) {
	runner := &fakeRunner{outcome: sampleOutcome(false)}
	h := NewGenerateHandler(observability.NewNop(), runner, pdf.NewValidator(10), newStatsCache(), 10)
	rec := httptest.NewRecorder()
	h.Generate(rec, uploadRequest(t, "/api/v1/generate", "file", "application/pdf", uploadPDF))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), pipeline.CodeFileTooLarge)
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		out []sseEvent
		cur sseEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			out = append(out, cur)
			cur = sseEvent{}
		}
	}
	return out
}

func TestStream(t *testing.T) {
	partial := domain.PartialResult{Flashcards: []domain.GeneratedFlashcard{{ID: "c1"}}}
	runner := &fakeRunner{events: []domain.StreamEvent{
		{Type: domain.EventStage, Stage: domain.StageAdmitted},
		{Type: domain.EventStage, Stage: domain.StageGenerating},
		{Type: domain.EventPartial, Stage: domain.StageGenerating, Partial: &partial},
		{Type: domain.EventComplete, Stage: domain.StageComplete, Outcome: sampleOutcome(false)},
	}}

	rec := httptest.NewRecorder()
	newGenerateHandler(runner).Stream(rec, uploadRequest(t, "/api/v1/generate/stream", "file", "application/pdf", uploadPDF))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "stage", events[0].name)
	assert.Contains(t, events[0].data, `"admitted"`)
	assert.Equal(t, "partial", events[2].name)
	assert.Equal(t, "complete", events[3].name)
	assert.Contains(t, events[3].data, `"success":true`)
}

func TestStreamErrorAfterStart(t *testing.T) {
	runner := &fakeRunner{events: []domain.StreamEvent{
		{Type: domain.EventStage, Stage: domain.StageAdmitted},
		{Type: domain.EventError, Stage: domain.StageFailed, Err: domain.ContentFiltered("Content was filtered by safety settings.", nil)},
	}}

	rec := httptest.NewRecorder()
	newGenerateHandler(runner).Stream(rec, uploadRequest(t, "/api/v1/generate/stream", "file", "application/pdf", uploadPDF))

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].name)
	var apiErr pipeline.APIError
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &apiErr))
	assert.Equal(t, pipeline.CodeAI, apiErr.Code)
}

func TestStreamRateLimitedBeforeStart(t *testing.T) {
	runner := &fakeRunner{events: []domain.StreamEvent{
		{Type: domain.EventError, Stage: domain.StageFailed, Err: domain.RateLimited("Trop de requêtes. Veuillez réessayer plus tard.", 7)},
	}}

	rec := httptest.NewRecorder()
	newGenerateHandler(runner).Stream(rec, uploadRequest(t, "/api/v1/generate/stream", "file", "application/pdf", uploadPDF))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"retryAfter":7`)
}

func TestGenerateInvalidatesMetrics(t *testing.T) {
	persisted := sampleOutcome(true)
	tests := []struct {
		name     string
		path     string
		user     string
		runner   *fakeRunner
		stream   bool
		keepsHit bool
	}{
		{"persisted run", "/api/v1/generate", "alice", &fakeRunner{outcome: persisted}, false, false},
		{"persisted stream", "/api/v1/generate/stream", "alice", &fakeRunner{events: []domain.StreamEvent{
			{Type: domain.EventStage, Stage: domain.StageAdmitted},
			{Type: domain.EventComplete, Outcome: persisted},
		}}, true, false},
		{"anonymous run", "/api/v1/generate", "", &fakeRunner{outcome: sampleOutcome(false)}, false, true},
		{"failed stream", "/api/v1/generate/stream", "alice", &fakeRunner{events: []domain.StreamEvent{
			{Type: domain.EventStage, Stage: domain.StageAdmitted},
			{Type: domain.EventError, Err: domain.Timeout("x", nil)},
		}}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			stats := newStatsCache()
			stats.set(ctx, "alice", &domain.DashboardMetrics{TotalFlashcards: 3})
			h := NewGenerateHandler(observability.NewNop(), tt.runner, pdf.NewValidator(1024*1024), stats, 1024*1024)

			req := uploadRequest(t, tt.path, "file", "application/pdf", uploadPDF)
			if tt.user != "" {
				req = req.WithContext(middleware.WithUser(req.Context(), &middleware.User{ID: tt.user}))
			}
			rec := httptest.NewRecorder()
			if tt.stream {
				h.Stream(rec, req)
			} else {
				h.Generate(rec, req)
			}
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			_, hit := stats.get(ctx, "alice")
			assert.Equal(t, tt.keepsHit, hit)
		})
	}
}
