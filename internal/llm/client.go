// Package llm talks to the vision models that generate flashcards and
// thematic labels.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/validation"
)

const (
	defaultBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel      = "google/gemini-2.0-flash-001"
	defaultTimeout    = 180 * time.Second
	defaultRetryAfter = 60
	maxErrorBody      = 4096
)

// Options configures the generation client.
type Options struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	Retry             RetryConfig
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client generates flashcards through an OpenAI-compatible chat completions
// endpoint with streamed structured output.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	retry      RetryConfig
	limiter    *rate.Limiter
	httpClient *http.Client
	schema     json.RawMessage
	logger     *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is a text or image part of a message. System messages use a
// single text part.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// Request represents the API request structure
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Response is one streamed chunk or a full completion.
type Response struct {
	ID      string         `json:"id"`
	Choices []Choice       `json:"choices"`
	Error   *UpstreamError `json:"error,omitempty"`
}

type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// UpstreamError is the error object returned by the provider, either as the
// whole body or inside the event stream.
type UpstreamError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

func (e *UpstreamError) String() string {
	return fmt.Sprintf("%v: %s", e.Code, e.Message)
}

// NewClient creates a generation client.
func NewClient(opts Options, logger *observability.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry.InitialBackoff = DefaultRetryConfig().InitialBackoff
	}
	if opts.Retry.MaxBackoff <= 0 {
		opts.Retry.MaxBackoff = DefaultRetryConfig().MaxBackoff
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := max(opts.Burst, 1)

	schema, err := generationSchema()
	if err != nil {
		return nil, err
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		timeout:    opts.Timeout,
		retry:      opts.Retry,
		limiter:    rate.NewLimiter(limit, burst),
		httpClient: opts.HTTPClient,
		schema:     schema,
		logger:     logger.WithComponent("generation"),
	}, nil
}

// Generate blocks until the whole result is available. It drains the stream
// internally.
func (c *Client) Generate(ctx context.Context, images []domain.PageImage) (*domain.GenerationResult, error) {
	stream, err := c.GenerateStreaming(ctx, images)
	if err != nil {
		return nil, err
	}
	return stream.Result()
}

// GenerateStreaming starts a generation and returns once the upstream has
// accepted the request. The timeout runs from this call; cancelling ctx
// aborts the upstream request.
func (c *Client) GenerateStreaming(ctx context.Context, images []domain.PageImage) (domain.GenerationStream, error) {
	if c.apiKey == "" {
		return nil, domain.ConfigurationError("generation API key is not configured")
	}
	if len(images) == 0 {
		return nil, domain.GenerationFailed("No images provided for flashcard generation", nil)
	}

	body, err := json.Marshal(c.buildRequest(images))
	if err != nil {
		return nil, domain.GenerationFailed("failed to marshal request", err)
	}

	c.logger.Info().
		Int("images", len(images)).
		Int("estimated_tokens", EstimateTokens(images)).
		Str("model", c.model).
		Msg("starting flashcard generation")

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	start := time.Now()

	resp, err := c.retryWithBackoff(genCtx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(genCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("X-Title", "Medical Flashcards")
		return c.httpClient.Do(req)
	})
	if err != nil {
		cancel()
		return nil, c.contextError(ctx, genCtx, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(raw))
	}

	s := &Stream{
		partials: make(chan domain.PartialResult, 8),
		done:     make(chan struct{}),
	}
	go c.consume(ctx, genCtx, cancel, resp, len(images), start, s)
	return s, nil
}

func (c *Client) buildRequest(images []domain.PageImage) *Request {
	parts := make([]ContentPart, 0, len(images)+1)
	parts = append(parts, ContentPart{Type: "text", Text: generationInstruction})
	for _, img := range images {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: img.DataURL()},
		})
	}

	return &Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: []ContentPart{{Type: "text", Text: flashcardSystemPrompt}}},
			{Role: "user", Content: parts},
		},
		Stream: true,
		ResponseFormat: &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   "flashcard_generation",
				Schema: c.schema,
			},
		},
	}
}

// consume reads the event stream until it ends, fails or times out, pushing
// partial results as the card count grows.
func (c *Client) consume(parent, genCtx context.Context, cancel context.CancelFunc, resp *http.Response, pageCount int, start time.Time, s *Stream) {
	defer close(s.done)
	defer close(s.partials)
	defer cancel()
	defer resp.Body.Close()

	parser := NewStreamParser(resp.Body)
	var (
		text      strings.Builder
		lastCards int
		lastMeta  bool
	)

	for {
		chunk, err := parser.Next()
		if err != nil {
			s.err = c.contextError(parent, genCtx, err)
			return
		}
		if genCtx.Err() != nil {
			s.err = c.contextError(parent, genCtx, genCtx.Err())
			return
		}
		if chunk.Upstream != nil {
			s.err = classifyMessage(chunk.Upstream.String(), nil)
			return
		}
		if isFiltered(chunk.FinishReason) {
			s.err = domain.ContentFiltered("Content was filtered by safety settings.", errors.New(chunk.FinishReason))
			return
		}

		if chunk.Content != "" {
			text.WriteString(chunk.Content)
			if partial, ok := parsePartial(text.String()); ok {
				hasMeta := partial.Metadata != nil
				if len(partial.Flashcards) > lastCards || (hasMeta && !lastMeta) {
					lastCards, lastMeta = len(partial.Flashcards), lastMeta || hasMeta
					select {
					case s.partials <- *partial:
					case <-genCtx.Done():
						s.err = c.contextError(parent, genCtx, genCtx.Err())
						return
					}
				}
			}
		}

		if chunk.Done {
			break
		}
	}

	result, err := decodeResult(text.String(), pageCount)
	if err != nil {
		s.err = err
		return
	}
	c.logger.Info().
		Int("flashcards", len(result.Flashcards)).
		Dur("duration", time.Since(start)).
		Msg("generation completed")
	s.result = result
}

// contextError maps transport errors once the context is involved: our own
// deadline is a Timeout, anything else a generation failure.
func (c *Client) contextError(parent, genCtx context.Context, err error) error {
	if errors.Is(genCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return domain.Timeout(
			fmt.Sprintf("AI generation timed out after %ds", int(c.timeout.Seconds())), err)
	}
	if parent.Err() != nil {
		return domain.GenerationFailed("generation cancelled", parent.Err())
	}
	return domain.GenerationFailed("Failed to generate flashcards", err)
}

func decodeResult(text string, pageCount int) (*domain.GenerationResult, error) {
	var result domain.GenerationResult
	if err := json.Unmarshal([]byte(extractObject(text)), &result); err != nil {
		return nil, domain.GenerationFailed("model output is not valid JSON", err)
	}
	for i := range result.Flashcards {
		if result.Flashcards[i].ID == "" {
			result.Flashcards[i].ID = uuid.NewString()
		}
	}
	if err := validation.GenerationResult(&result, pageCount); err != nil {
		return nil, err
	}
	return &result, nil
}

func isFiltered(finishReason string) bool {
	switch strings.ToUpper(finishReason) {
	case "CONTENT_FILTER", "SAFETY", "BLOCKED":
		return true
	}
	return false
}

func classifyStatus(status int, retryAfter, body string) error {
	if status == http.StatusTooManyRequests {
		return domain.RateLimited("API rate limit exceeded. Please try again later.", parseRetryAfter(retryAfter))
	}
	return classifyMessage(body, fmt.Errorf("upstream status %d", status))
}

func classifyMessage(msg string, cause error) error {
	upper := strings.ToUpper(msg)
	detail := errors.New(truncate(msg, 512))
	if cause != nil {
		detail = fmt.Errorf("%w: %s", cause, truncate(msg, 512))
	}
	switch {
	case strings.Contains(upper, "RATE_LIMIT"):
		return domain.RateLimited("API rate limit exceeded. Please try again later.", defaultRetryAfter)
	case strings.Contains(upper, "SAFETY"), strings.Contains(msg, "blocked"):
		return domain.ContentFiltered("Content was filtered by safety settings.", detail)
	default:
		return domain.GenerationFailed("Failed to generate flashcards", detail)
	}
}

func parseRetryAfter(v string) int {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return secs
	}
	if at, err := http.ParseTime(v); err == nil {
		if secs := int(math.Ceil(time.Until(at).Seconds())); secs > 0 {
			return secs
		}
	}
	return defaultRetryAfter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// EstimateTokens approximates the prompt cost of images: 258 tokens per
// 50KB tile.
func EstimateTokens(images []domain.PageImage) int {
	if len(images) == 0 {
		return 0
	}
	avgKB := float64(PayloadBytes(images)) / float64(len(images)) / 1024
	tiles := max(1, int(math.Ceil(avgKB/50)))
	return len(images) * tiles * 258
}

// PayloadBytes is the decoded size of the base64 image data.
func PayloadBytes(images []domain.PageImage) int {
	total := 0
	for _, img := range images {
		total += len(img.Data) * 3 / 4
	}
	return total
}

// Stream is the GenerationStream returned by the client.
type Stream struct {
	partials chan domain.PartialResult
	done     chan struct{}
	result   *domain.GenerationResult
	err      error
}

// Partials yields snapshots until the generation ends. The channel is closed
// before Result becomes available.
func (s *Stream) Partials() <-chan domain.PartialResult {
	return s.partials
}

// Result drains any unread partials, then returns the validated result.
func (s *Stream) Result() (*domain.GenerationResult, error) {
	for range s.partials {
	}
	<-s.done
	return s.result, s.err
}
