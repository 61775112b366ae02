package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/validation"
)

// ThematicPages is the number of leading pages sent for thematic extraction.
const ThematicPages = 2

// ThematicOptions configures the thematic extractor.
type ThematicOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Pages   int
}

// ThematicExtractor derives a thematic label from the first pages of a
// document. It never fails: every error degrades to the default thematic.
type ThematicExtractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	pages   int
	schema  map[string]any
	logger  *observability.Logger
}

func NewThematicExtractor(opts ThematicOptions, logger *observability.Logger) (*ThematicExtractor, error) {
	schema, err := thematicSchema()
	if err != nil {
		return nil, err
	}
	if opts.Model == "" {
		opts.Model = string(shared.ChatModelGPT4oMini)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Pages <= 0 {
		opts.Pages = ThematicPages
	}

	e := &ThematicExtractor{
		model:   opts.Model,
		timeout: opts.Timeout,
		pages:   opts.Pages,
		schema:  schema,
		logger:  logger.WithComponent("thematic"),
	}
	if opts.APIKey != "" {
		reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
		if opts.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
		}
		client := openai.NewClient(reqOpts...)
		e.client = &client
	}
	return e, nil
}

// Extract returns the thematic for the given pages, or the default thematic
// when the model is unavailable or answers with something unusable.
func (e *ThematicExtractor) Extract(ctx context.Context, images []domain.PageImage) domain.ThematicDraft {
	if e.client == nil {
		e.logger.Debug().Msg("thematic extraction disabled, using default")
		return validation.DefaultThematic()
	}
	if len(images) == 0 {
		return validation.DefaultThematic()
	}
	if len(images) > e.pages {
		images = images[:e.pages]
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	content := responses.ResponseInputMessageContentListParam{
		responses.ResponseInputContentParamOfInputText(thematicExtractionPrompt),
	}
	for _, img := range images {
		content = append(content, responses.ResponseInputContentUnionParam{
			OfInputImage: &responses.ResponseInputImageParam{
				ImageURL: openai.String(img.DataURL()),
				Detail:   responses.ResponseInputImageDetailLow,
			},
		})
	}

	response, err := e.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: shared.ChatModel(e.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, "user"),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema("thematic", e.schema),
		},
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("thematic extraction failed, using default")
		return validation.DefaultThematic()
	}

	return e.parse(response.OutputText())
}

func (e *ThematicExtractor) parse(text string) domain.ThematicDraft {
	draft, err := parseThematic(text)
	if err != nil {
		e.logger.Warn().Err(err).Str("name", draft.Name).Msg("unusable thematic answer, using default")
	}
	return draft
}

// parseThematic decodes a model answer. On a decoding error it returns the
// default thematic; on a validation error it returns the default but keeps
// the decoded name when there is one. The error is returned for logging.
func parseThematic(text string) (domain.ThematicDraft, error) {
	var out thematicOutput
	if err := json.Unmarshal([]byte(extractObject(text)), &out); err != nil {
		return validation.DefaultThematic(), domain.ValidationFailed("thematic answer is not valid JSON", []string{err.Error()})
	}

	draft, err := validation.ThematicDraft(domain.ThematicDraft{
		Name:        out.Name,
		Description: out.Description,
		Color:       out.Color,
		Icon:        out.Icon,
	})
	if err == nil {
		return draft, nil
	}

	fallback := validation.DefaultThematic()
	if name := validation.TruncateName(out.Name); name != "" {
		fallback.Name = name
	}
	return fallback, err
}
