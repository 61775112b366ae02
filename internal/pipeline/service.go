// Package pipeline sequences a PDF through rasterization, optimization, the
// payload guard, generation and optional persistence.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
	"github.com/Raumain/flashcards/internal/pdf"
)

// Admitter gates entry per client. See ratelimit.Limiter.
type Admitter interface {
	Admit(ctx context.Context, key string) (func(), error)
}

// Persister stores a generation for its owner. See reconcile.Reconciler.
type Persister interface {
	Reconcile(ctx context.Context, images []domain.PageImage, result *domain.GenerationResult, ownerID, fileName string) (*domain.Thematic, []domain.Flashcard, error)
}

// Request is one PDF submitted for generation.
type Request struct {
	ClientKey string
	// UserID is empty for anonymous runs, which are never persisted.
	UserID   string
	FileName string
	PDF      []byte
}

// Options bounds a run.
type Options struct {
	Raster     domain.RasterOptions
	MaxPayload int
}

// Service runs the generation pipeline.
type Service struct {
	admitter   Admitter
	rasterizer domain.Rasterizer
	optimizer  domain.Optimizer
	generator  domain.Generator
	persister  Persister
	opts       Options
	logger     *observability.Logger
}

func NewService(
	admitter Admitter,
	rasterizer domain.Rasterizer,
	optimizer domain.Optimizer,
	generator domain.Generator,
	persister Persister,
	opts Options,
	logger *observability.Logger,
) *Service {
	return &Service{
		admitter:   admitter,
		rasterizer: rasterizer,
		optimizer:  optimizer,
		generator:  generator,
		persister:  persister,
		opts:       opts,
		logger:     logger.WithComponent("pipeline"),
	}
}

// Run executes the pipeline and returns its outcome. Authenticated requests
// are persisted; anonymous ones only return the generation.
func (s *Service) Run(ctx context.Context, req Request) (*domain.Outcome, error) {
	return s.run(ctx, req, nil)
}

// Stream executes the pipeline in the background and reports stage changes,
// partial results and the final outcome or error. The channel is closed when
// the run ends; cancelling ctx stops the run and closes it.
func (s *Service) Stream(ctx context.Context, req Request) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, 16)

	go func() {
		defer close(events)

		emit := func(ev domain.StreamEvent) bool {
			ev.Timestamp = time.Now()
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		outcome, err := s.run(ctx, req, emit)
		if err != nil {
			emit(domain.StreamEvent{Type: domain.EventError, Stage: domain.StageFailed, Err: err})
			return
		}
		emit(domain.StreamEvent{Type: domain.EventComplete, Stage: domain.StageComplete, Outcome: outcome})
	}()

	return events
}

// run is the state machine shared by Run and Stream. emit is nil for
// one-shot runs.
func (s *Service) run(ctx context.Context, req Request, emit func(domain.StreamEvent) bool) (outcome *domain.Outcome, err error) {
	log := s.logger.WithRequest(ctx).WithClient(req.ClientKey).WithUser(req.UserID)
	start := time.Now()
	stage := domain.StageIdle

	enter := func(next domain.Stage) {
		stage = next
		log.Debug().Str("stage", string(next)).Dur("elapsed", time.Since(start)).Msg("pipeline stage")
		if emit != nil {
			emit(domain.StreamEvent{Type: domain.EventStage, Stage: next})
		}
	}

	defer func() {
		if err == nil {
			log.Info().
				Int("flashcards", len(outcome.Result.Flashcards)).
				Int("pages", len(outcome.Result.PageImages)).
				Bool("persisted", outcome.Thematic != nil).
				Dur("duration", time.Since(start)).
				Msg("generation completed")
			return
		}
		err = normalize(stage, err)
		log.Warn().
			Str("stage", string(stage)).
			Str("kind", string(domain.KindOf(err))).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("generation failed")
	}()

	release, err := s.admitter.Admit(ctx, req.ClientKey)
	if err != nil {
		return nil, err
	}
	defer release()
	enter(domain.StageAdmitted)

	enter(domain.StageRasterizing)
	batch, err := s.rasterizer.Rasterize(ctx, req.PDF, s.opts.Raster)
	if err != nil {
		return nil, err
	}
	defer batch.Close()

	enter(domain.StageOptimizing)
	images, err := s.optimizer.Optimize(ctx, batch.Pages())
	if err != nil {
		return nil, err
	}

	if err := pdf.CheckPayload(images, s.opts.MaxPayload); err != nil {
		return nil, err
	}
	enter(domain.StageGuardChecked)

	enter(domain.StageGenerating)
	result, err := s.generate(ctx, images, emit)
	if err != nil {
		return nil, err
	}
	result.PageImages = images
	enter(domain.StageValidated)

	outcome = &domain.Outcome{Result: result}
	if req.UserID != "" && s.persister != nil {
		enter(domain.StagePersisting)
		thematic, cards, err := s.persister.Reconcile(ctx, images, result, req.UserID, req.FileName)
		if err != nil {
			return nil, err
		}
		outcome.Thematic = thematic
		outcome.Flashcards = cards
	}

	stage = domain.StageComplete
	return outcome, nil
}

func (s *Service) generate(ctx context.Context, images []domain.PageImage, emit func(domain.StreamEvent) bool) (*domain.GenerationResult, error) {
	if emit == nil {
		return s.generator.Generate(ctx, images)
	}

	stream, err := s.generator.GenerateStreaming(ctx, images)
	if err != nil {
		return nil, err
	}
	for partial := range stream.Partials() {
		if !emit(domain.StreamEvent{Type: domain.EventPartial, Stage: domain.StageGenerating, Partial: &partial}) {
			break
		}
	}
	return stream.Result()
}

// normalize maps any error leaving the pipeline onto the error taxonomy.
// Errors that already carry a kind pass through.
func normalize(stage domain.Stage, err error) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Timeout("La génération a pris trop de temps. Essayez avec un PDF plus court.", err)
	case errors.Is(err, context.Canceled):
		return domain.Internal("request cancelled", err)
	}
	switch stage {
	case domain.StageRasterizing, domain.StageOptimizing:
		return domain.ConversionFailed("PDF conversion failed", err)
	case domain.StageGenerating:
		return domain.GenerationFailed("Failed to generate flashcards", err)
	case domain.StagePersisting:
		return domain.PersistenceFailed("Impossible d'enregistrer les flashcards", err)
	default:
		return domain.Internal("An unexpected error occurred", err)
	}
}
