package domain

import "context"

// RasterOptions bounds the rasterization of one document.
type RasterOptions struct {
	Density  int
	MaxWidth int
	Quality  int
	MaxPages int
}

// RasterBatch is the ordered output of a rasterization. The raw pages live in
// a private working directory removed by Close.
type RasterBatch interface {
	Pages() []RawPage
	// SourcePages is the page count of the document before truncation, or 0
	// when it could not be determined.
	SourcePages() int
	Close()
}

// Rasterizer turns PDF bytes into ordered raw page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, opts RasterOptions) (RasterBatch, error)
}

// Optimizer encodes raw pages into transmission-ready page images.
type Optimizer interface {
	Optimize(ctx context.Context, pages []RawPage) ([]PageImage, error)
}

// GenerationStream yields partial results while a generation runs.
//
// Result always drains Partials before returning, so callers that only need
// the final object may call it directly.
type GenerationStream interface {
	Partials() <-chan PartialResult
	Result() (*GenerationResult, error)
}

// Generator produces flashcards from page images.
type Generator interface {
	Generate(ctx context.Context, images []PageImage) (*GenerationResult, error)
	GenerateStreaming(ctx context.Context, images []PageImage) (GenerationStream, error)
}

// ThematicExtractor derives a thematic label from the leading pages. It never
// fails: any problem yields a default draft.
type ThematicExtractor interface {
	Extract(ctx context.Context, images []PageImage) ThematicDraft
}
