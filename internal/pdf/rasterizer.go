// Package pdf turns uploaded PDF bytes into optimized page images.
package pdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
)

// Engine renders the pages of a PDF file to prefix-N.png files.
type Engine interface {
	Name() string
	Check(ctx context.Context) error
	Render(ctx context.Context, pdfPath, prefix string, opts domain.RasterOptions) error
}

var pageSuffix = regexp.MustCompile(`-(\d+)\.png$`)

// Rasterizer writes a PDF into a private working directory and renders it
// with an Engine.
type Rasterizer struct {
	engine    Engine
	validator *Validator
	logger    *observability.Logger
	tempRoot  string
}

// NewRasterizer creates a rasterizer. Working directories are created under
// the OS temp directory.
func NewRasterizer(engine Engine, validator *Validator, logger *observability.Logger) *Rasterizer {
	return &Rasterizer{
		engine:    engine,
		validator: validator,
		logger:    logger.WithComponent("rasterizer"),
		tempRoot:  os.TempDir(),
	}
}

// Check probes the engine, for readiness reporting.
func (r *Rasterizer) Check(ctx context.Context) error {
	return r.engine.Check(ctx)
}

// Rasterize renders at most opts.MaxPages pages. On success the caller owns
// the returned batch and must Close it; on failure nothing is left on disk.
func (r *Rasterizer) Rasterize(ctx context.Context, data []byte, opts domain.RasterOptions) (domain.RasterBatch, error) {
	if err := r.validator.ValidateBytes(data); err != nil {
		return nil, err
	}
	if err := r.validator.ValidateOptions(opts); err != nil {
		return nil, err
	}
	if err := r.engine.Check(ctx); err != nil {
		return nil, err
	}

	sourcePages := r.countPages(data, opts.MaxPages)

	dir := filepath.Join(r.tempRoot, "medflash-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, domain.ConversionFailed("failed to create working directory", err)
	}
	batch := &rasterBatch{dir: dir, sourcePages: sourcePages, logger: r.logger}

	pages, err := r.render(ctx, dir, data, opts)
	if err != nil {
		batch.Close()
		return nil, err
	}
	batch.pages = pages
	return batch, nil
}

func (r *Rasterizer) render(ctx context.Context, dir string, data []byte, opts domain.RasterOptions) ([]domain.RawPage, error) {
	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, domain.ConversionFailed("failed to write PDF to working directory", err)
	}

	start := time.Now()
	if err := r.engine.Render(ctx, pdfPath, filepath.Join(dir, "page"), opts); err != nil {
		return nil, err
	}

	pages, err := collectPages(dir, opts.MaxPages)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, domain.EmptyDocument("le PDF ne contient aucune page")
	}

	r.logger.Info().
		Str("engine", r.engine.Name()).
		Int("pages", len(pages)).
		Int("density", opts.Density).
		Dur("duration", time.Since(start)).
		Msg("PDF rasterized")
	return pages, nil
}

// countPages reads the total page count for truncation reporting. Failure is
// not fatal: the engine is the authority on what can be rendered.
func (r *Rasterizer) countPages(data []byte, maxPages int) int {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		r.logger.Debug().Err(err).Msg("could not read page count")
		return 0
	}
	if n > maxPages {
		r.logger.Info().Int("total_pages", n).Int("max_pages", maxPages).Msg("document truncated to page limit")
	}
	return n
}

// collectPages lists page-N.png files in dir ordered by N. Lexical order
// would put page-10 before page-2.
func collectPages(dir string, maxPages int) ([]domain.RawPage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.ConversionFailed("failed to read output files", err)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pageSuffix.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })
	if len(files) > maxPages {
		files = files[:maxPages]
	}

	pages := make([]domain.RawPage, len(files))
	for i, f := range files {
		pages[i] = domain.RawPage{PageIndex: i, Path: f.path}
	}
	return pages, nil
}

type rasterBatch struct {
	dir         string
	pages       []domain.RawPage
	sourcePages int
	logger      *observability.Logger
	closed      bool
}

func (b *rasterBatch) Pages() []domain.RawPage { return b.pages }

func (b *rasterBatch) SourcePages() int { return b.sourcePages }

// Close removes the working directory. Errors are logged, never returned.
func (b *rasterBatch) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if err := os.RemoveAll(b.dir); err != nil {
		b.logger.Warn().Err(err).Str("dir", b.dir).Msg("failed to clean up working directory")
	}
}
