package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
)

// OptimizerOptions bounds the encoded page images.
type OptimizerOptions struct {
	MaxWidth  int
	Quality   int
	BatchSize int
}

// Optimizer downscales raw pages and re-encodes them as base64 JPEG.
type Optimizer struct {
	opts   OptimizerOptions
	logger *observability.Logger
}

func NewOptimizer(opts OptimizerOptions, logger *observability.Logger) *Optimizer {
	if opts.BatchSize < 1 {
		opts.BatchSize = 5
	}
	return &Optimizer{opts: opts, logger: logger.WithComponent("optimizer")}
}

// Optimize encodes pages in groups of BatchSize, concurrently within a group.
// Output order follows input order. Each raw file is removed as soon as its
// encoding is done.
func (o *Optimizer) Optimize(ctx context.Context, pages []domain.RawPage) ([]domain.PageImage, error) {
	start := time.Now()
	out := make([]domain.PageImage, len(pages))

	for lo := 0; lo < len(pages); lo += o.opts.BatchSize {
		hi := min(lo+o.opts.BatchSize, len(pages))

		g, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			page := pages[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				encoded, err := o.encode(page.Path)
				if err != nil {
					return domain.ConversionFailed(fmt.Sprintf("failed to optimize page %d", page.PageIndex+1), err)
				}
				if err := os.Remove(page.Path); err != nil {
					o.logger.Warn().Err(err).Str("path", page.Path).Msg("failed to remove raw page")
				}
				out[i] = domain.PageImage{
					PageIndex: page.PageIndex,
					Data:      encoded,
					MimeType:  domain.ImageMimeType,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		o.logger.Debug().Int("from", lo).Int("to", hi).Msg("batch optimized")
	}

	o.logger.Info().Int("pages", len(out)).Dur("duration", time.Since(start)).Msg("pages optimized")
	return out, nil
}

func (o *Optimizer) encode(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", err
	}

	img := Fit(src, o.opts.MaxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.opts.Quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Fit downscales src to maxWidth keeping its aspect ratio. Images already
// narrow enough are returned unchanged.
func Fit(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return src
	}
	height := max(1, b.Dy()*maxWidth/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
