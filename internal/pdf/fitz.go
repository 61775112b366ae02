package pdf

import (
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"

	"github.com/Raumain/flashcards/internal/domain"
)

// FitzEngine renders pages in-process with MuPDF through go-fitz. It writes
// the same prefix-N.png layout as pdftoppm.
type FitzEngine struct{}

func NewFitzEngine() *FitzEngine {
	return &FitzEngine{}
}

func (e *FitzEngine) Name() string { return "fitz" }

// Check always succeeds: the library is linked into the binary.
func (e *FitzEngine) Check(ctx context.Context) error {
	return nil
}

func (e *FitzEngine) Render(ctx context.Context, pdfPath, prefix string, opts domain.RasterOptions) error {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return domain.ConversionFailed("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > opts.MaxPages {
		pageCount = opts.MaxPages
	}

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, float64(opts.Density))
		if err != nil {
			return domain.ConversionFailed(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}

		outputPath := fmt.Sprintf("%s-%d.png", prefix, pageNum+1)
		out, err := os.Create(outputPath)
		if err != nil {
			return domain.ConversionFailed(fmt.Sprintf("failed to create output file for page %d", pageNum+1), err)
		}

		err = png.Encode(out, img)
		closeErr := out.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			return domain.ConversionFailed(fmt.Sprintf("failed to encode page %d", pageNum+1), err)
		}
	}

	return nil
}
