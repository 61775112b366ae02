package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/observability"
)

func rawPages(t *testing.T, n, width int) []domain.RawPage {
	t.Helper()
	dir := t.TempDir()
	pages := make([]domain.RawPage, n)
	for i := range pages {
		path := filepath.Join(dir, fmt.Sprintf("page-%d.png", i+1))
		require.NoError(t, writePNG(path, width, width/2, uint8(i*10)))
		pages[i] = domain.RawPage{PageIndex: i, Path: path}
	}
	return pages
}

func decodeJPEG(t *testing.T, img domain.PageImage) image.Config {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(img.Data)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg
}

func TestOptimize_PreservesOrderAcrossBatches(t *testing.T) {
	pages := rawPages(t, 12, 64)
	o := NewOptimizer(OptimizerOptions{MaxWidth: 1024, Quality: 80, BatchSize: 5}, observability.NewNop())

	images, err := o.Optimize(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, images, 12)

	for i, img := range images {
		assert.Equal(t, i, img.PageIndex)
		assert.Equal(t, "image/jpeg", img.MimeType)
		assert.NotEmpty(t, img.Data)
	}
}

func TestOptimize_RemovesRawFiles(t *testing.T) {
	pages := rawPages(t, 3, 32)
	o := NewOptimizer(OptimizerOptions{MaxWidth: 1024, Quality: 80, BatchSize: 2}, observability.NewNop())

	_, err := o.Optimize(context.Background(), pages)
	require.NoError(t, err)
	for _, p := range pages {
		assert.NoFileExists(t, p.Path)
	}
}

func TestOptimize_DownscalesWithoutUpscaling(t *testing.T) {
	wide := rawPages(t, 1, 400)
	narrow := rawPages(t, 1, 100)
	o := NewOptimizer(OptimizerOptions{MaxWidth: 200, Quality: 80}, observability.NewNop())

	out, err := o.Optimize(context.Background(), append(wide, narrow...))
	require.NoError(t, err)

	cfg := decodeJPEG(t, out[0])
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)

	cfg = decodeJPEG(t, out[1])
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestOptimize_UnreadablePage(t *testing.T) {
	pages := []domain.RawPage{{PageIndex: 0, Path: filepath.Join(t.TempDir(), "missing.png")}}
	o := NewOptimizer(OptimizerOptions{MaxWidth: 100, Quality: 80}, observability.NewNop())

	_, err := o.Optimize(context.Background(), pages)
	assert.Equal(t, domain.KindConversionFailed, domain.KindOf(err))
}

func TestOptimize_Cancelled(t *testing.T) {
	pages := rawPages(t, 2, 16)
	o := NewOptimizer(OptimizerOptions{MaxWidth: 100, Quality: 80}, observability.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Optimize(ctx, pages)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckPayload(t *testing.T) {
	images := []domain.PageImage{
		{PageIndex: 0, Data: strings.Repeat("A", 600)},
		{PageIndex: 1, Data: strings.Repeat("B", 400)},
	}

	assert.Equal(t, 1000, PayloadSize(images))
	assert.NoError(t, CheckPayload(images, 1000))

	err := CheckPayload(images, 999)
	require.Error(t, err)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindPayloadTooLarge, de.Kind)
	assert.Equal(t, 1000, de.Details["totalBytes"])
	assert.Equal(t, 2, de.Details["imageCount"])

	// pure: same input, same decision
	assert.Equal(t, err.Error(), CheckPayload(images, 999).Error())
}
