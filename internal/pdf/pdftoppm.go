package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Raumain/flashcards/internal/domain"
)

const missingPdftoppm = "pdftoppm (poppler-utils) is required but not installed. Please install poppler-utils: https://poppler.freedesktop.org/"

const probeTimeout = 10 * time.Second

// PdftoppmEngine renders pages by running poppler's pdftoppm.
type PdftoppmEngine struct {
	binary string

	mu        sync.Mutex
	checked   bool
	available bool
}

// NewPdftoppmEngine creates an engine running binary (defaults to "pdftoppm").
func NewPdftoppmEngine(binary string) *PdftoppmEngine {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PdftoppmEngine{binary: binary}
}

func (e *PdftoppmEngine) Name() string { return "pdftoppm" }

// Check reports whether the binary can be invoked. The probe runs detached
// from the caller's cancellation and only a completed probe is cached.
func (e *PdftoppmEngine) Check(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.checked {
		available, done := e.probe(ctx)
		if !done {
			return domain.MissingDependency("pdftoppm did not answer in time", nil)
		}
		e.checked, e.available = true, available
	}
	if !e.available {
		return domain.MissingDependency(missingPdftoppm, nil)
	}
	return nil
}

// probe runs pdftoppm -v. done is false when the probe timed out.
func (e *PdftoppmEngine) probe(ctx context.Context) (available, done bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, "-v")
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() != nil {
		return false, false
	}
	// pdftoppm -v prints its version on stderr and some builds exit 99.
	return err == nil || strings.Contains(stderr.String(), "pdftoppm"), true
}

// Render writes prefix-N.png for the first opts.MaxPages pages of pdfPath.
func (e *PdftoppmEngine) Render(ctx context.Context, pdfPath, prefix string, opts domain.RasterOptions) error {
	args := []string{
		"-png",
		"-r", strconv.Itoa(opts.Density),
		"-l", strconv.Itoa(opts.MaxPages),
		pdfPath,
		prefix,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return domain.ConversionFailed("La conversion du PDF a échoué",
			fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return nil
}
