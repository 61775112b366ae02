package pdf

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/Raumain/flashcards/internal/domain"
)

// MimeType is the only accepted upload type.
const MimeType = "application/pdf"

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for PDF uploads and rasterization options.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator rejecting uploads above maxFileSize bytes.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// ValidateUpload checks the declared type and size of an upload before its
// bytes are read.
func (v *Validator) ValidateUpload(contentType string, size int64) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.EqualFold(mediaType, MimeType) {
		return domain.InvalidInput(fmt.Sprintf("le fichier doit être un PDF (reçu %q)", contentType), err)
	}
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return domain.FileTooLarge(fmt.Sprintf("le fichier dépasse la taille maximale de %d Mo", v.maxFileSize/(1024*1024))).
			WithDetails(map[string]any{"size": size, "maxSize": v.maxFileSize})
	}
	return nil
}

// ValidateBytes checks that data is non-empty and starts with the PDF signature.
func (v *Validator) ValidateBytes(data []byte) error {
	if len(data) == 0 {
		return domain.InvalidInput("le fichier PDF est vide", nil)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return domain.InvalidInput("le fichier ne semble pas être un PDF valide", nil)
	}
	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		return domain.FileTooLarge(fmt.Sprintf("le fichier dépasse la taille maximale de %d Mo", v.maxFileSize/(1024*1024)))
	}
	return nil
}

// ValidateOptions checks rasterization bounds.
func (v *Validator) ValidateOptions(opts domain.RasterOptions) error {
	if opts.Quality < 1 || opts.Quality > 100 {
		return domain.InvalidInput(fmt.Sprintf("quality must be between 1 and 100, got %d", opts.Quality), nil)
	}
	if opts.Density < 1 || opts.MaxWidth < 1 || opts.MaxPages < 1 {
		return domain.InvalidInput("density, max width and max pages must be positive", nil)
	}
	return nil
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() domain.RasterOptions {
	return domain.RasterOptions{
		Density:  150,
		MaxWidth: 1024,
		Quality:  80,
		MaxPages: 50,
	}
}
