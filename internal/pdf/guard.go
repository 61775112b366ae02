package pdf

import (
	"fmt"

	"github.com/Raumain/flashcards/internal/domain"
)

// PayloadSize is the total encoded length of images.
func PayloadSize(images []domain.PageImage) int {
	total := 0
	for _, img := range images {
		total += len(img.Data)
	}
	return total
}

// CheckPayload fails with PayloadTooLarge when the encoded images exceed
// maxBytes. It has no side effects and must run before any network call.
func CheckPayload(images []domain.PageImage, maxBytes int) error {
	total := PayloadSize(images)
	if total <= maxBytes {
		return nil
	}

	const mb = 1024 * 1024
	return domain.PayloadTooLarge(fmt.Sprintf(
		"La taille totale des images (%.2fMo) dépasse la limite de %dMo. Essayez avec un PDF plus court ou de moindre qualité.",
		float64(total)/mb, maxBytes/mb,
	)).WithDetails(map[string]any{
		"totalBytes": total,
		"maxBytes":   maxBytes,
		"imageCount": len(images),
	})
}
