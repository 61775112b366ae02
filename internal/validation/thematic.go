package validation

import (
	"regexp"
	"strings"

	"github.com/Raumain/flashcards/internal/domain"
)

const (
	ThematicNameMaxLen        = 100
	ThematicDescriptionMaxLen = 500
	ThematicIconMaxLen        = 10

	DefaultThematicColor = "#3B82F6"
	DefaultThematicIcon  = "📚"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// DefaultThematic is used when no usable label can be extracted.
func DefaultThematic() domain.ThematicDraft {
	return domain.ThematicDraft{
		Name:        "Document médical",
		Description: "Contenu médical importé",
		Color:       DefaultThematicColor,
		Icon:        DefaultThematicIcon,
	}
}

// ThematicDraft validates a thematic label. Empty color and icon take their
// defaults before the check.
func ThematicDraft(d domain.ThematicDraft) (domain.ThematicDraft, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Color == "" {
		d.Color = DefaultThematicColor
	}
	if d.Icon == "" {
		d.Icon = DefaultThematicIcon
	}

	var is issues
	if l := length(d.Name); l < 1 || l > ThematicNameMaxLen {
		is.addf("name: longueur %d hors de [1, %d]", l, ThematicNameMaxLen)
	}
	if l := length(d.Description); l > ThematicDescriptionMaxLen {
		is.addf("description: longueur %d supérieure à %d", l, ThematicDescriptionMaxLen)
	}
	if !hexColor.MatchString(d.Color) {
		is.addf("color: %q n'est pas une couleur hexadécimale", d.Color)
	}
	if l := length(d.Icon); l > ThematicIconMaxLen {
		is.addf("icon: longueur %d supérieure à %d", l, ThematicIconMaxLen)
	}

	if len(is) > 0 {
		return d, domain.ValidationFailed("thématique invalide", is)
	}
	return d, nil
}

// ThematicUpdate validates the fields present in a partial update.
func ThematicUpdate(u domain.ThematicUpdate) error {
	var is issues
	if u.Name != nil {
		if l := length(strings.TrimSpace(*u.Name)); l < 1 || l > ThematicNameMaxLen {
			is.addf("name: longueur %d hors de [1, %d]", l, ThematicNameMaxLen)
		}
	}
	if u.Description != nil && length(*u.Description) > ThematicDescriptionMaxLen {
		is.addf("description: trop longue")
	}
	if u.Color != nil && !hexColor.MatchString(*u.Color) {
		is.addf("color: %q n'est pas une couleur hexadécimale", *u.Color)
	}
	if u.Icon != nil {
		if l := length(*u.Icon); l < 1 || l > ThematicIconMaxLen {
			is.addf("icon: longueur %d hors de [1, %d]", l, ThematicIconMaxLen)
		}
	}
	if len(is) > 0 {
		return domain.ValidationFailed("mise à jour invalide", is)
	}
	return nil
}

// TruncateName trims a thematic name and cuts it to ThematicNameMaxLen runes.
func TruncateName(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) > ThematicNameMaxLen {
		r = r[:ThematicNameMaxLen]
	}
	return string(r)
}
