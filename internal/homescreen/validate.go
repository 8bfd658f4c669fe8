// validate.go implements structural validation and color normalization for
// home-screen documents.
package homescreen

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	hexLongPattern  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	hexShortPattern = regexp.MustCompile(`^#[0-9a-fA-F]{3}$`)
)

var validAspectRatios = map[string]bool{
	"portrait":  true,
	"landscape": true,
	"square":    true,
}

// ValidationError describes a single rejected field. It satisfies error so
// callers can surface Field/Message in a 400 response without string parsing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateAndNormalize checks the document against the current schema's
// structural constraints and normalizes colors in place (#RGB expanded,
// uppercase #RRGGBB). The first violation found is returned.
func ValidateAndNormalize(doc *Document) error {
	if doc == nil {
		return invalid("document", "missing")
	}

	if doc.Carousel != nil {
		if err := validateCarousel(doc.Carousel); err != nil {
			return err
		}
	}
	if doc.TextBlock != nil {
		if err := validateTextBlock(doc.TextBlock); err != nil {
			return err
		}
	}
	if doc.CTA != nil {
		if err := validateCTA(doc.CTA); err != nil {
			return err
		}
	}

	return validateSectionOrder(doc)
}

func validateCarousel(c *Carousel) error {
	if len(c.Images) > MaxCarouselImages {
		return invalid("carousel.images", "at most %d images allowed, got %d", MaxCarouselImages, len(c.Images))
	}
	for i, img := range c.Images {
		if err := validateURL(fmt.Sprintf("carousel.images[%d].url", i), img.URL); err != nil {
			return err
		}
	}
	if !validAspectRatios[c.AspectRatio] {
		return invalid("carousel.aspectRatio", "must be one of portrait, landscape, square")
	}
	return nil
}

func validateTextBlock(tb *TextBlock) error {
	if tb.Heading == "" {
		return invalid("textBlock.heading", "must not be empty")
	}
	if len(tb.Heading) > 120 {
		return invalid("textBlock.heading", "at most 120 characters")
	}
	if len(tb.Body) > 2000 {
		return invalid("textBlock.body", "at most 2000 characters")
	}
	color, err := normalizeHexColor(tb.Color)
	if err != nil {
		return invalid("textBlock.color", "%v", err)
	}
	tb.Color = color
	return nil
}

func validateCTA(cta *CTA) error {
	if cta.Label == "" {
		return invalid("cta.label", "must not be empty")
	}
	if len(cta.Label) > 60 {
		return invalid("cta.label", "at most 60 characters")
	}
	if err := validateURL("cta.url", cta.URL); err != nil {
		return err
	}
	bg, err := normalizeHexColor(cta.BackgroundColor)
	if err != nil {
		return invalid("cta.backgroundColor", "%v", err)
	}
	cta.BackgroundColor = bg
	txt, err := normalizeHexColor(cta.TextColor)
	if err != nil {
		return invalid("cta.textColor", "%v", err)
	}
	cta.TextColor = txt
	return nil
}

func validateSectionOrder(doc *Document) error {
	if len(doc.SectionOrder) == 0 {
		return invalid("sectionOrder", "must not be empty")
	}
	present := map[string]bool{}
	for _, s := range doc.presentSections() {
		present[s] = true
	}
	seen := map[string]bool{}
	for _, name := range doc.SectionOrder {
		switch name {
		case SectionCarousel, SectionTextBlock, SectionCTA:
		default:
			return invalid("sectionOrder", "unknown section %q", name)
		}
		if seen[name] {
			return invalid("sectionOrder", "duplicate section %q", name)
		}
		seen[name] = true
	}
	// Every present section must be ordered; absent sections may be listed
	// (the viewer skips them) but present ones cannot be silently dropped.
	for name := range present {
		if !seen[name] {
			return invalid("sectionOrder", "missing present section %q", name)
		}
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return invalid(field, "must not be empty")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return invalid(field, "not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid(field, "URL scheme must be http or https")
	}
	if u.Host == "" {
		return invalid(field, "URL host must not be empty")
	}
	return nil
}

// normalizeHexColor validates a hex color and normalizes it to uppercase
// #RRGGBB. The #RGB shorthand is expanded digit by digit.
func normalizeHexColor(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("must not be empty")
	}
	switch {
	case hexLongPattern.MatchString(raw):
		return strings.ToUpper(raw), nil
	case hexShortPattern.MatchString(raw):
		var b strings.Builder
		b.WriteByte('#')
		for _, ch := range raw[1:] {
			b.WriteRune(ch)
			b.WriteRune(ch)
		}
		return strings.ToUpper(b.String()), nil
	default:
		return "", fmt.Errorf("must be a hex color like #RRGGBB")
	}
}
