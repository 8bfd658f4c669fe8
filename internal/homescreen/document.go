// Package homescreen defines the home-screen layout document: its sections,
// structural validation, color normalization, and the schema migration chain
// that upgrades documents imported from older exports.
//
// The document is stored as JSONB; this package is the single place that knows
// its shape. Repositories treat it as opaque bytes, handlers parse it here.
package homescreen

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// CurrentSchemaVersion is the schema tag written on every save and export.
const CurrentSchemaVersion = "2"

// Section names referenced by SectionOrder.
const (
	SectionCarousel  = "carousel"
	SectionTextBlock = "textBlock"
	SectionCTA       = "cta"
)

// DefaultSectionOrder is the ordering applied when a document predates
// sectionOrder or an imported document omits it.
var DefaultSectionOrder = []string{SectionCarousel, SectionTextBlock, SectionCTA}

// MaxCarouselImages caps the image list per document.
const MaxCarouselImages = 50

var configIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// Document is the current-schema home-screen layout.
type Document struct {
	Carousel     *Carousel  `json:"carousel,omitempty"`
	TextBlock    *TextBlock `json:"textBlock,omitempty"`
	CTA          *CTA       `json:"cta,omitempty"`
	SectionOrder []string   `json:"sectionOrder"`
}

// Carousel is the image carousel section.
type Carousel struct {
	Images      []CarouselImage `json:"images"`
	AspectRatio string          `json:"aspectRatio"`
}

// CarouselImage is a single carousel entry.
type CarouselImage struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// TextBlock is the free-text section.
type TextBlock struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
	Color   string `json:"color"`
}

// CTA is the call-to-action button section.
type CTA struct {
	Label           string `json:"label"`
	URL             string `json:"url"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

// ParseDocument decodes raw JSON into a current-schema Document. Unknown
// fields are dropped by construction (the struct is the schema).
func ParseDocument(raw json.RawMessage) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed document: %w", err)
	}
	return &doc, nil
}

// Encode marshals the document back to JSON for storage.
func (d *Document) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return b, nil
}

// ValidateConfigID checks the per-user configuration identifier.
func ValidateConfigID(configID string) error {
	if !configIDPattern.MatchString(configID) {
		return fmt.Errorf("config id must be 1-50 characters of [A-Za-z0-9_-]")
	}
	return nil
}

// presentSections returns the section names actually set on the document, in
// default order.
func (d *Document) presentSections() []string {
	var out []string
	if d.Carousel != nil {
		out = append(out, SectionCarousel)
	}
	if d.TextBlock != nil {
		out = append(out, SectionTextBlock)
	}
	if d.CTA != nil {
		out = append(out, SectionCTA)
	}
	return out
}
