package homescreen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	return &Document{
		Carousel: &Carousel{
			Images: []CarouselImage{
				{URL: "https://cdn.example.com/a.jpg", Alt: "first"},
				{URL: "https://cdn.example.com/b.jpg"},
			},
			AspectRatio: "landscape",
		},
		TextBlock: &TextBlock{
			Heading: "Welcome",
			Body:    "Hello there",
			Color:   "#ff8800",
		},
		CTA: &CTA{
			Label:           "Shop now",
			URL:             "https://example.com/shop",
			BackgroundColor: "#0af",
			TextColor:       "#FFFFFF",
		},
		SectionOrder: []string{"carousel", "textBlock", "cta"},
	}
}

func TestValidateAndNormalize_OK(t *testing.T) {
	doc := validDocument()
	require.NoError(t, ValidateAndNormalize(doc))

	// Colors normalized to uppercase #RRGGBB, shorthand expanded.
	assert.Equal(t, "#FF8800", doc.TextBlock.Color)
	assert.Equal(t, "#00AAFF", doc.CTA.BackgroundColor)
	assert.Equal(t, "#FFFFFF", doc.CTA.TextColor)
}

func TestValidateAndNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Document)
		wantField string
	}{
		{"nil sections with empty order", func(d *Document) {
			d.Carousel, d.TextBlock, d.CTA = nil, nil, nil
			d.SectionOrder = nil
		}, "sectionOrder"},
		{"too many images", func(d *Document) {
			imgs := make([]CarouselImage, MaxCarouselImages+1)
			for i := range imgs {
				imgs[i] = CarouselImage{URL: "https://example.com/x.jpg"}
			}
			d.Carousel.Images = imgs
		}, "carousel.images"},
		{"bad image url", func(d *Document) {
			d.Carousel.Images[0].URL = "not a url"
		}, "carousel.images[0].url"},
		{"ftp url", func(d *Document) {
			d.CTA.URL = "ftp://example.com/file"
		}, "cta.url"},
		{"bad aspect ratio", func(d *Document) {
			d.Carousel.AspectRatio = "wide"
		}, "carousel.aspectRatio"},
		{"empty heading", func(d *Document) {
			d.TextBlock.Heading = ""
		}, "textBlock.heading"},
		{"heading too long", func(d *Document) {
			d.TextBlock.Heading = string(make([]byte, 121))
		}, "textBlock.heading"},
		{"bad color", func(d *Document) {
			d.TextBlock.Color = "red"
		}, "textBlock.color"},
		{"empty color", func(d *Document) {
			d.CTA.BackgroundColor = ""
		}, "cta.backgroundColor"},
		{"label too long", func(d *Document) {
			d.CTA.Label = string(make([]byte, 61))
		}, "cta.label"},
		{"unknown section in order", func(d *Document) {
			d.SectionOrder = []string{"carousel", "textBlock", "cta", "footer"}
		}, "sectionOrder"},
		{"duplicate section in order", func(d *Document) {
			d.SectionOrder = []string{"carousel", "carousel", "textBlock", "cta"}
		}, "sectionOrder"},
		{"present section missing from order", func(d *Document) {
			d.SectionOrder = []string{"carousel", "textBlock"}
		}, "sectionOrder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)
			err := ValidateAndNormalize(doc)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidateAndNormalize_AbsentSectionsMayBeOrdered(t *testing.T) {
	doc := validDocument()
	doc.CTA = nil
	// Absent sections listed in the order are allowed; the viewer skips them.
	require.NoError(t, ValidateAndNormalize(doc))
}

func TestValidateConfigID(t *testing.T) {
	assert.NoError(t, ValidateConfigID("mobile"))
	assert.NoError(t, ValidateConfigID("My_Layout-2"))
	assert.Error(t, ValidateConfigID(""))
	assert.Error(t, ValidateConfigID("has space"))
	assert.Error(t, ValidateConfigID("Ümlaut"))
	assert.Error(t, ValidateConfigID(string(make([]byte, 51))))
}
