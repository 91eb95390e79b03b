package printer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/kami-operation/kamiops/internal/models"
)

// MaxImageSide bounds the pixel width and height of any image drawn into a PDF
const MaxImageSide = 4000

// ImageSource reads stored images by key
type ImageSource interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// CheckImage returns the content type of a PNG or JPEG whose dimensions stay within MaxImageSide
func CheckImage(data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	if contentType != "image/png" && contentType != "image/jpeg" {
		return "", fmt.Errorf("unsupported image format %s", contentType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("empty image")
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide {
		return "", fmt.Errorf("image is %dx%d pixels, limit is %dx%d", cfg.Width, cfg.Height, MaxImageSide, MaxImageSide)
	}
	return contentType, nil
}

// ImageKeys lists the distinct storage keys referenced by image sections
func ImageKeys(tpl *models.PDFTemplate) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, s := range tpl.Sections {
		if s.Type != models.SectionImage || s.Content == "" || seen[s.Content] {
			continue
		}
		seen[s.Content] = true
		keys = append(keys, s.Content)
	}
	return keys
}

// LoadImages fetches the images of the template's image sections.
// Keys that cannot be read or fail CheckImage are left out and reported in skipped.
func LoadImages(ctx context.Context, tpl *models.PDFTemplate, src ImageSource) (images map[string][]byte, skipped map[string]error) {
	images = make(map[string][]byte)
	skipped = make(map[string]error)
	for _, key := range ImageKeys(tpl) {
		data, err := src.Get(ctx, key)
		if err != nil {
			skipped[key] = err
			continue
		}
		if _, err := CheckImage(data); err != nil {
			skipped[key] = err
			continue
		}
		images[key] = data
	}
	return images, skipped
}
