// Package ocr adapts Tesseract to the detector's text-extraction
// contract. The dependency is optional at runtime: when OCR_ENABLED is
// not "true" the extractor reports unavailable and the visual
// watermark detector degrades to a soft miss.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/truthsnap/forensics-engine/internal/imaging"
)

// minWordConfidence drops Tesseract guesses below this level; watermark
// text is rendered type and scores high when actually present.
const minWordConfidence = 30

// Tesseract extracts sparse text from the downsampled image. A fresh
// client is created per call since gosseract clients are not safe for
// concurrent reuse.
type Tesseract struct {
	enabled bool
}

func NewTesseract() *Tesseract {
	return &Tesseract{enabled: os.Getenv("OCR_ENABLED") == "true"}
}

func (t *Tesseract) Available() bool {
	return t != nil && t.enabled
}

// ExtractSparseText runs PSM sparse-text mode and concatenates the
// words that clear the confidence floor.
func (t *Tesseract) ExtractSparseText(ctx context.Context, img *imaging.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Tesseract reads encoded bytes; PNG keeps overlay text crisp.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Downsample(imaging.CapFrequency)); err != nil {
		return "", fmt.Errorf("encoding for ocr: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("loading image into tesseract: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return "", fmt.Errorf("setting segmentation mode: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", fmt.Errorf("running ocr: %w", err)
	}

	var words []string
	for _, box := range boxes {
		if box.Confidence < minWordConfidence {
			continue
		}
		if w := strings.TrimSpace(box.Word); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " "), nil
}
