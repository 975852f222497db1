package detectors

// Visual watermark detector: sparse-text OCR over the RGB image, with
// the concatenated lowercased output searched against the provider
// dictionaries. AI generator overlays ("Gemini", "DALL-E", MJ badges)
// hit at 0.90 confidence; stock-photo watermarks at 0.85. OCR being
// unavailable is a soft failure, never terminal.

import (
	"context"
	"sort"
	"strings"

	"github.com/truthsnap/forensics-engine/pkg/models"
)

// VWResult pairs the uniform report with the structured hit the fusion
// engine consumes.
type VWResult struct {
	Report models.DetectorReport
	Hit    models.WatermarkHit
}

// VisualWatermark wraps the OCR collaborator.
type VisualWatermark struct {
	ocr TextExtractor
}

func NewVisualWatermark(ocr TextExtractor) *VisualWatermark {
	return &VisualWatermark{ocr: ocr}
}

// Detect extracts text and searches the AI and stock dictionaries in
// that order; AI hits win.
func (d *VisualWatermark) Detect(ctx context.Context, art *Artifacts) VWResult {
	if d.ocr == nil || !d.ocr.Available() {
		return softMiss("ocr_unavailable")
	}

	text, err := d.ocr.ExtractSparseText(ctx, art.Image)
	if err != nil {
		// OCR failure yields no evidence, not a terminal error.
		return softMiss("ocr_failed")
	}
	text = strings.ToLower(text)

	if provider, keyword := matchDictionary(text, art.Cfg.Watermarks.AI); provider != "" {
		hit := models.WatermarkHit{
			Detected:   true,
			Type:       strings.ReplaceAll(provider, "_", " "),
			Provider:   provider,
			Confidence: 0.90,
			TextFound:  keyword,
			Location:   "bottom_right",
			Method:     "ocr_text_detection",
		}
		return VWResult{Report: vwReport(0.95, hit), Hit: hit}
	}

	if provider, keyword := matchDictionary(text, art.Cfg.Watermarks.Stock); provider != "" {
		hit := models.WatermarkHit{
			Detected:   true,
			Type:       "stock_photo",
			Provider:   provider,
			Confidence: 0.85,
			TextFound:  keyword,
			Location:   "center",
			Method:     "ocr_text_detection",
		}
		return VWResult{Report: vwReport(0.85, hit), Hit: hit}
	}

	return VWResult{
		Report: models.DetectorReport{
			Detector: NameVisualWatermark,
			Score:    0.0,
			Checks: []models.Check{{
				Layer:      "Watermark Text",
				Status:     models.StatusPass,
				Score:      0,
				Reason:     "no provider tokens in extracted text",
				Confidence: 0.9,
			}},
		},
		Hit: models.WatermarkHit{Detected: false},
	}
}

// matchDictionary scans providers in sorted order so the reported
// provider is stable when the text names more than one.
func matchDictionary(text string, dict map[string][]string) (provider, keyword string) {
	if text == "" {
		return "", ""
	}
	providers := make([]string, 0, len(dict))
	for p := range dict {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		for _, kw := range dict[p] {
			if strings.Contains(text, kw) {
				return p, kw
			}
		}
	}
	return "", ""
}

func vwReport(score float64, hit models.WatermarkHit) models.DetectorReport {
	return models.DetectorReport{
		Detector: NameVisualWatermark,
		Score:    score,
		Checks: []models.Check{{
			Layer:      "Watermark Text",
			Status:     models.StatusFail,
			Score:      score,
			Reason:     "provider watermark: " + hit.Provider + " (" + hit.TextFound + ")",
			Confidence: hit.Confidence,
		}},
		Details: map[string]string{
			"provider":   hit.Provider,
			"text_found": hit.TextFound,
		},
	}
}

func softMiss(note string) VWResult {
	return VWResult{
		Report: models.DetectorReport{
			Detector: NameVisualWatermark,
			Score:    0.0,
			Checks: []models.Check{{
				Layer:      "Watermark Text",
				Status:     models.StatusNA,
				Score:      0,
				Reason:     note,
				Confidence: 0,
			}},
			Details: map[string]string{"note": note},
		},
		Hit: models.WatermarkHit{Detected: false, Note: note},
	}
}
