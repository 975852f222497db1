package detectors

// Fusion engine: weighted voting over the detector reports instead of
// any-detector-wins. Smoking guns short-circuit the vote; everything
// else folds into one combined score read against fixed bands.
//
//	ai_heuristic   0.35
//	frequency      0.30
//	metadata risk  0.25
//	face swap      0.10 (only when faces were found)

import (
	"fmt"
	"log"
	"strings"

	"github.com/truthsnap/forensics-engine/pkg/models"
)

// Fuse folds all detector reports into the final verdict.
func Fuse(res *Results, art *Artifacts) models.Verdict {
	if res.AllFailed() {
		return models.Verdict{
			Status:     models.VerdictInconclusive,
			Confidence: 0.5,
			Reason:     "analysis_failed",
		}
	}

	if v, ok := smokingGun(res); ok {
		return v
	}

	fraudScore := res.Metadata.FraudScore
	if res.Metadata.TerminalError {
		fraudScore = 50
	}
	heuristic := res.Heuristic.Score
	frequency := res.Frequency.Score
	faceSwap := res.FaceSwap.Score
	faces := res.FaceSwap.FacesDetected

	metadataRisk := float64(fraudScore) / 100

	// Trusted professional tools cut the metadata contribution; pixel
	// evidence has to carry the accusation on its own.
	trusted := false
	for _, flag := range res.Metadata.RedFlags {
		if flag.TrustLevel == "high" || flag.TrustLevel == "medium" {
			trusted = true
			metadataRisk -= 0.30
			if metadataRisk < 0 {
				metadataRisk = 0
			}
			break
		}
	}

	stockPhoto := stockPhotoDetected(res.Metadata.Checks)

	combined := heuristic*0.35 + frequency*0.30 + metadataRisk*0.25
	if faces > 0 {
		combined += faceSwap * 0.10
	}

	// Complete EXIF from a named device earns a bonus toward "real".
	var bonus float64
	if fraudScore < 40 && !res.Metadata.TerminalError {
		mk := strings.TrimSpace(art.Exif.Get("Make"))
		model := strings.TrimSpace(art.Exif.Get("Model"))
		if mk != "" || model != "" {
			bonus = float64(40-fraudScore) / 100
		}
	}

	log.Printf("[Fusion] heuristic=%.2f freq=%.2f meta=%.2f face=%.2f combined=%.2f bonus=%.2f",
		heuristic, frequency, metadataRisk, faceSwap, combined, bonus)

	switch {
	case combined > 0.85:
		return models.Verdict{
			Status:     models.VerdictAIGenerated,
			Confidence: minF(0.98, combined),
			Reason:     fmt.Sprintf("Strong AI generation indicators (score: %.2f)", combined),
		}

	case combined > 0.70:
		if trusted && visualSubScore(heuristic, frequency) < 0.50 {
			return models.Verdict{
				Status:     models.VerdictReal,
				Confidence: 0.70,
				Reason:     "Professional photo editing detected, but visual analysis shows natural patterns",
			}
		}
		return models.Verdict{
			Status:     models.VerdictAIGenerated,
			Confidence: combined,
			Reason:     fmt.Sprintf("AI generation likely (combined indicators: %.2f)", combined),
		}

	case combined > 0.50:
		if stockPhoto {
			return models.Verdict{
				Status:     models.VerdictReal,
				Confidence: 0.70,
				Reason:     "Professional stock photo - EXIF stripped by provider",
			}
		}
		if trusted && visualSubScore(heuristic, frequency) < 0.60 {
			return models.Verdict{
				Status:     models.VerdictReal,
				Confidence: 0.75,
				Reason:     "Professional photo editing with trusted software - visual analysis shows natural patterns",
			}
		}
		if faces > 0 && faceSwap > 0.70 {
			return models.Verdict{
				Status:     models.VerdictManipulated,
				Confidence: faceSwap,
				Reason:     "Face swap / deepfake indicators detected",
			}
		}
		if messagingFlagged(res.Metadata.RedFlags) {
			return models.Verdict{
				Status:     models.VerdictManipulated,
				Confidence: 0.75,
				Reason:     "Messaging app processing - forensic data stripped",
			}
		}
		return models.Verdict{
			Status:     models.VerdictManipulated,
			Confidence: combined,
			Reason:     fmt.Sprintf("Suspicious indicators detected (score: %.2f)", combined),
		}

	case combined > 0.35:
		if bonus > 0 && combined < 0.50 {
			return models.Verdict{
				Status:     models.VerdictReal,
				Confidence: maxF(0.70, 1-combined+bonus),
				Reason:     "Authentic camera photo with complete EXIF data (device verified)",
			}
		}
		return models.Verdict{
			Status:     models.VerdictInconclusive,
			Confidence: 0.50,
			Reason:     fmt.Sprintf("Mixed signals - manual review recommended (score: %.2f)", combined),
		}

	case combined > 0.20:
		return models.Verdict{
			Status:     models.VerdictReal,
			Confidence: minF(0.90, 1-combined+bonus),
			Reason:     fmt.Sprintf("Natural photo characteristics detected (score: %.2f)", combined),
		}

	default:
		return models.Verdict{
			Status:     models.VerdictReal,
			Confidence: minF(0.95, maxF(0.85, 1-combined+bonus)),
			Reason:     "Strong indicators of authentic photograph",
		}
	}
}

// smokingGun checks the short-circuit evidence in priority order.
// Reports that ended in a terminal error never contribute here.
func smokingGun(res *Results) (models.Verdict, bool) {
	if hit := res.Visual.Hit; hit.Detected && !res.Visual.Report.TerminalError {
		if hit.Type != "stock_photo" {
			return models.Verdict{
				Status:     models.VerdictAIGenerated,
				Confidence: maxF(0.98, hit.Confidence),
				Reason:     fmt.Sprintf("AI generator watermark detected: %s (%s)", hit.Provider, hit.TextFound),
			}, true
		}
		return models.Verdict{
			Status:     models.VerdictManipulated,
			Confidence: 0.90,
			Reason:     fmt.Sprintf("Stock photo watermark detected: %s - unlicensed use", hit.Provider),
		}, true
	}

	if hit := res.Crypto.Hit; hit.Detected && !res.Crypto.Report.TerminalError {
		return models.Verdict{
			Status:     models.VerdictAIGenerated,
			Confidence: maxF(0.95, hit.Confidence),
			Reason:     fmt.Sprintf("Digital watermark detected (%s)", hit.Type),
		}, true
	}

	if !res.Metadata.TerminalError {
		for _, flag := range res.Metadata.RedFlags {
			if flag.Severity != models.SeverityCritical {
				continue
			}
			reason := strings.ToLower(flag.Reason)
			if strings.Contains(reason, "ai") && !flag.RequiresVisualProof {
				return models.Verdict{
					Status:     models.VerdictAIGenerated,
					Confidence: 0.98,
					Reason:     flag.Reason,
				}, true
			}
			if strings.Contains(reason, "screenshot") {
				return models.Verdict{
					Status:     models.VerdictManipulated,
					Confidence: 0.95,
					Reason:     "Screenshot detected - not original photo",
				}, true
			}
		}

		if score := res.Metadata.FraudScore; score >= 80 {
			status := models.VerdictManipulated
			if score >= 90 {
				status = models.VerdictAIGenerated
			}
			parts := []string{fmt.Sprintf("EXIF fraud score: %d/100", score)}
			var tops []string
			for _, flag := range res.Metadata.RedFlags {
				if flag.Reason != "" {
					tops = append(tops, flag.Reason)
				}
				if len(tops) == 2 {
					break
				}
			}
			if len(tops) > 0 {
				parts = append(parts, strings.Join(tops, ", "))
			}
			return models.Verdict{
				Status:     status,
				Confidence: minF(float64(score)/100, 0.98),
				Reason:     strings.Join(parts, ". "),
			}, true
		}
	}

	return models.Verdict{}, false
}

// visualSubScore isolates the pixel-evidence portion of the vote, used
// to decide whether metadata alone is driving the accusation.
func visualSubScore(heuristic, frequency float64) float64 {
	return heuristic*0.3 + frequency*0.4
}

func stockPhotoDetected(checks []models.Check) bool {
	services := []string{"freepik", "shutterstock", "getty", "pexels", "unsplash"}
	for _, c := range checks {
		reason := strings.ToLower(c.Reason)
		if strings.Contains(reason, "stock photo") {
			return true
		}
		for _, s := range services {
			if strings.Contains(reason, s) {
				return true
			}
		}
	}
	return false
}

func messagingFlagged(flags []models.RedFlag) bool {
	for _, flag := range flags {
		reason := strings.ToLower(flag.Reason)
		if strings.Contains(reason, "whatsapp") || strings.Contains(reason, "telegram") {
			return true
		}
	}
	return false
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
