package detectors

// Heuristic analyzer: four cheap whole-image checks that catch the
// obvious cases before the expensive detectors weigh in.
//
//	Check                Suspicious when              Weight
//	EXIF richness        metadata absent or thin      0.70
//	Noise pattern        local variance too smooth    0.75
//	Color distribution   saturation extreme/uniform   0.65
//	Gradient smoothness  low gradient entropy         0.80
//
// Each check scores [0,1], higher = more likely synthetic. The
// aggregate is the confidence-weighted mean.

import (
	"context"
	"fmt"
	"math"

	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// AnalyzeHeuristics runs the four checks over a 2048-cap view.
func AnalyzeHeuristics(ctx context.Context, art *Artifacts) models.DetectorReport {
	gray := art.Image.Gray(imaging.CapFrequency)

	checks := []models.Check{
		checkExifRichness(art),
		checkNoisePattern(gray),
		checkColorDistribution(art),
		checkGradientEntropy(gray),
	}
	if err := ctx.Err(); err != nil {
		return models.NeutralReport(NameHeuristic, err.Error())
	}

	score := weightedMean(checks)
	return models.DetectorReport{
		Detector: NameHeuristic,
		Score:    score,
		Checks:   checks,
		Details: map[string]string{
			"primary_reason": heuristicReason(score),
		},
	}
}

// AISignatures summarizes the heuristic checks as named booleans for
// DETAILED responses.
func AISignatures(report models.DetectorReport) map[string]bool {
	sig := map[string]bool{
		"unknown_ai": report.Score > 0.6,
	}
	for _, c := range report.Checks {
		switch c.Layer {
		case "EXIF Metadata":
			sig["no_metadata"] = c.Score > 0.7
		case "Noise Pattern":
			sig["smooth_noise"] = c.Score > 0.6
		case "Color Distribution":
			sig["unnatural_colors"] = c.Score > 0.6
		case "Gradient Smoothness":
			sig["low_gradient_entropy"] = c.Score > 0.6
		}
	}
	return sig
}

func heuristicReason(score float64) string {
	switch {
	case score > 0.7:
		return "multiple synthetic-image indicators"
	case score > 0.5:
		return "some suspicious characteristics"
	case score < 0.3:
		return "natural photo characteristics"
	default:
		return "mixed signals"
	}
}

func checkExifRichness(art *Artifacts) models.Check {
	var score float64
	var reason string
	switch {
	case len(art.Exif) == 0:
		score, reason = 0.8, "no EXIF metadata present"
	case len(art.Exif) < 3:
		score, reason = 0.8, "EXIF nearly empty"
	case art.Exif.Get("Make") != "" || art.Exif.Get("Model") != "" || art.Exif.Get("Software") != "":
		score, reason = 0.1, "camera identification tags present"
	default:
		score, reason = 0.6, "EXIF present but no camera tags"
	}
	return models.Check{
		Layer:      "EXIF Metadata",
		Status:     statusForScore(score),
		Score:      score,
		Reason:     reason,
		Confidence: 0.70,
	}
}

// checkNoisePattern measures mean local variance over 3x3 windows.
// Camera sensors leave a noise floor; diffusion output is smoother.
func checkNoisePattern(gray [][]float64) models.Check {
	h := len(gray)
	w := 0
	if h > 0 {
		w = len(gray[0])
	}

	var total float64
	var count int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var sum, sumSq float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					v := gray[y+dy][x+dx]
					sum += v
					sumSq += v * v
				}
			}
			mean := sum / 9
			total += sumSq/9 - mean*mean
			count++
		}
	}

	var noise float64
	if count > 0 {
		noise = total / float64(count)
	}

	var score float64
	switch {
	case noise < 5:
		score = 0.9
	case noise < 15:
		score = 0.7
	case noise > 50:
		score = 0.1
	default:
		score = 0.4
	}
	return models.Check{
		Layer:      "Noise Pattern",
		Status:     statusForScore(score),
		Score:      score,
		Reason:     fmt.Sprintf("mean local variance %.1f", noise),
		Confidence: 0.75,
	}
}

// checkColorDistribution scores the mean HSV saturation.
func checkColorDistribution(art *Artifacts) models.Check {
	view := art.Image.Downsample(imaging.CapFrequency)
	b := view.Bounds()

	var satSum float64
	var count int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := view.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			p := view.Pix[off+x*4 : off+x*4+3]
			maxC := math.Max(float64(p[0]), math.Max(float64(p[1]), float64(p[2])))
			minC := math.Min(float64(p[0]), math.Min(float64(p[1]), float64(p[2])))
			if maxC > 0 {
				satSum += 255 * (maxC - minC) / maxC
			}
			count++
		}
	}

	var sat float64
	if count > 0 {
		sat = satSum / float64(count)
	}

	var score float64
	switch {
	case sat > 180:
		score = 0.8
	case sat < 30:
		score = 0.7
	case sat >= 80 && sat <= 140:
		score = 0.2
	default:
		score = 0.4
	}
	return models.Check{
		Layer:      "Color Distribution",
		Status:     statusForScore(score),
		Score:      score,
		Reason:     fmt.Sprintf("mean saturation %.0f", sat),
		Confidence: 0.65,
	}
}

// checkGradientEntropy histograms gradient magnitudes into 50 bins and
// scores the Shannon entropy. Synthetic images cluster gradients.
func checkGradientEntropy(gray [][]float64) models.Check {
	h := len(gray)
	w := 0
	if h > 0 {
		w = len(gray[0])
	}
	if h < 3 || w < 3 {
		return models.Check{Layer: "Gradient Smoothness", Status: models.StatusNA, Score: 0.5, Reason: "image too small", Confidence: 0.80}
	}

	mags := make([]float64, 0, (h-2)*(w-2))
	maxMag := 0.0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := (gray[y][x+1] - gray[y][x-1]) / 2
			gy := (gray[y+1][x] - gray[y-1][x]) / 2
			m := math.Sqrt(gx*gx + gy*gy)
			mags = append(mags, m)
			if m > maxMag {
				maxMag = m
			}
		}
	}

	const bins = 50
	hist := make([]float64, bins)
	for _, m := range mags {
		idx := 0
		if maxMag > 0 {
			idx = int(m / maxMag * float64(bins-1))
		}
		hist[idx]++
	}

	var entropy float64
	n := float64(len(mags))
	for _, c := range hist {
		if c > 0 {
			p := c / n
			entropy -= p * math.Log2(p)
		}
	}

	var score float64
	switch {
	case entropy < 3:
		score = 0.9
	case entropy < 4:
		score = 0.7
	case entropy > 4.8:
		score = 0.1
	default:
		score = 0.4
	}
	return models.Check{
		Layer:      "Gradient Smoothness",
		Status:     statusForScore(score),
		Score:      score,
		Reason:     fmt.Sprintf("gradient entropy %.2f bits", entropy),
		Confidence: 0.80,
	}
}
