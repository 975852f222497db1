package detectors

// JPEG quantization sub-check. The quantization tables a camera writes
// are an encoder fingerprint: a mismatch against the claimed model, a
// match against a known AI-generator table, or a table no real encoder
// produces all raise the sub-score.

import (
	"fmt"
	"math"
	"strings"

	"github.com/truthsnap/forensics-engine/internal/config"
	"github.com/truthsnap/forensics-engine/internal/imaging"
)

// ijgBaseline is the IJG quality-50 luminance table, the reference for
// quality estimation.
var ijgBaseline = [8][8]int{
	{16, 11, 10, 16, 24, 40, 51, 61},
	{12, 12, 14, 19, 26, 58, 60, 55},
	{14, 13, 16, 24, 40, 57, 69, 56},
	{14, 17, 22, 29, 51, 87, 80, 62},
	{18, 22, 37, 56, 68, 109, 103, 77},
	{24, 35, 55, 64, 81, 104, 113, 92},
	{49, 64, 78, 87, 103, 121, 120, 101},
	{72, 92, 95, 98, 112, 100, 103, 99},
}

func checkQuantization(art *Artifacts) intrinsicResult {
	r := intrinsicResult{name: "JPEG Quantization"}
	if art.Image.Format != imaging.FormatJPEG && art.Image.Format != imaging.FormatMPO {
		return r
	}
	if len(art.QTables) == 0 {
		r.flags = append(r.flags, "cannot extract quantization tables")
		r.score += 20
		r.anomalies = false
		return r
	}
	luminance := art.QTables[0].Flat()

	if claimed := art.ClaimedCamera(); claimed != "" {
		if pattern, ok := art.Cfg.Quantization.Lookup(claimed); ok {
			if tableSimilarity(luminance, pattern.Luminance) <= 0.85 {
				r.flags = append(r.flags, "quantization tables do not match "+claimed)
				r.score += 40
			}
		}
	}

	if name := matchAIPattern(luminance, art.Cfg.Quantization.AIPatterns()); name != "" {
		r.flags = append(r.flags, "AI generation pattern detected: "+name)
		r.score += 50
	}

	if std := tableStd(luminance); std < 5 {
		r.flags = append(r.flags, fmt.Sprintf("implausibly uniform table (std %.1f)", std))
		r.score += 30
	}

	quality := estimateQuality(art.QTables[0])
	if quality < 60 {
		r.flags = append(r.flags, fmt.Sprintf("low JPEG quality (%d%%)", quality))
		r.score += 15
	} else if quality > 98 {
		r.flags = append(r.flags, fmt.Sprintf("unusually high quality (%d%%)", quality))
		r.score += 10
	}

	if r.score > 100 {
		r.score = 100
	}
	r.anomalies = r.score > 30
	return r
}

func matchAIPattern(luminance []int, patterns map[string]config.QuantPattern) string {
	for name, p := range patterns {
		if tableSimilarity(luminance, p.Luminance) > 0.95 {
			return strings.ReplaceAll(name, "_", " ")
		}
	}
	return ""
}

// tableSimilarity is the cosine similarity of the flattened tables.
func tableSimilarity(a, b []int) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

func tableStd(values []int) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range values {
		f := float64(v)
		sum += f
		sumSq += f * f
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// estimateQuality converts the luminance table into an IJG quality
// estimate by scaling against the baseline's center block, which is
// more stable than the corners.
func estimateQuality(table imaging.QTable) int {
	var actual, baseline float64
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			actual += float64(table.Values[y][x])
			baseline += float64(ijgBaseline[y][x])
		}
	}
	actual /= 16
	baseline /= 16

	scale := actual / baseline
	var quality int
	switch {
	case scale <= 0:
		quality = 100
	case scale < 1:
		quality = int(50 + (1-scale)*50)
	default:
		quality = int(50 / scale)
	}
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return quality
}
