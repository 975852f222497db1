package detectors

// Intrinsic analyzer: pixel-statistics and container-structure checks
// that need no metadata to fire. Each sub-check contributes a 0-100
// sub-score; only sub-checks that flag anomalies count toward the
// total, which is capped at 100. Screenshots skip the JPEG, ICC and
// sensor-noise sub-checks because recapture destroys those signals.

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// intrinsicResult is one sub-check's contribution.
type intrinsicResult struct {
	name      string
	score     float64
	anomalies bool
	flags     []string
}

// AnalyzeIntrinsic runs all sub-checks and folds them into one report.
func AnalyzeIntrinsic(ctx context.Context, art *Artifacts) models.DetectorReport {
	view := art.Image.Downsample(imaging.CapIntrinsic)
	gray := imaging.GrayMatrix(view)
	screenshot := isScreenshotSource(art)

	results := []intrinsicResult{
		checkColorAnomalies(view),
		checkNoiseUniformity(gray),
		checkVisualArtifacts(gray),
		checkGANFingerprints(art.Image.Gray(imaging.CapPeriodic)),
	}
	if !screenshot {
		results = append(results,
			checkQuantization(art),
			checkICCAnomalies(art),
			checkSensorNoise(gray),
		)
	}
	if err := ctx.Err(); err != nil {
		return models.NeutralReport(NameIntrinsic, err.Error())
	}

	var total float64
	checks := make([]models.Check, 0, len(results))
	for _, r := range results {
		if r.anomalies {
			total += r.score
		}
		checks = append(checks, models.Check{
			Layer:      r.name,
			Status:     intrinsicStatus(r),
			Score:      math.Min(r.score/100, 1),
			Reason:     intrinsicReason(r),
			Confidence: 0.7,
		})
	}
	if total > 100 {
		total = 100
	}

	return models.DetectorReport{
		Detector: NameIntrinsic,
		Score:    total / 100,
		Checks:   checks,
		Details: map[string]string{
			"is_ai_intrinsic": fmt.Sprintf("%t", total > 50),
			"screenshot":      fmt.Sprintf("%t", screenshot),
		},
	}
}

func intrinsicStatus(r intrinsicResult) string {
	if !r.anomalies {
		return models.StatusPass
	}
	if r.score >= 40 {
		return models.StatusFail
	}
	return models.StatusWarn
}

func intrinsicReason(r intrinsicResult) string {
	if len(r.flags) == 0 {
		return "no anomalies"
	}
	return strings.Join(r.flags, "; ")
}

// isScreenshotSource matches the ICC description against monitor
// profile names and the recording software against screen-capture
// tools.
func isScreenshotSource(art *Artifacts) bool {
	if art.ICC != nil {
		desc := strings.ToLower(art.ICC.Description)
		for _, kw := range art.Cfg.Platforms.MonitorKeywords {
			if desc != "" && strings.Contains(desc, strings.ToLower(kw)) {
				return true
			}
		}
	}
	software := strings.ToLower(art.Exif["Software"])
	for _, s := range art.Cfg.Platforms.ScreenshotSoftware {
		if software != "" && strings.Contains(software, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// ─── color anomalies ─────────────────────────────────────────────────

// checkColorAnomalies scores oversaturation, pure-value excess and
// channel-correlation oddities. Dark frames get night-mode leniency on
// saturation and pure black.
func checkColorAnomalies(view *image.NRGBA) intrinsicResult {
	r := intrinsicResult{name: "Color Anomalies"}
	b := view.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return r
	}
	total := float64(w * h)

	var satSum, satSumSq float64
	var brightSum float64
	var pureWhite, pureBlack float64

	// Channel samples for correlation, strided to roughly 10k points.
	stride := (w*h)/10000 + 1
	var rs, gs, bs []float64

	idx := 0
	for y := 0; y < h; y++ {
		off := view.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			pr := float64(view.Pix[off])
			pg := float64(view.Pix[off+1])
			pb := float64(view.Pix[off+2])
			off += 4

			maxC := math.Max(pr, math.Max(pg, pb))
			minC := math.Min(pr, math.Min(pg, pb))
			sat := maxC - minC
			satSum += sat
			satSumSq += sat * sat
			brightSum += (pr + pg + pb) / 3

			if pr == 255 && pg == 255 && pb == 255 {
				pureWhite++
			}
			if pr == 0 && pg == 0 && pb == 0 {
				pureBlack++
			}

			if idx%stride == 0 {
				rs = append(rs, pr)
				gs = append(gs, pg)
				bs = append(bs, pb)
			}
			idx++
		}
	}

	satMean := satSum / total
	satVar := satSumSq/total - satMean*satMean
	if satVar < 0 {
		satVar = 0
	}
	satStd := math.Sqrt(satVar)
	brightness := brightSum / total

	if satMean > 120 {
		if brightness > 120 {
			r.flags = append(r.flags, fmt.Sprintf("high saturation (mean %.1f)", satMean))
			r.score += 15
		} else {
			// Night-mode compensation boosts saturation on dark frames.
			r.score += 5
		}
	}
	if satStd < 20 {
		r.flags = append(r.flags, fmt.Sprintf("uniform saturation (std %.1f)", satStd))
		r.score += 15
	}
	if pureWhite > total*0.08 {
		r.flags = append(r.flags, fmt.Sprintf("excessive pure white (%.1f%%)", 100*pureWhite/total))
		r.score += 15
	}
	if pureBlack > total*0.05 && brightness > 100 {
		r.flags = append(r.flags, fmt.Sprintf("excessive pure black (%.1f%%)", 100*pureBlack/total))
		r.score += 25
	}

	rg := pearson(rs, gs)
	rb := pearson(rs, bs)
	gb := pearson(gs, bs)
	minCorr := math.Min(rg, math.Min(rb, gb))
	if minCorr < 0.15 {
		r.flags = append(r.flags, fmt.Sprintf("weak color correlation (min %.2f)", minCorr))
		r.score += 15
	}
	if rg > 0.97 && rb > 0.97 && gb > 0.97 {
		r.flags = append(r.flags, "unnaturally perfect color correlation")
		r.score += 15
	}

	r.anomalies = r.score > 20
	return r
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if n < 2 {
		return 1
	}
	var sa, sb float64
	for i := range a {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/n, sb/n
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va <= 0 || vb <= 0 {
		return 1
	}
	return cov / math.Sqrt(va*vb)
}

// ─── noise uniformity ────────────────────────────────────────────────

// checkNoiseUniformity isolates noise with a 5x5 box-blur residual and
// compares its standard deviation across 32-px blocks. Camera noise
// varies with scene content; synthesized noise is flat.
func checkNoiseUniformity(gray [][]float64) intrinsicResult {
	r := intrinsicResult{name: "Noise Uniformity"}
	h := len(gray)
	if h == 0 {
		return r
	}
	w := len(gray[0])

	noise := blurResidual(gray, 2)

	const block = 32
	var stds []float64
	for i := 0; i+block < h; i += block {
		for j := 0; j+block < w; j += block {
			var sum, sumSq float64
			for y := i; y < i+block; y++ {
				for x := j; x < j+block; x++ {
					v := noise[y][x]
					sum += v
					sumSq += v * v
				}
			}
			n := float64(block * block)
			mean := sum / n
			variance := sumSq/n - mean*mean
			if variance < 0 {
				variance = 0
			}
			stds = append(stds, math.Sqrt(variance))
		}
	}
	if len(stds) <= 10 {
		return r
	}

	var sum, sumSq float64
	for _, s := range stds {
		sum += s
		sumSq += s * s
	}
	n := float64(len(stds))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	cv := math.Sqrt(variance) / (mean + 1e-10)

	if cv < 0.10 {
		r.flags = append(r.flags, fmt.Sprintf("unnaturally uniform noise (variation %.3f)", cv))
		r.score += 20
		r.anomalies = true
	}
	return r
}

// blurResidual subtracts a (2k+1)x(2k+1) box blur from the image,
// leaving the high-frequency noise component.
func blurResidual(gray [][]float64, k int) [][]float64 {
	h := len(gray)
	w := len(gray[0])
	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			var sum float64
			var n float64
			for dy := -k; dy <= k; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -k; dx <= k; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					sum += gray[yy][xx]
					n++
				}
			}
			out[y][x] = gray[y][x] - sum/n
		}
	}
	return out
}

// ─── visual artifacts ────────────────────────────────────────────────

// checkVisualArtifacts flags excessive smooth regions and abnormal
// edge density.
func checkVisualArtifacts(gray [][]float64) intrinsicResult {
	r := intrinsicResult{name: "Visual Artifacts"}
	h := len(gray)
	if h == 0 {
		return r
	}
	w := len(gray[0])

	const window = 16
	var lowVar, windows float64
	for i := 0; i+window < h; i += window {
		for j := 0; j+window < w; j += window {
			var sum, sumSq float64
			for y := i; y < i+window; y++ {
				for x := j; x < j+window; x++ {
					v := gray[y][x]
					sum += v
					sumSq += v * v
				}
			}
			n := float64(window * window)
			mean := sum / n
			variance := sumSq/n - mean*mean
			windows++
			if variance < 50 {
				lowVar++
			}
		}
	}
	if windows > 0 {
		ratio := lowVar / windows
		if ratio > 0.4 {
			r.flags = append(r.flags, fmt.Sprintf("excessive smooth regions (%.1f%%)", 100*ratio))
			r.score += 20
		}
	}

	density := edgeDensity(gray)
	if density > 0.20 {
		r.flags = append(r.flags, fmt.Sprintf("excessive edges (%.2f%%)", 100*density))
		r.score += 15
	} else if density < 0.01 {
		r.flags = append(r.flags, fmt.Sprintf("insufficient edges (%.2f%%)", 100*density))
		r.score += 15
	}

	r.anomalies = r.score > 20
	return r
}

// edgeDensity thresholds the Sobel gradient magnitude at 100, tuned to
// track a 50/150 hysteresis edge map on typical photos.
func edgeDensity(gray [][]float64) float64 {
	h := len(gray)
	w := len(gray[0])
	if h < 3 || w < 3 {
		return 0
	}
	var edges, total float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := gray[y-1][x+1] + 2*gray[y][x+1] + gray[y+1][x+1] -
				gray[y-1][x-1] - 2*gray[y][x-1] - gray[y+1][x-1]
			gy := gray[y+1][x-1] + 2*gray[y+1][x] + gray[y+1][x+1] -
				gray[y-1][x-1] - 2*gray[y-1][x] - gray[y-1][x+1]
			if math.Hypot(gx, gy) > 100 {
				edges++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return edges / total
}

// ─── GAN fingerprints ────────────────────────────────────────────────

// checkGANFingerprints looks for upsampling signatures in the 512-cap
// spectrum: extreme high-band energy, angular periodicity on the 0.7
// radius ring, and an abnormally smooth azimuthal profile. Capped at
// 40 so spectral evidence alone never dominates the total.
func checkGANFingerprints(gray [][]float64) intrinsicResult {
	r := intrinsicResult{name: "GAN Fingerprints"}
	spec := newSpectrum(gray)
	if spec == nil {
		return r
	}

	maxDist := float64(min(spec.cy, spec.cx))
	cutoff := 0.7 * maxDist * 0.7 * maxDist
	var total, hf float64
	for y := 0; y < spec.h; y++ {
		dy := float64(y - spec.cy)
		for x := 0; x < spec.w; x++ {
			dx := float64(x - spec.cx)
			p := spec.power[y][x]
			total += p
			if dy*dy+dx*dx > cutoff {
				hf += p
			}
		}
	}
	if total > 0 {
		ratio := hf / total
		if ratio > 0.40 {
			r.flags = append(r.flags, fmt.Sprintf("excessive high-band energy (%.2f)", ratio))
			r.score += 25
		} else if ratio < 0.08 {
			r.flags = append(r.flags, fmt.Sprintf("suppressed high-band energy (%.2f)", ratio))
			r.score += 15
		}
	}

	// Sample the magnitude on a ring at 0.7 radius, one value per 10
	// degrees; upsampling grids repeat around the ring.
	radius := 0.7 * maxDist
	ring := make([]float64, 36)
	for i := range ring {
		theta := float64(i) * 10 * math.Pi / 180
		y := spec.cy + int(radius*math.Sin(theta))
		x := spec.cx + int(radius*math.Cos(theta))
		if y >= 0 && y < spec.h && x >= 0 && x < spec.w {
			ring[i] = spec.magnitude[y][x]
		}
	}

	if peak := maxAutocorr(ring, 2, 10); peak > 0.5 {
		r.flags = append(r.flags, fmt.Sprintf("angular periodicity (peak %.2f)", peak))
		r.score += 25
	}

	var sum, sumSq float64
	for _, v := range ring {
		sum += v
		sumSq += v * v
	}
	n := float64(len(ring))
	mean := sum / n
	if mean > 0 {
		variance := sumSq/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		if cv := math.Sqrt(variance) / mean; cv < 0.06 {
			r.flags = append(r.flags, fmt.Sprintf("flat azimuthal profile (cv %.3f)", cv))
			r.score += 20
		}
	}

	if r.score > 40 {
		r.score = 40
	}
	r.anomalies = r.score > 20
	return r
}

// maxAutocorr returns the maximum normalized autocorrelation of the
// mean-centered signal over lags [lo, hi).
func maxAutocorr(signal []float64, lo, hi int) float64 {
	n := len(signal)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range signal {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	var zero float64
	for i, v := range signal {
		centered[i] = v - mean
		zero += centered[i] * centered[i]
	}
	if zero <= 0 {
		return 0
	}

	var best float64
	for k := lo; k < hi && k < n; k++ {
		var sum float64
		for i := 0; i+k < n; i++ {
			sum += centered[i] * centered[i+k]
		}
		if c := sum / zero; c > best {
			best = c
		}
	}
	return best
}
