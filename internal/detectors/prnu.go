package detectors

// Sensor-noise sub-check. Every camera sensor imprints a photo-response
// non-uniformity pattern on its output; generated imagery lacks it and
// splices carry two different ones. The pattern is approximated as the
// normalized residual after a 5x5 box blur.

import (
	"fmt"
	"math"
)

const (
	prnuPresenceThreshold = 0.15
	prnuConsistencyFloor  = 0.75
	prnuSpliceThreshold   = 0.30
	prnuBlockSize         = 64
)

func checkSensorNoise(gray [][]float64) intrinsicResult {
	r := intrinsicResult{name: "Sensor Noise"}
	h := len(gray)
	if h == 0 {
		return r
	}
	w := len(gray[0])

	pattern, ok := noisePattern(gray)
	if !ok {
		r.flags = append(r.flags, "could not extract sensor noise pattern")
		r.score += 5
		return r
	}

	strength := patternStrength(pattern)
	if strength < prnuPresenceThreshold {
		r.flags = append(r.flags, fmt.Sprintf("weak or missing sensor noise (strength %.3f)", strength))
		r.score += 25
		r.anomalies = true
	}

	if h >= prnuBlockSize*2 && w >= prnuBlockSize*2 {
		consistency, maxDev, blocks := blockConsistency(gray)
		if blocks >= 4 {
			if consistency < prnuConsistencyFloor {
				r.flags = append(r.flags, fmt.Sprintf("inconsistent noise pattern (score %.3f)", consistency))
				r.score += 35
				r.anomalies = true
			}
			if maxDev > prnuSpliceThreshold {
				r.flags = append(r.flags, fmt.Sprintf("extreme block deviation (max %.3f)", maxDev))
				r.score += 45
				r.anomalies = true
			}
		}
	}

	if naturalness := patternNaturalness(pattern); naturalness < 0.3 {
		r.flags = append(r.flags, fmt.Sprintf("unnatural noise spectrum (naturalness %.3f)", naturalness))
		r.score += 20
		r.anomalies = true
	}

	return r
}

// noisePattern returns the blur residual normalized to zero mean and
// unit standard deviation.
func noisePattern(gray [][]float64) ([][]float64, bool) {
	h := len(gray)
	if h < 32 || len(gray[0]) < 32 {
		return nil, false
	}
	w := len(gray[0])
	residual := blurResidual(gray, 2)

	var sum, sumSq float64
	n := float64(h * w)
	for _, row := range residual {
		for _, v := range row {
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)

	for y := range residual {
		for x := range residual[y] {
			if std > 0 {
				residual[y][x] = (residual[y][x] - mean) / std
			} else {
				residual[y][x] = residual[y][x] - mean
			}
		}
	}
	return residual, true
}

// patternStrength blends the pattern's standard deviation with its
// high-frequency energy ratio, both clamped into [0, 1]. Real sensor
// noise concentrates outside the central spectrum quarter.
func patternStrength(pattern [][]float64) float64 {
	h := len(pattern)
	w := len(pattern[0])

	var sumSq float64
	for _, row := range pattern {
		for _, v := range row {
			sumSq += v * v
		}
	}
	std := math.Sqrt(sumSq / float64(h*w))

	spec := newSpectrum(pattern)
	if spec == nil {
		return clamp01(std)
	}

	var total, hf float64
	for y := 0; y < spec.h; y++ {
		inCenterY := y >= spec.cy-spec.h/4 && y < spec.cy+spec.h/4
		for x := 0; x < spec.w; x++ {
			p := spec.power[y][x]
			total += p
			if !inCenterY || x < spec.cx-spec.w/4 || x >= spec.cx+spec.w/4 {
				hf += p
			}
		}
	}
	hfRatio := hf / (total + 1e-10)

	return clamp01(0.5*std + 0.5*hfRatio)
}

// blockConsistency measures how uniform the noise strength is across
// 64-px blocks. Returns the consistency score, the maximum deviation
// from the mean strength, and the number of blocks evaluated.
func blockConsistency(gray [][]float64) (score, maxDev float64, blocks int) {
	h := len(gray)
	w := len(gray[0])

	var strengths []float64
	for i := 0; i+prnuBlockSize <= h; i += prnuBlockSize {
		for j := 0; j+prnuBlockSize <= w; j += prnuBlockSize {
			block := make([][]float64, prnuBlockSize)
			for y := 0; y < prnuBlockSize; y++ {
				block[y] = gray[i+y][j : j+prnuBlockSize]
			}
			pattern, ok := noisePattern(block)
			if !ok {
				continue
			}
			strengths = append(strengths, patternStrength(pattern))
		}
	}
	if len(strengths) < 4 {
		return 1, 0, len(strengths)
	}

	var sum, sumSq float64
	for _, s := range strengths {
		sum += s
		sumSq += s * s
	}
	n := float64(len(strengths))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	for _, s := range strengths {
		if d := math.Abs(s - mean); d > maxDev {
			maxDev = d
		}
	}

	score = 1
	if mean > 0 {
		score = 1 / (1 + variance/(mean*mean))
	}
	return score, maxDev, len(strengths)
}

// patternNaturalness scores the smoothness of the radially averaged
// power spectrum in 5-px annuli. Sensor noise decays smoothly with
// radius; synthetic residuals do not.
func patternNaturalness(pattern [][]float64) float64 {
	spec := newSpectrum(pattern)
	if spec == nil {
		return 0.5
	}

	maxR := min(spec.cy, spec.cx)
	nBins := maxR / 5
	if nBins < 3 {
		return 0.5
	}
	sums := make([]float64, nBins)
	counts := make([]float64, nBins)
	for y := 0; y < spec.h; y++ {
		dy := float64(y - spec.cy)
		for x := 0; x < spec.w; x++ {
			dx := float64(x - spec.cx)
			bin := int(math.Sqrt(dy*dy+dx*dx)) / 5
			if bin < nBins {
				sums[bin] += spec.power[y][x]
				counts[bin]++
			}
		}
	}

	profile := make([]float64, 0, nBins)
	var peak float64
	for i := 0; i < nBins; i++ {
		if counts[i] == 0 {
			continue
		}
		v := sums[i] / counts[i]
		profile = append(profile, v)
		if v > peak {
			peak = v
		}
	}
	if len(profile) < 3 {
		return 0.5
	}
	if peak > 0 {
		for i := range profile {
			profile[i] /= peak
		}
	}

	var gSum, gSumSq float64
	for i := 1; i < len(profile); i++ {
		g := profile[i] - profile[i-1]
		gSum += g
		gSumSq += g * g
	}
	n := float64(len(profile) - 1)
	gMean := gSum / n
	gVar := gSumSq/n - gMean*gMean
	if gVar < 0 {
		gVar = 0
	}
	return clamp01(1 / (1 + gVar*10))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
