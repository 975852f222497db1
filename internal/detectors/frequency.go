package detectors

// Frequency-domain analyzer: one 2-D DFT over the grayscale image,
// shared by four checks.
//
//	Check                 Signal                              Weight
//	JPEG Artifacts        8-px periodicity on the DC axes     0.85
//	High-Frequency        energy ratio beyond 0.7 radius      0.80
//	Power Spectrum        radial power-law slope vs 1/f^2     0.75
//	Periodic Patterns     log-spectrum coefficient of var.    0.70
//
// Camera output shows DCT block periodicity, a natural noise floor and
// a ~1/f^2 falloff; diffusion and GAN output break one or more of
// these. Absence of JPEG grid artifacts is itself suspicious.

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// AnalyzeFrequency runs the four spectral checks over a 2048-cap view.
func AnalyzeFrequency(ctx context.Context, art *Artifacts) models.DetectorReport {
	gray := art.Image.Gray(imaging.CapFrequency)
	spec := newSpectrum(gray)
	if spec == nil {
		return models.NeutralReport(NameFrequency, "image too small for spectral analysis")
	}
	if err := ctx.Err(); err != nil {
		return models.NeutralReport(NameFrequency, err.Error())
	}

	jpegScore := spec.checkJPEGArtifacts()
	hfScore := spec.checkHighFrequency()
	slopeScore := spec.checkPowerSpectrum()
	periodicScore := spec.checkPeriodicPatterns()

	checks := []models.Check{
		{
			Layer: "JPEG Artifacts", Score: jpegScore, Confidence: 0.85,
			Status: passFail(jpegScore), Reason: pick(jpegScore, "missing JPEG compression patterns", "normal JPEG artifacts detected"),
		},
		{
			Layer: "High-Frequency Analysis", Score: hfScore, Confidence: 0.80,
			Status: passFail(hfScore), Reason: pick(hfScore, "unnatural high-frequency patterns", "natural frequency distribution"),
		},
		{
			Layer: "Power Spectrum", Score: slopeScore, Confidence: 0.75,
			Status: passFail(slopeScore), Reason: pick(slopeScore, "anomalous spectral distribution", "natural power spectrum"),
		},
		{
			Layer: "Periodic Patterns", Score: periodicScore, Confidence: 0.70,
			Status: passFail(periodicScore), Reason: pick(periodicScore, "GAN-like periodic artifacts", "no artificial periodicities"),
		},
	}

	return models.DetectorReport{
		Detector: NameFrequency,
		Score:    weightedMean(checks),
		Checks:   checks,
		Details: map[string]string{
			"jpeg_artifacts_missing": fmt.Sprintf("%t", jpegScore > 0.6),
			"high_freq_anomaly":      fmt.Sprintf("%t", hfScore > 0.6),
			"power_spectrum_anomaly": fmt.Sprintf("%t", slopeScore > 0.6),
			"periodic_patterns":      fmt.Sprintf("%t", periodicScore > 0.6),
		},
	}
}

func passFail(score float64) string {
	if score > 0.6 {
		return models.StatusFail
	}
	return models.StatusPass
}

func pick(score float64, fail, pass string) string {
	if score > 0.6 {
		return fail
	}
	return pass
}

// spectrum caches the shifted magnitude and power planes plus the
// radial distance map, computed once per request.
type spectrum struct {
	h, w      int
	cy, cx    int
	magnitude [][]float64
	power     [][]float64
}

func newSpectrum(gray [][]float64) *spectrum {
	h := len(gray)
	if h < 32 {
		return nil
	}
	w := len(gray[0])
	if w < 32 {
		return nil
	}

	// Row transforms, then column transforms, gives the full 2-D DFT.
	rowFFT := fourier.NewCmplxFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	freq := make([][]complex128, h)
	buf := make([]complex128, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf[x] = complex(gray[y][x], 0)
		}
		row := make([]complex128, w)
		rowFFT.Coefficients(row, buf)
		freq[y] = row
	}

	colIn := make([]complex128, h)
	colOut := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			colIn[y] = freq[y][x]
		}
		colFFT.Coefficients(colOut, colIn)
		for y := 0; y < h; y++ {
			freq[y][x] = colOut[y]
		}
	}

	// fftshift: move DC to the center so the distance map is radial.
	s := &spectrum{h: h, w: w, cy: h / 2, cx: w / 2}
	s.magnitude = make([][]float64, h)
	s.power = make([][]float64, h)
	for y := 0; y < h; y++ {
		magRow := make([]float64, w)
		powRow := make([]float64, w)
		srcY := (y + s.cy) % h
		for x := 0; x < w; x++ {
			srcX := (x + s.cx) % w
			m := cmplxAbs(freq[srcY][srcX])
			magRow[x] = m
			powRow[x] = m * m
		}
		s.magnitude[y] = magRow
		s.power[y] = powRow
	}
	return s
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// checkJPEGArtifacts autocorrelates the DC row and column and reads the
// normalized peaks at lags 8 and 16.
func (s *spectrum) checkJPEGArtifacts() float64 {
	horizontal := s.magnitude[s.cy]
	vertical := make([]float64, s.h)
	for y := 0; y < s.h; y++ {
		vertical[y] = s.magnitude[y][s.cx]
	}

	avg := (periodicity8px(horizontal) + periodicity8px(vertical)) / 2
	switch {
	case avg > 0.30:
		return 0.1
	case avg > 0.15:
		return 0.4
	default:
		return 0.8
	}
}

func periodicity8px(signal []float64) float64 {
	if len(signal) <= 32 {
		return 0
	}
	lag := func(k int) float64 {
		var sum float64
		for i := 0; i+k < len(signal); i++ {
			sum += signal[i] * signal[i+k]
		}
		return sum
	}
	zero := lag(0)
	if zero <= 0 {
		return 0
	}
	return (lag(8)/zero + lag(16)/zero) / 2
}

// checkHighFrequency measures the energy fraction beyond 70% of the
// usable radius.
func (s *spectrum) checkHighFrequency() float64 {
	maxDist := float64(min(s.cy, s.cx))
	cutoff := 0.7 * maxDist * 0.7 * maxDist

	var total, hf float64
	for y := 0; y < s.h; y++ {
		dy := float64(y - s.cy)
		for x := 0; x < s.w; x++ {
			dx := float64(x - s.cx)
			p := s.power[y][x]
			total += p
			if dy*dy+dx*dx > cutoff {
				hf += p
			}
		}
	}
	if total <= 0 {
		return 0.5
	}

	ratio := hf / total
	switch {
	case ratio < 0.03:
		return 0.85
	case ratio > 0.25:
		return 0.75
	case ratio >= 0.05 && ratio <= 0.20:
		return 0.15
	default:
		return 0.5
	}
}

// checkPowerSpectrum fits the radially averaged power spectrum to a
// power law and scores the distance from the natural ~-2 slope.
func (s *spectrum) checkPowerSpectrum() float64 {
	maxRadius := min(s.cy, s.cx)
	sums := make([]float64, maxRadius+1)
	counts := make([]float64, maxRadius+1)
	for y := 0; y < s.h; y++ {
		dy := float64(y - s.cy)
		for x := 0; x < s.w; x++ {
			dx := float64(x - s.cx)
			r := int(math.Sqrt(dy*dy + dx*dx))
			if r >= 1 && r < maxRadius {
				sums[r] += s.power[y][x]
				counts[r]++
			}
		}
	}

	var logFreq, logPower []float64
	for r := 1; r < maxRadius; r++ {
		if counts[r] == 0 {
			continue
		}
		logFreq = append(logFreq, math.Log(float64(r)))
		logPower = append(logPower, math.Log(sums[r]/counts[r]+1e-10))
	}
	if len(logPower) < 10 {
		return 0.5
	}

	_, slope := stat.LinearRegression(logFreq, logPower, nil, false)
	switch {
	case slope > -2.5 && slope < -1.5:
		return 0.1
	case slope > -3.0 && slope < -1.0:
		return 0.4
	default:
		return 0.8
	}
}

// checkPeriodicPatterns uses the coefficient of variation of the log
// spectrum outside the DC disk as a peak-density proxy.
func (s *spectrum) checkPeriodicPatterns() float64 {
	var sum, sumSq float64
	var n int
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			if y >= s.cy-10 && y < s.cy+10 && x >= s.cx-10 && x < s.cx+10 {
				continue
			}
			v := math.Log(s.magnitude[y][x] + 1)
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	mean := sum / float64(n)
	if mean <= 0 {
		return 0.5
	}
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	cv := math.Sqrt(variance) / mean

	switch {
	case cv > 1.0:
		return 0.85
	case cv < 0.3:
		return 0.75
	case cv >= 0.4 && cv <= 0.8:
		return 0.15
	default:
		return 0.5
	}
}
