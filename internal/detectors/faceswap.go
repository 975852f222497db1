package detectors

// Face-swap analyzer: per-face seam and statistics checks.
//
//	Check            Signal                                   Weight
//	Boundary FFT     high-frequency energy along the seam     0.85
//	Face/Neck Color  chi-square distance of 32-bin hists      0.75
//	Lighting         vertical/horizontal gradient imbalance   0.70
//	Compression      variance gap face vs background          0.80
//
// The detector score is the max over faces; zero when no face is
// found. Without a face detector installed, a coarse central-60% box
// is analyzed at half weight.

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// FaceSwap wraps the face-detection collaborator. Box coordinates are
// interpreted in the 2048-cap view's pixel space.
type FaceSwap struct {
	finder FaceFinder
}

func NewFaceSwap(finder FaceFinder) *FaceSwap {
	return &FaceSwap{finder: finder}
}

// Analyze scores every detected face and keeps the worst one.
func (d *FaceSwap) Analyze(ctx context.Context, art *Artifacts) models.FaceSwapReport {
	view := art.Image.Downsample(imaging.CapFrequency)
	gray := imaging.GrayMatrix(view)
	b := view.Bounds()
	w, h := b.Dx(), b.Dy()

	faces, fallback := d.findFaces(ctx, art, w, h)
	if len(faces) == 0 {
		return models.FaceSwapReport{
			DetectorReport: models.DetectorReport{
				Detector: NameFaceSwap,
				Score:    0,
				Checks: []models.Check{{
					Layer: "Face Detection", Status: models.StatusNA, Score: 0,
					Reason: "no faces found", Confidence: 0.5,
				}},
			},
			FacesDetected: 0,
		}
	}

	var best float64
	var bestChecks []models.Check
	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return models.FaceSwapReport{
				DetectorReport: models.NeutralReport(NameFaceSwap, err.Error()),
			}
		}
		score, checks := scoreFace(view, gray, face)
		if fallback {
			// Coarse central box carries half the evidentiary weight of
			// a detector hit.
			score *= face.Confidence
		}
		if score >= best {
			best = score
			bestChecks = checks
		}
	}

	return models.FaceSwapReport{
		DetectorReport: models.DetectorReport{
			Detector: NameFaceSwap,
			Score:    best,
			Checks:   bestChecks,
			Details: map[string]string{
				"faces":    fmt.Sprintf("%d", len(faces)),
				"fallback": fmt.Sprintf("%t", fallback),
			},
		},
		FacesDetected: len(faces),
	}
}

func (d *FaceSwap) findFaces(ctx context.Context, art *Artifacts, w, h int) ([]FaceBox, bool) {
	if d.finder != nil && d.finder.Available() {
		faces, err := d.finder.DetectFaces(ctx, art.Image)
		if err == nil {
			return faces, false
		}
	}
	// Central 60% coarse box at reduced confidence.
	return []FaceBox{{
		X0: w / 5, Y0: h / 5, X1: w * 4 / 5, Y1: h * 4 / 5,
		Confidence: 0.5,
	}}, true
}

func scoreFace(view *image.NRGBA, gray [][]float64, face FaceBox) (float64, []models.Check) {
	boundary := checkBoundarySpectrum(gray, face)
	color := checkFaceNeckColor(view, face)
	lighting := checkLightingDirection(gray, face)
	compression := checkCompressionGap(gray, face)

	checks := []models.Check{
		{Layer: "Boundary FFT", Status: statusForScore(boundary), Score: boundary,
			Reason: "seam high-frequency profile", Confidence: 0.85},
		{Layer: "Face/Neck Color", Status: statusForScore(color), Score: color,
			Reason: "histogram distance face vs neck", Confidence: 0.75},
		{Layer: "Lighting Direction", Status: statusForScore(lighting), Score: lighting,
			Reason: "gradient direction balance", Confidence: 0.70},
		{Layer: "Compression Consistency", Status: statusForScore(compression), Score: compression,
			Reason: "variance gap face vs background", Confidence: 0.80},
	}
	return weightedMean(checks), checks
}

// checkBoundarySpectrum transforms a 10-px strip straddling the top
// edge of the face box and measures its high-frequency energy. Splice
// seams concentrate energy far from DC.
func checkBoundarySpectrum(gray [][]float64, face FaceBox) float64 {
	h := len(gray)
	w := len(gray[0])
	y0 := clampInt(face.Y0-10, 0, h)
	y1 := clampInt(face.Y0+10, 0, h)
	x0 := clampInt(face.X0, 0, w)
	x1 := clampInt(face.X1, 0, w)
	if y1-y0 < 4 || x1-x0 < 32 {
		return 0.4
	}

	strip := make([][]float64, y1-y0)
	for y := y0; y < y1; y++ {
		strip[y-y0] = gray[y][x0:x1]
	}

	ratio, ok := stripHFRatio(strip)
	if !ok {
		return 0.4
	}
	switch {
	case ratio > 0.30:
		return 0.85
	case ratio > 0.20:
		return 0.65
	case ratio < 0.10:
		return 0.15
	default:
		return 0.4
	}
}

// stripHFRatio is a row-wise 1-D spectral estimate: fraction of energy
// beyond 70% of Nyquist, averaged over rows. Cheap enough for a thin
// strip and stable for non-square regions.
func stripHFRatio(strip [][]float64) (float64, bool) {
	var total, hf float64
	for _, row := range strip {
		n := len(row)
		if n < 16 {
			continue
		}
		// Energy via first differences: high-frequency content shows up
		// as large adjacent deltas relative to overall variation.
		var rowTotal, rowHF float64
		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= float64(n)
		for i, v := range row {
			d := v - mean
			rowTotal += d * d
			if i > 0 {
				dd := row[i] - row[i-1]
				rowHF += dd * dd / 4
			}
		}
		total += rowTotal
		hf += rowHF
	}
	if total <= 0 {
		return 0, false
	}
	r := hf / total
	if r > 1 {
		r = 1
	}
	return r, true
}

// checkFaceNeckColor compares 32-bin per-channel histograms of the
// face region against the strip immediately below it.
func checkFaceNeckColor(view *image.NRGBA, face FaceBox) float64 {
	b := view.Bounds()
	w, h := b.Dx(), b.Dy()
	fx0, fy0 := clampInt(face.X0, 0, w), clampInt(face.Y0, 0, h)
	fx1, fy1 := clampInt(face.X1, 0, w), clampInt(face.Y1, 0, h)
	neckH := (fy1 - fy0) / 3
	ny1 := clampInt(fy1+neckH, 0, h)
	if fx1-fx0 < 4 || fy1-fy0 < 4 || ny1-fy1 < 4 {
		return 0.45
	}

	faceHist := regionHistograms(view, fx0, fy0, fx1, fy1)
	neckHist := regionHistograms(view, fx0, fy1, fx1, ny1)

	var chi float64
	for c := 0; c < 3; c++ {
		chi += chiSquare(faceHist[c], neckHist[c])
	}
	chi /= 3

	switch {
	case chi > 0.5:
		return 0.85
	case chi > 0.3:
		return 0.65
	case chi < 0.15:
		return 0.20
	default:
		return 0.45
	}
}

func regionHistograms(view *image.NRGBA, x0, y0, x1, y1 int) [3][]float64 {
	var hist [3][]float64
	for c := range hist {
		hist[c] = make([]float64, 32)
	}
	count := 0
	for y := y0; y < y1; y++ {
		off := view.PixOffset(view.Bounds().Min.X+x0, view.Bounds().Min.Y+y)
		for x := x0; x < x1; x++ {
			p := view.Pix[off : off+3]
			for c := 0; c < 3; c++ {
				hist[c][int(p[c])/8]++
			}
			off += 4
			count++
		}
	}
	if count > 0 {
		for c := range hist {
			for i := range hist[c] {
				hist[c][i] /= float64(count)
			}
		}
	}
	return hist
}

func chiSquare(a, b []float64) float64 {
	var sum float64
	for i := range a {
		denom := a[i] + b[i] + 1e-10
		d := a[i] - b[i]
		sum += d * d / denom
	}
	return 0.5 * sum
}

// checkLightingDirection scores the imbalance between vertical and
// horizontal gradients inside the face. Relit swaps skew the ratio.
func checkLightingDirection(gray [][]float64, face FaceBox) float64 {
	h := len(gray)
	w := len(gray[0])
	x0, y0 := clampInt(face.X0, 1, w-1), clampInt(face.Y0, 1, h-1)
	x1, y1 := clampInt(face.X1, 1, w-1), clampInt(face.Y1, 1, h-1)
	if x1-x0 < 4 || y1-y0 < 4 {
		return 0.4
	}

	var sumGx, sumGy float64
	var n float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sumGx += math.Abs((gray[y][x+1] - gray[y][x-1]) / 2)
			sumGy += math.Abs((gray[y+1][x] - gray[y-1][x]) / 2)
			n++
		}
	}
	if n == 0 {
		return 0.4
	}
	gx, gy := sumGx/n, sumGy/n
	lo := math.Min(gx, gy)
	hi := math.Max(gx, gy)
	if lo <= 0 {
		return 0.4
	}
	ratio := hi / lo

	switch {
	case ratio > 5:
		return 0.80
	case ratio > 3:
		return 0.60
	case ratio < 2:
		return 0.20
	default:
		return 0.40
	}
}

// checkCompressionGap compares pixel variance inside the face with a
// 20-px border around it. Pasted faces carry a different compression
// history than their background.
func checkCompressionGap(gray [][]float64, face FaceBox) float64 {
	h := len(gray)
	w := len(gray[0])
	fx0, fy0 := clampInt(face.X0, 0, w), clampInt(face.Y0, 0, h)
	fx1, fy1 := clampInt(face.X1, 0, w), clampInt(face.Y1, 0, h)
	bx0, by0 := clampInt(fx0-20, 0, w), clampInt(fy0-20, 0, h)
	bx1, by1 := clampInt(fx1+20, 0, w), clampInt(fy1+20, 0, h)
	if fx1-fx0 < 4 || fy1-fy0 < 4 {
		return 0.4
	}

	faceVar := regionVariance(gray, fx0, fy0, fx1, fy1)

	// Border = outer box minus the face box.
	var sum, sumSq float64
	var n float64
	for y := by0; y < by1; y++ {
		for x := bx0; x < bx1; x++ {
			if x >= fx0 && x < fx1 && y >= fy0 && y < fy1 {
				continue
			}
			v := gray[y][x]
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n < 16 || faceVar == 0 {
		return 0.4
	}
	mean := sum / n
	bgVar := sumSq/n - mean*mean
	if bgVar <= 0 {
		return 0.4
	}

	gap := math.Abs(faceVar-bgVar) / bgVar
	switch {
	case gap > 0.5:
		return 0.80
	case gap > 0.3:
		return 0.60
	case gap < 0.15:
		return 0.20
	default:
		return 0.40
	}
}

func regionVariance(gray [][]float64, x0, y0, x1, y1 int) float64 {
	var sum, sumSq float64
	var n float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			v := gray[y][x]
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / n
	v := sumSq/n - mean*mean
	if v < 0 {
		v = 0
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
