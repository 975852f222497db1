package detectors

import (
	"context"
	"image"
	"math/rand"
	"testing"

	"github.com/truthsnap/forensics-engine/internal/exifmeta"
	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// synthImage builds an in-memory view small enough that every detector
// cap returns the pixel matrix unscaled.
func synthImage(w, h int, fill func(x, y int) [3]uint8) *imaging.Image {
	pix := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := fill(x, y)
			off := pix.PixOffset(x, y)
			pix.Pix[off] = c[0]
			pix.Pix[off+1] = c[1]
			pix.Pix[off+2] = c[2]
			pix.Pix[off+3] = 255
		}
	}
	return &imaging.Image{
		Format: imaging.FormatJPEG,
		Pixels: pix,
		Width:  w,
		Height: h,
	}
}

func flatFill(v uint8) func(x, y int) [3]uint8 {
	return func(x, y int) [3]uint8 { return [3]uint8{v, v, v} }
}

func synthArtifacts(img *imaging.Image, exif map[string]string) *Artifacts {
	return &Artifacts{
		Image: img,
		Exif:  exifmeta.Map(exif),
		Mode:  models.ModePhoto,
		Cfg:   mvCfg,
	}
}

func TestCheckExifRichness(t *testing.T) {
	tests := []struct {
		name string
		exif map[string]string
		want float64
	}{
		{"no exif", nil, 0.8},
		{"nearly empty", map[string]string{"Orientation": "1"}, 0.8},
		{"camera tags present", map[string]string{
			"Make": "Canon", "Model": "EOS 5D", "DateTime": "2024:06:01 12:00:00",
		}, 0.1},
		{"exif without camera tags", map[string]string{
			"Orientation": "1", "XResolution": "72", "YResolution": "72",
		}, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := checkExifRichness(plainArtifacts(tt.exif))
			if c.Score != tt.want {
				t.Errorf("expected score %v, got %v (%s)", tt.want, c.Score, c.Reason)
			}
		})
	}
}

func TestCheckNoisePattern(t *testing.T) {
	flat := make([][]float64, 10)
	for y := range flat {
		flat[y] = make([]float64, 10)
		for x := range flat[y] {
			flat[y][x] = 128
		}
	}
	if c := checkNoisePattern(flat); c.Score != 0.9 {
		t.Errorf("flat image has zero local variance, expected 0.9, got %v (%s)", c.Score, c.Reason)
	}

	checker := make([][]float64, 16)
	for y := range checker {
		checker[y] = make([]float64, 16)
		for x := range checker[y] {
			if (x+y)%2 == 0 {
				checker[y][x] = 255
			}
		}
	}
	if c := checkNoisePattern(checker); c.Score != 0.1 {
		t.Errorf("checkerboard has extreme local variance, expected 0.1, got %v (%s)", c.Score, c.Reason)
	}
}

func TestCheckColorDistribution(t *testing.T) {
	tests := []struct {
		name string
		fill func(x, y int) [3]uint8
		want float64
	}{
		{"flat gray has zero saturation", flatFill(128), 0.7},
		{"pure red is oversaturated", func(x, y int) [3]uint8 { return [3]uint8{255, 0, 0} }, 0.8},
		{"muted tones are natural", func(x, y int) [3]uint8 { return [3]uint8{180, 140, 100} }, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := synthArtifacts(synthImage(32, 32, tt.fill), nil)
			c := checkColorDistribution(art)
			if c.Score != tt.want {
				t.Errorf("expected score %v, got %v (%s)", tt.want, c.Score, c.Reason)
			}
		})
	}
}

func TestCheckGradientEntropy(t *testing.T) {
	tiny := [][]float64{{1, 2}, {3, 4}}
	if c := checkGradientEntropy(tiny); c.Status != models.StatusNA {
		t.Errorf("expected N/A for tiny image, got %s", c.Status)
	}

	flat := make([][]float64, 32)
	for y := range flat {
		flat[y] = make([]float64, 32)
	}
	if c := checkGradientEntropy(flat); c.Score != 0.9 {
		t.Errorf("flat image has zero gradient entropy, expected 0.9, got %v (%s)", c.Score, c.Reason)
	}

	rng := rand.New(rand.NewSource(1))
	noisy := make([][]float64, 64)
	for y := range noisy {
		noisy[y] = make([]float64, 64)
		for x := range noisy[y] {
			noisy[y][x] = rng.Float64() * 255
		}
	}
	if c := checkGradientEntropy(noisy); c.Score >= 0.5 {
		t.Errorf("noise has high gradient entropy, expected low score, got %v (%s)", c.Score, c.Reason)
	}
}

func TestAnalyzeHeuristicsFlatSynthetic(t *testing.T) {
	art := synthArtifacts(synthImage(64, 64, flatFill(128)), nil)

	rep := AnalyzeHeuristics(context.Background(), art)
	if rep.TerminalError {
		t.Fatalf("unexpected terminal error: %s", rep.Error)
	}
	if rep.Score <= 0.7 {
		t.Errorf("featureless image without EXIF should score high, got %v", rep.Score)
	}
	if got := rep.Details["primary_reason"]; got != "multiple synthetic-image indicators" {
		t.Errorf("unexpected primary reason: %q", got)
	}
	if len(rep.Checks) != 4 {
		t.Errorf("expected 4 checks, got %d", len(rep.Checks))
	}
}

func TestAnalyzeHeuristicsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	art := synthArtifacts(synthImage(32, 32, flatFill(128)), nil)
	rep := AnalyzeHeuristics(ctx, art)
	if !rep.TerminalError || rep.Score != 0.5 {
		t.Errorf("expected neutral report on cancelled context, got %+v", rep)
	}
}

func TestAISignatures(t *testing.T) {
	rep := models.DetectorReport{
		Score: 0.75,
		Checks: []models.Check{
			{Layer: "EXIF Metadata", Score: 0.8},
			{Layer: "Noise Pattern", Score: 0.9},
			{Layer: "Color Distribution", Score: 0.2},
			{Layer: "Gradient Smoothness", Score: 0.7},
		},
	}

	sig := AISignatures(rep)
	want := map[string]bool{
		"unknown_ai":           true,
		"no_metadata":          true,
		"smooth_noise":         true,
		"unnatural_colors":     false,
		"low_gradient_entropy": true,
	}
	for k, v := range want {
		if sig[k] != v {
			t.Errorf("signature %s = %t, want %t", k, sig[k], v)
		}
	}
}
