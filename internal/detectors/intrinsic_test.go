package detectors

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/truthsnap/forensics-engine/internal/exifmeta"
	"github.com/truthsnap/forensics-engine/internal/imaging"
)

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	if got := pearson(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("self correlation should be 1, got %v", got)
	}
	b := []float64{4, 3, 2, 1}
	if got := pearson(a, b); math.Abs(got+1) > 1e-9 {
		t.Errorf("inverted correlation should be -1, got %v", got)
	}
	flat := []float64{5, 5, 5, 5}
	if got := pearson(a, flat); got != 1 {
		t.Errorf("degenerate variance defaults to 1, got %v", got)
	}
}

func TestMaxAutocorr(t *testing.T) {
	// Period 4 within the searched lag range.
	periodic := make([]float64, 36)
	for i := 0; i < len(periodic); i += 4 {
		periodic[i] = 1
	}
	if got := maxAutocorr(periodic, 2, 10); got < 0.5 {
		t.Errorf("period-4 signal should autocorrelate strongly, got %v", got)
	}

	flat := make([]float64, 36)
	if got := maxAutocorr(flat, 2, 10); got != 0 {
		t.Errorf("constant signal has no autocorrelation estimate, got %v", got)
	}
}

func TestBlurResidualFlat(t *testing.T) {
	flat := make([][]float64, 16)
	for y := range flat {
		flat[y] = make([]float64, 16)
		for x := range flat[y] {
			flat[y][x] = 100
		}
	}
	res := blurResidual(flat, 2)
	for y := range res {
		for x := range res[y] {
			if math.Abs(res[y][x]) > 1e-9 {
				t.Fatalf("flat image has zero residual, got %v at (%d,%d)", res[y][x], x, y)
			}
		}
	}
}

func TestEdgeDensity(t *testing.T) {
	flat := make([][]float64, 32)
	for y := range flat {
		flat[y] = make([]float64, 32)
	}
	if got := edgeDensity(flat); got != 0 {
		t.Errorf("flat image has no edges, got %v", got)
	}

	step := make([][]float64, 32)
	for y := range step {
		step[y] = make([]float64, 32)
		for x := 16; x < 32; x++ {
			step[y][x] = 255
		}
	}
	if got := edgeDensity(step); got <= 0.05 {
		t.Errorf("vertical step edge should register, got %v", got)
	}
}

func TestCheckColorAnomalies(t *testing.T) {
	t.Run("flat gray", func(t *testing.T) {
		r := checkColorAnomalies(synthImage(64, 64, flatFill(128)).Pixels)
		if !hasIntrinsicFlag(r, "uniform saturation") {
			t.Errorf("expected uniform saturation flag, got %v", r.flags)
		}
		if !hasIntrinsicFlag(r, "unnaturally perfect color correlation") {
			t.Errorf("expected correlation flag, got %v", r.flags)
		}
		if !r.anomalies {
			t.Error("expected anomalies")
		}
	})

	t.Run("blown highlights", func(t *testing.T) {
		r := checkColorAnomalies(synthImage(64, 64, flatFill(255)).Pixels)
		if !hasIntrinsicFlag(r, "excessive pure white") {
			t.Errorf("expected pure white flag, got %v", r.flags)
		}
	})

	t.Run("dark saturated frame gets night leniency", func(t *testing.T) {
		red := synthImage(64, 64, func(x, y int) [3]uint8 { return [3]uint8{200, 0, 0} })
		r := checkColorAnomalies(red.Pixels)
		if hasIntrinsicFlag(r, "high saturation") {
			t.Errorf("dark frames must not flag saturation, got %v", r.flags)
		}
	})
}

func TestCheckVisualArtifactsFlat(t *testing.T) {
	flat := make([][]float64, 64)
	for y := range flat {
		flat[y] = make([]float64, 64)
		for x := range flat[y] {
			flat[y][x] = 128
		}
	}
	r := checkVisualArtifacts(flat)
	if !hasIntrinsicFlag(r, "excessive smooth regions") {
		t.Errorf("expected smooth region flag, got %v", r.flags)
	}
	if !hasIntrinsicFlag(r, "insufficient edges") {
		t.Errorf("expected edge deficit flag, got %v", r.flags)
	}
	if !r.anomalies {
		t.Error("expected anomalies")
	}
}

func TestCheckNoiseUniformity(t *testing.T) {
	t.Run("flat residual flags", func(t *testing.T) {
		flat := make([][]float64, 192)
		for y := range flat {
			flat[y] = make([]float64, 192)
			for x := range flat[y] {
				flat[y][x] = 128
			}
		}
		r := checkNoiseUniformity(flat)
		if !hasIntrinsicFlag(r, "unnaturally uniform noise") {
			t.Errorf("expected uniformity flag, got %v", r.flags)
		}
	})

	t.Run("content-dependent noise passes", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		varied := make([][]float64, 192)
		for y := range varied {
			varied[y] = make([]float64, 192)
			amp := float64(1 + (y/32)*10)
			for x := range varied[y] {
				varied[y][x] = 128 + rng.Float64()*amp
			}
		}
		r := checkNoiseUniformity(varied)
		if r.anomalies {
			t.Errorf("varying noise amplitude must pass, got %v", r.flags)
		}
	})
}

func TestCheckSensorNoiseTooSmall(t *testing.T) {
	small := make([][]float64, 16)
	for y := range small {
		small[y] = make([]float64, 16)
	}
	r := checkSensorNoise(small)
	if !hasIntrinsicFlag(r, "could not extract sensor noise pattern") {
		t.Errorf("expected extraction failure flag, got %v", r.flags)
	}
	if r.score != 5 || r.anomalies {
		t.Errorf("extraction failure is weak evidence, got score %v anomalies %t", r.score, r.anomalies)
	}
}

func TestIsScreenshotSource(t *testing.T) {
	tests := []struct {
		name     string
		icc      *imaging.ICCProfile
		software string
		want     bool
	}{
		{"monitor profile", &imaging.ICCProfile{Description: "Samsung LU28R55"}, "", true},
		{"capture software", nil, "Snipping Tool", true},
		{"camera photo", nil, "Adobe Lightroom", false},
		{"no evidence", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := &Artifacts{
				ICC:  tt.icc,
				Exif: exifmeta.Map{"Software": tt.software},
				Cfg:  mvCfg,
			}
			if got := isScreenshotSource(art); got != tt.want {
				t.Errorf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestAnalyzeIntrinsicScreenshotGating(t *testing.T) {
	art := synthArtifacts(synthImage(64, 64, flatFill(128)), nil)
	art.ICC = &imaging.ICCProfile{Description: "Dell U2720Q", Size: 560}

	rep := AnalyzeIntrinsic(context.Background(), art)
	if rep.Details["screenshot"] != "true" {
		t.Fatal("expected screenshot source to be recognized")
	}
	if len(rep.Checks) != 4 {
		t.Errorf("screenshots skip the provenance sub-checks, expected 4 checks, got %d", len(rep.Checks))
	}
}

func TestAnalyzeIntrinsicFullSuite(t *testing.T) {
	art := synthArtifacts(synthImage(64, 64, flatFill(128)), nil)

	rep := AnalyzeIntrinsic(context.Background(), art)
	if rep.Details["screenshot"] != "false" {
		t.Fatal("flat image is not a screenshot source")
	}
	if len(rep.Checks) != 7 {
		t.Errorf("expected all 7 sub-checks, got %d", len(rep.Checks))
	}
	if rep.Score < 0 || rep.Score > 1 {
		t.Errorf("score out of range: %v", rep.Score)
	}
}

func TestAnalyzeIntrinsicCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	art := synthArtifacts(synthImage(64, 64, flatFill(128)), nil)
	rep := AnalyzeIntrinsic(ctx, art)
	if !rep.TerminalError || rep.Score != 0.5 {
		t.Errorf("expected neutral report on cancelled context, got %+v", rep)
	}
}
