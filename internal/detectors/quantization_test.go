package detectors

import (
	"strings"
	"testing"

	"github.com/truthsnap/forensics-engine/internal/exifmeta"
	"github.com/truthsnap/forensics-engine/internal/imaging"
)

func uniformTable(v int) imaging.QTable {
	var t imaging.QTable
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			t.Values[y][x] = v
		}
	}
	return t
}

// spikeTable concentrates all weight in the DC coefficient; no real
// encoder and no known fingerprint looks like this.
func spikeTable() imaging.QTable {
	t := uniformTable(1)
	t.Values[0][0] = 255
	return t
}

func jpegArtifacts(table imaging.QTable, exif map[string]string) *Artifacts {
	return &Artifacts{
		Image:   &imaging.Image{Format: imaging.FormatJPEG},
		QTables: []imaging.QTable{table},
		Exif:    exifmeta.Map(exif),
		Cfg:     mvCfg,
	}
}

func TestTableSimilarity(t *testing.T) {
	base := uniformTable(16).Flat()
	if got := tableSimilarity(base, base); got < 0.999 {
		t.Errorf("identical tables should be ~1.0, got %v", got)
	}

	doubled := uniformTable(32).Flat()
	if got := tableSimilarity(base, doubled); got < 0.999 {
		t.Errorf("cosine similarity is scale invariant, got %v", got)
	}

	if got := tableSimilarity([]int{1, 0}, []int{0, 1}); got != 0 {
		t.Errorf("orthogonal tables should be 0, got %v", got)
	}
	if got := tableSimilarity([]int{1, 2}, []int{1, 2, 3}); got != 0 {
		t.Errorf("length mismatch should be 0, got %v", got)
	}
}

func TestTableStd(t *testing.T) {
	if got := tableStd(uniformTable(16).Flat()); got != 0 {
		t.Errorf("uniform table has zero std, got %v", got)
	}
	if got := tableStd([]int{1, 3, 1, 3}); got != 1 {
		t.Errorf("expected std 1, got %v", got)
	}
}

func TestEstimateQuality(t *testing.T) {
	tests := []struct {
		name  string
		table imaging.QTable
		want  int
	}{
		{"ijg baseline is quality 50", imaging.QTable{Values: ijgBaseline}, 50},
		{"doubled baseline is quality 25", doubledBaseline(), 25},
		{"near-lossless table", uniformTable(1), 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateQuality(tt.table); got != tt.want {
				t.Errorf("expected quality %d, got %d", tt.want, got)
			}
		})
	}
}

func doubledBaseline() imaging.QTable {
	var t imaging.QTable
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			t.Values[y][x] = ijgBaseline[y][x] * 2
		}
	}
	return t
}

func TestCheckQuantizationSkipsNonJPEG(t *testing.T) {
	art := &Artifacts{
		Image: &imaging.Image{Format: imaging.FormatPNG},
		Cfg:   mvCfg,
	}
	r := checkQuantization(art)
	if r.score != 0 || r.anomalies || len(r.flags) != 0 {
		t.Errorf("non-JPEG container carries no tables to check, got %+v", r)
	}
}

func TestCheckQuantizationMissingTables(t *testing.T) {
	art := &Artifacts{
		Image: &imaging.Image{Format: imaging.FormatJPEG},
		Cfg:   mvCfg,
	}
	r := checkQuantization(art)
	if r.score != 20 {
		t.Errorf("expected +20 for missing tables, got %v", r.score)
	}
	if r.anomalies {
		t.Error("missing tables alone must not count as an anomaly")
	}
}

func TestCheckQuantizationAIPattern(t *testing.T) {
	// The all-ones table is the seeded Midjourney fingerprint; it is
	// also implausibly uniform and estimates as near-lossless.
	r := checkQuantization(jpegArtifacts(uniformTable(1), nil))

	if !hasIntrinsicFlag(r, "AI generation pattern detected: midjourney") {
		t.Fatalf("expected AI pattern flag, got %v", r.flags)
	}
	if !hasIntrinsicFlag(r, "implausibly uniform table") {
		t.Errorf("expected uniformity flag, got %v", r.flags)
	}
	if r.score != 90 {
		t.Errorf("expected 50+30+10, got %v", r.score)
	}
	if !r.anomalies {
		t.Error("expected anomalies")
	}
}

func TestCheckQuantizationCameraMismatch(t *testing.T) {
	r := checkQuantization(jpegArtifacts(spikeTable(), map[string]string{
		"Make":  "Apple",
		"Model": "iPhone 14 Pro",
	}))

	if !hasIntrinsicFlag(r, "quantization tables do not match apple iphone 14 pro") {
		t.Fatalf("expected fingerprint mismatch flag, got %v", r.flags)
	}
	if !r.anomalies {
		t.Error("expected anomalies")
	}
}

func TestCheckQuantizationMatchingCamera(t *testing.T) {
	// The stored iPhone 14 Pro fingerprint against itself must not
	// trigger the mismatch path.
	pattern, ok := mvCfg.Quantization.Lookup("iphone 14 pro")
	if !ok {
		t.Fatal("seed database is missing the iphone 14 pro fingerprint")
	}
	var table imaging.QTable
	for i, v := range pattern.Luminance {
		table.Values[i/8][i%8] = v
	}

	r := checkQuantization(jpegArtifacts(table, map[string]string{
		"Make":  "Apple",
		"Model": "iPhone 14 Pro",
	}))
	if hasIntrinsicFlag(r, "do not match") {
		t.Errorf("matching fingerprint must not flag, got %v", r.flags)
	}
}

func hasIntrinsicFlag(r intrinsicResult, substr string) bool {
	for _, f := range r.flags {
		if strings.Contains(f, substr) {
			return true
		}
	}
	return false
}
