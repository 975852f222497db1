// Package detectors implements the forensic analyzers and the executor
// that fans them out over a single decoded image.
//
// Every analyzer is a pure function over shared immutable artifacts:
// the decoded pixels, the parsed EXIF map, the JPEG quantization
// tables, and the static configuration. Analyzers never mutate the
// artifacts and never touch process-global state, so a request is
// reproducible given identical inputs.
package detectors

import (
	"context"
	"strings"

	"github.com/truthsnap/forensics-engine/internal/config"
	"github.com/truthsnap/forensics-engine/internal/exifmeta"
	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// Detector identities. The executor orders results by these names, not
// by completion order.
const (
	NameHeuristic       = "heuristic"
	NameMetadata        = "metadata_validator"
	NameVisualWatermark = "visual_watermark"
	NameCryptoWatermark = "crypto_watermark"
	NameFrequency       = "frequency"
	NameFaceSwap        = "face_swap"
	NameIntrinsic       = "intrinsic"
)

// Artifacts is the per-request shared state handed to each analyzer.
// All fields are read-only after construction.
type Artifacts struct {
	Image   *imaging.Image
	Exif    exifmeta.Map
	GPS     *models.GPSInfo
	XMP     string
	QTables []imaging.QTable
	ICC     *imaging.ICCProfile
	Mode    models.Mode
	Cfg     *config.Config

	// SourcePlatform suppresses the messaging-app fingerprint when the
	// upload is known to come from a social network re-encode.
	SourcePlatform string
}

// BuildArtifacts decodes headers once and assembles the shared state.
// The pixel matrix must already be decoded by the caller.
func BuildArtifacts(img *imaging.Image, extended exifmeta.Map, mode models.Mode, cfg *config.Config) *Artifacts {
	base := exifmeta.Read(img.Raw)
	merged := exifmeta.Merge(base, extended)
	return &Artifacts{
		Image:   img,
		Exif:    merged,
		GPS:     exifmeta.ReadGPS(img.Raw),
		XMP:     exifmeta.XMPPacket(img.Raw),
		QTables: imaging.ExtractQuantTables(img.Raw),
		ICC:     imaging.ExtractICCProfile(img.Raw),
		Mode:    mode,
		Cfg:     cfg,
	}
}

// ClaimedCamera is the device identity asserted by EXIF, lowercased,
// or "" when the image claims nothing.
func (a *Artifacts) ClaimedCamera() string {
	mk := a.Exif.Get("Make")
	model := a.Exif.Get("Model")
	s := strings.TrimSpace(mk + " " + model)
	return strings.ToLower(s)
}

// IsIPhone reports whether the EXIF claims an Apple phone.
func (a *Artifacts) IsIPhone() bool {
	model := strings.ToLower(a.Exif.Get("Model"))
	make := strings.ToLower(a.Exif.Get("Make"))
	return strings.Contains(model, "iphone") || (strings.Contains(make, "apple") && model != "")
}

// TextExtractor is the OCR collaborator for the visual watermark
// detector. Empty output means "nothing readable", not failure.
type TextExtractor interface {
	ExtractSparseText(ctx context.Context, img *imaging.Image) (string, error)
	Available() bool
}

// FaceBox is an axis-aligned detection with confidence.
type FaceBox struct {
	X0, Y0, X1, Y1 int
	Confidence     float64
}

// FaceFinder is the face-detection collaborator for the face-swap
// analyzer. An empty slice means no faces.
type FaceFinder interface {
	DetectFaces(ctx context.Context, img *imaging.Image) ([]FaceBox, error)
	Available() bool
}

// WatermarkProber is the cryptographic watermark plug-point
// (content credentials, SynthID-class probes). Implementations must
// not fail on absence and must honor the context deadline.
type WatermarkProber interface {
	Probe(ctx context.Context, raw []byte) (models.WatermarkHit, error)
}

// weightedMean folds per-check scores with fixed confidences.
func weightedMean(checks []models.Check) float64 {
	var sum, wsum float64
	for _, c := range checks {
		sum += c.Score * c.Confidence
		wsum += c.Confidence
	}
	if wsum == 0 {
		return 0.5
	}
	return sum / wsum
}

// statusForScore maps a suspicion score to a check status.
func statusForScore(score float64) string {
	switch {
	case score >= 0.7:
		return models.StatusFail
	case score >= 0.5:
		return models.StatusWarn
	default:
		return models.StatusPass
	}
}
