// Package engine orchestrates one verification request: decode, fan
// out the detectors, fuse the verdict and shape the response.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/truthsnap/forensics-engine/internal/config"
	"github.com/truthsnap/forensics-engine/internal/detectors"
	"github.com/truthsnap/forensics-engine/internal/exifmeta"
	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// Options tunes a single request beyond mode and detail level.
type Options struct {
	// ExtendedExif carries sidecar metadata preserved by the upload
	// channel when the transport itself strips EXIF.
	ExtendedExif exifmeta.Map

	// SourcePlatform names a known re-encoding platform ("linkedin",
	// "instagram") so the messaging fingerprint is not double-counted.
	SourcePlatform string
}

// Engine is the verification pipeline. Safe for concurrent use.
type Engine struct {
	cfg  *config.Config
	exec *detectors.Executor
}

func New(cfg *config.Config, ocr detectors.TextExtractor, faces detectors.FaceFinder, probers ...detectors.WatermarkProber) *Engine {
	return &Engine{
		cfg:  cfg,
		exec: detectors.NewExecutor(cfg, ocr, faces, probers...),
	}
}

// Verify runs the full pipeline over one image. A decode failure is
// the only fatal error; any detector failure degrades to a neutral
// report inside the executor.
func (e *Engine) Verify(ctx context.Context, raw []byte, mode models.Mode, detail models.Detail, opts Options) (*models.VerifyResult, error) {
	start := time.Now()
	requestID := uuid.NewString()

	img, err := imaging.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	art := detectors.BuildArtifacts(img, opts.ExtendedExif, mode, e.cfg)
	art.SourcePlatform = opts.SourcePlatform

	res := e.exec.Run(ctx, art)
	verdict := detectors.Fuse(res, art)

	log.Printf("[Engine] request=%s format=%s verdict=%s confidence=%.4f elapsed=%s",
		requestID, img.Format, verdict.Status, verdict.Confidence, time.Since(start))

	out := &models.VerifyResult{
		RequestID:         requestID,
		Verdict:           verdict.Status,
		Confidence:        round4(verdict.Confidence),
		Reason:            verdict.Reason,
		WatermarkDetected: res.Crypto.Hit.Detected,
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
	}
	if res.Crypto.Hit.Detected {
		hit := res.Crypto.Hit
		out.WatermarkAnalysis = &hit
	}
	if res.Visual.Hit.Detected || res.Visual.Hit.Note != "" {
		hit := res.Visual.Hit
		out.VisualWatermark = &hit
	}

	if detail == models.DetailDetailed {
		e.attachEvidence(out, art, res)
	}
	return out, nil
}

// attachEvidence fills the DETAILED sections from the raw reports.
func (e *Engine) attachEvidence(out *models.VerifyResult, art *detectors.Artifacts, res *detectors.Results) {
	out.Findings = collectFindings(res)
	out.Metadata = &models.MetadataSummary{
		Exif: art.Exif,
		GPS:  art.GPS,
	}
	out.AISignatures = detectors.AISignatures(res.Heuristic)

	validation := res.Metadata
	out.MetadataValidation = &validation
	fft := res.Frequency
	out.FFTAnalysis = &fft
	faceSwap := res.FaceSwap
	out.FaceSwapAnalysis = &faceSwap
	intrinsic := res.Intrinsic
	out.IntrinsicAnalysis = &intrinsic
}

// collectFindings flattens every check into one list, detector order
// fixed so responses are byte-stable for identical inputs.
func collectFindings(res *detectors.Results) []models.Check {
	var all []models.Check
	for _, report := range []models.DetectorReport{
		res.Heuristic,
		res.Metadata.DetectorReport,
		res.Visual.Report,
		res.Crypto.Report,
		res.Frequency,
		res.FaceSwap.DetectorReport,
		res.Intrinsic,
	} {
		all = append(all, report.Checks...)
	}
	return all
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
