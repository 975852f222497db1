package detectors

// Cryptographic watermark probe: plug-point for content-credential
// schemes (C2PA manifests, SynthID-class embeddings, Meta invisible
// marks). The built-in probe only performs a structural scan for a
// C2PA JUMBF manifest box; richer probes implement WatermarkProber and
// may call out over the network, bounded by the executor's deadline.

import (
	"bytes"
	"context"

	"github.com/truthsnap/forensics-engine/pkg/models"
)

// CWResult pairs the uniform report with the structured hit.
type CWResult struct {
	Report models.DetectorReport
	Hit    models.WatermarkHit
}

// CryptoWatermark chains the configured probers; the first positive
// detection wins.
type CryptoWatermark struct {
	probers []WatermarkProber
}

func NewCryptoWatermark(probers ...WatermarkProber) *CryptoWatermark {
	if len(probers) == 0 {
		probers = []WatermarkProber{C2PAProbe{}}
	}
	return &CryptoWatermark{probers: probers}
}

// Probe never panics on absence; prober errors are swallowed as
// negative evidence.
func (d *CryptoWatermark) Probe(ctx context.Context, art *Artifacts) CWResult {
	for _, p := range d.probers {
		hit, err := p.Probe(ctx, art.Image.Raw)
		if err != nil {
			continue
		}
		if hit.Detected {
			return CWResult{
				Report: models.DetectorReport{
					Detector: NameCryptoWatermark,
					Score:    1.0,
					Checks: []models.Check{{
						Layer:      "Content Credentials",
						Status:     models.StatusFail,
						Score:      1.0,
						Reason:     "embedded credential detected: " + hit.Type,
						Confidence: hit.Confidence,
					}},
				},
				Hit: hit,
			}
		}
	}
	return CWResult{
		Report: models.DetectorReport{
			Detector: NameCryptoWatermark,
			Score:    0.0,
			Checks: []models.Check{{
				Layer:      "Content Credentials",
				Status:     models.StatusPass,
				Score:      0,
				Reason:     "no embedded credentials",
				Confidence: 0.5,
			}},
		},
		Hit: models.WatermarkHit{Detected: false},
	}
}

// C2PAProbe scans for the JUMBF superbox that carries a C2PA manifest
// (APP11 in JPEG, "jumb" box elsewhere). Presence of a manifest is a
// provenance statement, not a validated signature chain; confidence is
// capped accordingly.
type C2PAProbe struct{}

func (C2PAProbe) Probe(ctx context.Context, raw []byte) (models.WatermarkHit, error) {
	if err := ctx.Err(); err != nil {
		return models.WatermarkHit{}, err
	}
	for _, needle := range [][]byte{
		[]byte("c2pa"),
		[]byte("jumb"),
		[]byte("contentauth"),
	} {
		if idx := bytes.Index(raw, needle); idx >= 0 && looksLikeManifest(raw, idx) {
			return models.WatermarkHit{
				Detected:   true,
				Type:       "c2pa",
				Confidence: 0.95,
				Method:     "structural_probe",
				Metadata:   map[string]string{"marker": string(needle)},
			}, nil
		}
	}
	return models.WatermarkHit{Detected: false}, nil
}

// looksLikeManifest requires the token to sit inside a plausible box
// header rather than in pixel data: a four-byte big-endian length
// immediately precedes an ISO-BMFF style type, or the token follows a
// JPEG APP11 marker within segment range.
func looksLikeManifest(raw []byte, idx int) bool {
	if idx >= 4 {
		boxLen := int(raw[idx-4])<<24 | int(raw[idx-3])<<16 | int(raw[idx-2])<<8 | int(raw[idx-1])
		if boxLen >= 8 && idx-4+boxLen <= len(raw) {
			return true
		}
	}
	// APP11 marker within 64 bytes back
	start := idx - 64
	if start < 0 {
		start = 0
	}
	return bytes.Contains(raw[start:idx], []byte{0xFF, 0xEB})
}
