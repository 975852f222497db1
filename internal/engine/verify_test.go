package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/google/uuid"

	"github.com/truthsnap/forensics-engine/internal/config"
	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

type fakeOCR struct {
	text string
}

func (f *fakeOCR) ExtractSparseText(ctx context.Context, img *imaging.Image) (string, error) {
	return f.text, nil
}

func (f *fakeOCR) Available() bool { return true }

func testPNG(t *testing.T) []byte {
	t.Helper()
	pix := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := 0; i < len(pix.Pix); i += 4 {
		pix.Pix[i] = 120
		pix.Pix[i+1] = 130
		pix.Pix[i+2] = 125
		pix.Pix[i+3] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, pix); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestVerifyRejectsUndecodableInput(t *testing.T) {
	e := New(config.MustLoad(), nil, nil)

	out, err := e.Verify(context.Background(), []byte("not an image"), models.ModePhoto, models.DetailBasic, Options{})
	if !errors.Is(err, imaging.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if out != nil {
		t.Errorf("expected nil result on decode failure, got %+v", out)
	}
}

func TestVerifyBasic(t *testing.T) {
	e := New(config.MustLoad(), nil, nil)

	out, err := e.Verify(context.Background(), testPNG(t), models.ModePhoto, models.DetailBasic, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := uuid.Parse(out.RequestID); err != nil {
		t.Errorf("request id must be a UUID, got %q", out.RequestID)
	}
	switch out.Verdict {
	case models.VerdictReal, models.VerdictAIGenerated, models.VerdictManipulated, models.VerdictInconclusive:
	default:
		t.Errorf("unexpected verdict %q", out.Verdict)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		t.Errorf("confidence out of range: %v", out.Confidence)
	}
	if out.WatermarkDetected {
		t.Error("flat synthetic PNG carries no watermark")
	}
	if out.VisualWatermark == nil || out.VisualWatermark.Note != "ocr_unavailable" {
		t.Errorf("expected the soft OCR-miss note, got %+v", out.VisualWatermark)
	}
	if out.Findings != nil || out.MetadataValidation != nil {
		t.Error("BASIC responses must not carry detailed evidence")
	}
}

func TestVerifyVisualWatermarkOnly(t *testing.T) {
	// A provider overlay read off the pixels condemns the image, but the
	// top-level flag tracks the cryptographic watermark alone.
	e := New(config.MustLoad(), &fakeOCR{text: "Midjourney"}, nil)

	out, err := e.Verify(context.Background(), testPNG(t), models.ModePhoto, models.DetailBasic, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if out.Verdict != models.VerdictAIGenerated || out.Confidence != 0.98 {
		t.Errorf("expected ai_generated@0.98, got %s@%v", out.Verdict, out.Confidence)
	}
	if out.WatermarkDetected {
		t.Error("watermark flag is reserved for cryptographic hits")
	}
	if out.WatermarkAnalysis != nil {
		t.Errorf("no cryptographic section without a cryptographic hit, got %+v", out.WatermarkAnalysis)
	}
	if out.VisualWatermark == nil || !out.VisualWatermark.Detected {
		t.Errorf("expected the visual hit section, got %+v", out.VisualWatermark)
	}
	if out.VisualWatermark != nil && out.VisualWatermark.Provider != "midjourney" {
		t.Errorf("expected provider midjourney, got %q", out.VisualWatermark.Provider)
	}
}

func TestVerifyDetailed(t *testing.T) {
	e := New(config.MustLoad(), nil, nil)

	out, err := e.Verify(context.Background(), testPNG(t), models.ModePhoto, models.DetailDetailed, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(out.Findings) == 0 {
		t.Error("expected flattened findings")
	}
	if out.Metadata == nil {
		t.Error("expected the metadata summary")
	}
	if out.MetadataValidation == nil || out.MetadataValidation.RiskLevel == "" {
		t.Errorf("expected a classified validator report, got %+v", out.MetadataValidation)
	}
	if out.FFTAnalysis == nil || out.FaceSwapAnalysis == nil || out.IntrinsicAnalysis == nil {
		t.Error("expected every per-detector section to be attached")
	}
}

func TestRound4(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0.12344, 0.1234},
		{0.86457, 0.8646},
		{1, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round4(tt.in); got != tt.want {
			t.Errorf("round4(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
