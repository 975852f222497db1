// Package faces adapts the pigo cascade classifier to the detector's
// face-finding contract. The cascade file is loaded once at startup
// from FACE_CASCADE_PATH; without it the face-swap analyzer falls back
// to its coarse central box.
package faces

import (
	"context"
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/truthsnap/forensics-engine/internal/detectors"
	"github.com/truthsnap/forensics-engine/internal/imaging"
)

// qualityThreshold filters weak cascade responses; pigo's own examples
// use 5.0 for frontal faces.
const qualityThreshold = 5.0

// Finder wraps an unpacked pigo classifier. Box coordinates are
// reported in the 2048-cap view's pixel space, matching what the
// face-swap analyzer operates on.
type Finder struct {
	classifier *pigo.Pigo
}

// Load reads and unpacks the cascade at path.
func Load(path string) (*Finder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade: %w", err)
	}
	return &Finder{classifier: classifier}, nil
}

// LoadFromEnv loads the cascade named by FACE_CASCADE_PATH, returning
// nil when the variable is unset.
func LoadFromEnv() (*Finder, error) {
	path := os.Getenv("FACE_CASCADE_PATH")
	if path == "" {
		return nil, nil
	}
	return Load(path)
}

func (f *Finder) Available() bool {
	return f != nil && f.classifier != nil
}

// DetectFaces runs the cascade over the grayscale view and clusters
// the raw detections.
func (f *Finder) DetectFaces(ctx context.Context, img *imaging.Image) ([]detectors.FaceBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := img.Downsample(imaging.CapFrequency)
	b := view.Bounds()
	rows, cols := b.Dy(), b.Dx()

	pixels := make([]uint8, rows*cols)
	for y := 0; y < rows; y++ {
		off := view.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < cols; x++ {
			r := int(view.Pix[off])
			g := int(view.Pix[off+1])
			bl := int(view.Pix[off+2])
			pixels[y*cols+x] = uint8((299*r + 587*g + 114*bl) / 1000)
			off += 4
		}
	}

	minSize := rows / 10
	if cols/10 < minSize {
		minSize = cols / 10
	}
	if minSize < 20 {
		minSize = 20
	}
	params := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     max(rows, cols),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := f.classifier.RunCascade(params, 0.0)
	dets = f.classifier.ClusterDetections(dets, 0.2)

	var boxes []detectors.FaceBox
	for _, d := range dets {
		if d.Q < qualityThreshold {
			continue
		}
		half := d.Scale / 2
		boxes = append(boxes, detectors.FaceBox{
			X0:         d.Col - half,
			Y0:         d.Row - half,
			X1:         d.Col + half,
			Y1:         d.Row + half,
			Confidence: minFloat(1, float64(d.Q)/10),
		})
	}
	return boxes, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
