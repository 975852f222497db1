package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/jdeng/goheif"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// ─── Format sniffing ────────────────────────────────────────────────

type Format string

const (
	FormatJPEG  Format = "JPEG"
	FormatPNG   Format = "PNG"
	FormatMPO   Format = "MPO"
	FormatHEIC  Format = "HEIC"
	FormatWEBP  Format = "WEBP"
	FormatOther Format = "OTHER"
)

// ErrInvalidFormat is the only fatal decode error: the pipeline refuses
// to run detectors over bytes it cannot turn into pixels.
var ErrInvalidFormat = errors.New("invalid or unsupported image format")

// Downsample caps used by the detectors. Decode happens once at full
// resolution; each consumer derives its view lazily.
const (
	CapFrequency = 2048 // frequency-domain and face analysis
	CapIntrinsic = 1536 // intrinsic pixel analysis
	CapPeriodic  = 512  // GAN-fingerprint periodic sampling
)

// Image is the decoded input shared read-only by every detector.
type Image struct {
	Raw    []byte
	Format Format
	Pixels *image.NRGBA
	Width  int
	Height int

	mu     sync.Mutex
	scaled map[int]*image.NRGBA
}

// SniffFormat inspects magic bytes without decoding.
func SniffFormat(raw []byte) Format {
	switch {
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xD8:
		if hasMPFSegment(raw) {
			return FormatMPO
		}
		return FormatJPEG
	case len(raw) >= 8 && bytes.Equal(raw[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return FormatPNG
	case len(raw) >= 12 && bytes.Equal(raw[:4], []byte("RIFF")) && bytes.Equal(raw[8:12], []byte("WEBP")):
		return FormatWEBP
	case isHEIC(raw):
		return FormatHEIC
	default:
		return FormatOther
	}
}

// isHEIC checks the ISO-BMFF ftyp brand.
func isHEIC(raw []byte) bool {
	if len(raw) < 12 || !bytes.Equal(raw[4:8], []byte("ftyp")) {
		return false
	}
	brand := string(raw[8:12])
	switch brand {
	case "heic", "heix", "hevc", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}

// hasMPFSegment detects the multi-picture APP2 marker that iPhones emit.
// MPO files decode as plain JPEG: the first frame is the primary image.
func hasMPFSegment(raw []byte) bool {
	// Walk the marker stream up to the scan data.
	i := 2
	for i+4 <= len(raw) {
		if raw[i] != 0xFF {
			return false
		}
		marker := raw[i+1]
		if marker == 0xDA { // SOS, pixel data follows
			return false
		}
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01 {
			i += 2
			continue
		}
		segLen := int(raw[i+2])<<8 | int(raw[i+3])
		if marker == 0xE2 && i+4+4 <= len(raw) && bytes.Equal(raw[i+4:i+8], []byte("MPF\x00")) {
			return true
		}
		i += 2 + segLen
	}
	return false
}

// Decode turns the byte buffer into the shared pixel matrix. Unknown or
// undecodable formats return ErrInvalidFormat. HEIC is converted to an
// in-memory JPEG with the EXIF block carried over, so the byte-level
// extractors keep working.
func Decode(raw []byte) (*Image, error) {
	format := SniffFormat(raw)

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG, FormatMPO:
		// jpeg.Decode stops at the first EOI, which for MPO is exactly
		// the primary frame.
		img, err = jpeg.Decode(bytes.NewReader(raw))
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(raw))
	case FormatWEBP:
		img, err = webp.Decode(bytes.NewReader(raw))
	case FormatHEIC:
		return decodeHEIC(raw)
	default:
		return nil, fmt.Errorf("%w: unrecognized container", ErrInvalidFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	pixels := toNRGBA(img)
	b := pixels.Bounds()
	return &Image{
		Raw:    raw,
		Format: format,
		Pixels: pixels,
		Width:  b.Dx(),
		Height: b.Dy(),
		scaled: make(map[int]*image.NRGBA),
	}, nil
}

// decodeHEIC converts the container to JPEG in memory. Raw holds the
// converted bytes with the original EXIF spliced back in; Format keeps
// the sniffed container so JPEG-only checks (quantization fingerprints)
// do not score the re-encode.
func decodeHEIC(raw []byte) (*Image, error) {
	img, err := goheif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	pixels := toNRGBA(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pixels, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	converted := buf.Bytes()
	if exifBlock, err := goheif.ExtractExif(bytes.NewReader(raw)); err == nil && len(exifBlock) > 0 {
		converted = spliceExifAPP1(converted, exifBlock)
	}

	b := pixels.Bounds()
	return &Image{
		Raw:    converted,
		Format: FormatHEIC,
		Pixels: pixels,
		Width:  b.Dx(),
		Height: b.Dy(),
		scaled: make(map[int]*image.NRGBA),
	}, nil
}

// spliceExifAPP1 inserts the EXIF block as an APP1 segment right after
// the SOI marker. Blocks too large for one segment are dropped.
func spliceExifAPP1(jpg, exifBlock []byte) []byte {
	if len(jpg) < 2 || len(exifBlock) == 0 {
		return jpg
	}
	payload := exifBlock
	if !bytes.HasPrefix(payload, []byte("Exif\x00\x00")) {
		payload = append([]byte("Exif\x00\x00"), exifBlock...)
	}
	segLen := len(payload) + 2
	if segLen > 0xFFFF {
		return jpg
	}
	out := make([]byte, 0, len(jpg)+4+len(payload))
	out = append(out, jpg[:2]...)
	out = append(out, 0xFF, 0xE1, byte(segLen>>8), byte(segLen))
	out = append(out, payload...)
	return append(out, jpg[2:]...)
}

// Downsample returns a view capped at maxDim on the longest side, scaled
// with Catmull-Rom resampling. Views are cached per cap; the full-size
// matrix is returned untouched when it already fits.
func (im *Image) Downsample(maxDim int) *image.NRGBA {
	if im.Width <= maxDim && im.Height <= maxDim {
		return im.Pixels
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	if cached, ok := im.scaled[maxDim]; ok {
		return cached
	}

	w, h := im.Width, im.Height
	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), im.Pixels, im.Pixels.Bounds(), draw.Src, nil)
	im.scaled[maxDim] = dst
	return dst
}

// Gray returns the channel-mean grayscale matrix of a view capped at
// maxDim, values in [0,255].
func (im *Image) Gray(maxDim int) [][]float64 {
	return GrayMatrix(im.Downsample(maxDim))
}

// GrayMatrix converts RGB8 pixels to a float matrix by channel mean.
func GrayMatrix(src *image.NRGBA) [][]float64 {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			p := src.Pix[off+x*4 : off+x*4+3]
			row[x] = (float64(p[0]) + float64(p[1]) + float64(p[2])) / 3.0
		}
		out[y] = row
	}
	return out
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
