// Package exifmeta parses image metadata into a flat key→string map.
//
// Two sources feed the map: the built-in parser over standard EXIF IFDs
// and an optional extended reader that understands MakerNote and XMP
// namespaces (keys prefixed "MakerNotes:", "Composite:", "XMP:").
// Extended values override built-in values on key conflicts. Malformed
// EXIF never fails a request: unreadable fields simply stay absent.
package exifmeta

import (
	"bytes"
	"context"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/truthsnap/forensics-engine/pkg/models"
)

// Map holds textual tag name → string value. Keys are case-sensitive.
type Map map[string]string

// ExtendedReader surfaces vendor namespaces the built-in parser cannot
// reach. Implementations may perform I/O and must honor the context.
type ExtendedReader interface {
	ReadAll(ctx context.Context, raw []byte) (Map, error)
}

// Read parses standard EXIF IFDs. It never returns an error: images
// without EXIF (or with broken EXIF) yield an empty map.
func Read(raw []byte) Map {
	out := make(Map)
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil || x == nil {
		return out
	}
	_ = x.Walk(walkFunc(func(name exif.FieldName, tag *tiff.Tag) error {
		key := string(name)
		if strings.HasPrefix(key, "GPS") {
			// GPS IFD is decoded separately into decimal coordinates.
			return nil
		}
		out[key] = tagValue(tag)
		return nil
	}))
	return out
}

// ReadGPS decodes the GPS IFD into decimal degrees. Invalid or missing
// DMS triples yield nil ("no GPS"), never an error.
func ReadGPS(raw []byte) *models.GPSInfo {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil || x == nil {
		return nil
	}
	lat, long, err := x.LatLong()
	if err != nil {
		return nil
	}
	info := &models.GPSInfo{Latitude: lat, Longitude: long}
	if tag, err := x.Get(exif.GPSAltitude); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			info.Altitude = float64(num) / float64(den)
		}
	}
	return info
}

// Merge overlays extended values on the base map. The base map is not
// mutated.
func Merge(base, extended Map) Map {
	out := make(Map, len(base)+len(extended))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extended {
		out[k] = v
	}
	return out
}

// Get is a nil-safe lookup.
func (m Map) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}

// GetAny returns the first non-empty value among keys.
func (m Map) GetAny(keys ...string) string {
	for _, k := range keys {
		if v := m.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// HasAny reports whether any of the keys is present, even empty.
func (m Map) HasAny(keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// XMPPacket returns the raw XML between <x:xmpmeta ...> and
// </x:xmpmeta>, or "" when no packet is embedded. AI-marker searches
// are restricted to this window so that pixel data cannot alias as a
// metadata hit.
func XMPPacket(raw []byte) string {
	start := bytes.Index(raw, []byte("<x:xmpmeta"))
	if start < 0 {
		return ""
	}
	end := bytes.Index(raw[start:], []byte("</x:xmpmeta>"))
	if end < 0 {
		return ""
	}
	return string(raw[start : start+end+len("</x:xmpmeta>")])
}

// tagValue renders a tag as a plain string. ASCII tags come back
// unquoted; everything else uses the library's literal rendering.
func tagValue(tag *tiff.Tag) string {
	if s, err := tag.StringVal(); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.Trim(tag.String(), "\"")
}

type walkFunc func(exif.FieldName, *tiff.Tag) error

func (f walkFunc) Walk(name exif.FieldName, tag *tiff.Tag) error {
	return f(name, tag)
}
