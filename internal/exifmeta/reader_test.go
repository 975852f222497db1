package exifmeta

import "testing"

func TestReadMalformedInput(t *testing.T) {
	m := Read([]byte("no exif here"))
	if m == nil {
		t.Fatal("Read must return an empty map, never nil")
	}
	if len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestReadGPSMalformedInput(t *testing.T) {
	if gps := ReadGPS([]byte("no exif here")); gps != nil {
		t.Errorf("expected nil GPS, got %+v", gps)
	}
}

func TestMerge(t *testing.T) {
	base := Map{"Make": "Apple", "Model": "iPhone 14 Pro"}
	extended := Map{"Model": "iPhone 14 Pro Max", "XMP:CreatorTool": "Lightroom"}

	merged := Merge(base, extended)
	if merged["Make"] != "Apple" {
		t.Errorf("base-only key lost: %v", merged)
	}
	if merged["Model"] != "iPhone 14 Pro Max" {
		t.Errorf("extended value must win on conflict, got %q", merged["Model"])
	}
	if merged["XMP:CreatorTool"] != "Lightroom" {
		t.Errorf("extended-only key lost: %v", merged)
	}
	if base["Model"] != "iPhone 14 Pro" {
		t.Error("Merge must not mutate the base map")
	}
}

func TestGetNilSafe(t *testing.T) {
	var m Map
	if got := m.Get("Make"); got != "" {
		t.Errorf("nil map lookup should be empty, got %q", got)
	}
}

func TestGetAny(t *testing.T) {
	m := Map{"Software": "", "XMP:CreatorTool": "Midjourney"}
	if got := m.GetAny("Software", "XMP:CreatorTool"); got != "Midjourney" {
		t.Errorf("expected first non-empty value, got %q", got)
	}
	if got := m.GetAny("Missing", "AlsoMissing"); got != "" {
		t.Errorf("expected empty on full miss, got %q", got)
	}
}

func TestHasAny(t *testing.T) {
	m := Map{"Software": ""}
	if !m.HasAny("Software") {
		t.Error("present-but-empty key must count")
	}
	if m.HasAny("Make", "Model") {
		t.Error("absent keys must not count")
	}
}

func TestXMPPacket(t *testing.T) {
	packet := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF/></x:xmpmeta>`
	raw := append([]byte{0xFF, 0xD8}, []byte("junk"+packet+"trailer")...)

	if got := XMPPacket(raw); got != packet {
		t.Errorf("expected the full packet, got %q", got)
	}
}

func TestXMPPacketMissingDelimiters(t *testing.T) {
	if got := XMPPacket([]byte("<x:xmpmeta unterminated")); got != "" {
		t.Errorf("unterminated packet must be ignored, got %q", got)
	}
	if got := XMPPacket([]byte("plain bytes")); got != "" {
		t.Errorf("expected empty without a packet, got %q", got)
	}
}
