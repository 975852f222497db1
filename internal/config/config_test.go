package config

import "testing"

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("embedded tables must parse: %v", err)
	}

	tool, ok := cfg.TrustedSoftware["lightroom"]
	if !ok {
		t.Fatal("expected lightroom in the trusted-software table")
	}
	if tool.Reduction != 50 || tool.TrustLevel != "high" {
		t.Errorf("unexpected lightroom entry: %+v", tool)
	}

	found := false
	for _, name := range cfg.AITools {
		if name == "midjourney" {
			found = true
		}
	}
	if !found {
		t.Error("expected midjourney in the AI tool list")
	}

	if len(cfg.Watermarks.AI) == 0 || len(cfg.Watermarks.Stock) == 0 {
		t.Error("watermark dictionaries must not be empty")
	}
	if len(cfg.Platforms.MonitorKeywords) == 0 || len(cfg.Platforms.SocialPlatforms) == 0 {
		t.Error("platform profiles must not be empty")
	}
	if len(cfg.ICC.MonitorProfiles) == 0 || len(cfg.ICC.CameraVendorProfiles) == 0 {
		t.Error("ICC fingerprint tables must not be empty")
	}
	if len(cfg.Quantization.AIPatterns()) == 0 {
		t.Error("expected seeded AI quantization fingerprints")
	}
}

func TestQuantDBLookup(t *testing.T) {
	cfg := MustLoad()
	db := &cfg.Quantization

	tests := []struct {
		name  string
		model string
		found bool
	}{
		{"exact model name", "iPhone 14 Pro", true},
		{"model embedded in longer string", "Apple iPhone 13 back camera", true},
		{"brand-level fallback", "apple prototype device", true},
		{"unknown brand", "Kodak DC210", false},
		{"empty model", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := db.Lookup(tt.model)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found=%t, want %t", tt.model, ok, tt.found)
			}
			if ok && len(p.Luminance) != 64 {
				t.Errorf("fingerprints carry 64 luminance values, got %d", len(p.Luminance))
			}
		})
	}
}

func TestQuantDBLookupDeterministicFallback(t *testing.T) {
	cfg := MustLoad()
	db := &cfg.Quantization

	// The brand fallback can resolve to any of the brand's entries; the
	// sorted walk must always pick the same one.
	want := db.Cameras["apple"]["iphone_13"]
	for i := 0; i < 10; i++ {
		p, ok := db.Lookup("apple prototype device")
		if !ok {
			t.Fatal("brand fallback must resolve")
		}
		for j, v := range p.Luminance {
			if v != want.Luminance[j] {
				t.Fatalf("run %d resolved a different fingerprint at index %d", i, j)
			}
		}
	}
}
