// Package config holds the read-only forensic tables: trusted-software
// penalties, known AI-generation tools, watermark dictionaries, ICC
// profile fingerprints, platform profiles, and the quantization-table
// database. Everything is compiled into the binary, loaded once at
// startup, and shared across requests without locks.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed trusted_software.json
var trustedSoftwareJSON []byte

//go:embed ai_tools.json
var aiToolsJSON []byte

//go:embed watermarks.json
var watermarksJSON []byte

//go:embed platform_profiles.json
var platformProfilesJSON []byte

//go:embed icc_profiles.json
var iccProfilesJSON []byte

//go:embed quantization_db.json
var quantizationDBJSON []byte

// TrustedTool describes a recognized professional photo tool. Reduction
// is subtracted from the base editing penalty (85) when the tool is
// seen in Software/CreatorTool.
type TrustedTool struct {
	TrustLevel string `json:"trustLevel"` // high | medium
	Reduction  int    `json:"reduction"`
}

// WatermarkDicts maps provider → keyword list for the OCR search.
type WatermarkDicts struct {
	AI    map[string][]string `json:"ai"`
	Stock map[string][]string `json:"stock"`
}

// PlatformProfiles carries the keyword lists used by the metadata
// validator layers.
type PlatformProfiles struct {
	MonitorKeywords    []string `json:"monitorKeywords"`
	ScreenshotSoftware []string `json:"screenshotSoftware"`
	OtherEditors       []string `json:"otherEditors"`
	NativeApps         []string `json:"nativeApps"`
	StockServices      []string `json:"stockServices"`
	SocialPlatforms    []string `json:"socialPlatforms"`
	DSLRLensBrands     []string `json:"dslrLensBrands"`
	ModernDeviceYears  []string `json:"modernDeviceYears"`
}

// ICCTables holds the ICC fingerprint lists for the intrinsic analyzer.
type ICCTables struct {
	CameraVendorProfiles map[string][]string `json:"cameraVendorProfiles"`
	MonitorProfiles      []string            `json:"monitorProfiles"`
	EditingProfiles      []string            `json:"editingProfiles"`
}

// QuantPattern is one known encoder fingerprint: flat 64-value tables
// in row-major order.
type QuantPattern struct {
	ModelNames  []string `json:"modelNames"`
	Luminance   []int    `json:"luminance"`
	Chrominance []int    `json:"chrominance"`
}

// QuantDB is the seed database of camera and AI-generator quantization
// fingerprints.
type QuantDB struct {
	Cameras      map[string]map[string]QuantPattern `json:"cameras"`
	AIGenerators map[string]QuantPattern            `json:"aiGenerators"`
}

// Lookup resolves a camera model string to its fingerprint: exact model
// name match first, then substring, then brand-level first entry.
// Candidates are walked in sorted brand/model order so ties resolve the
// same way on every run.
func (db *QuantDB) Lookup(model string) (QuantPattern, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return QuantPattern{}, false
	}

	brands := make([]string, 0, len(db.Cameras))
	for b := range db.Cameras {
		brands = append(brands, b)
	}
	sort.Strings(brands)

	var ordered []QuantPattern
	for _, b := range brands {
		entries := db.Cameras[b]
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ordered = append(ordered, entries[k])
		}
	}

	// Exact model-name match
	for _, p := range ordered {
		for _, name := range p.ModelNames {
			if name == model {
				return p, true
			}
		}
	}
	// Substring match
	for _, p := range ordered {
		for _, name := range p.ModelNames {
			if strings.Contains(model, name) || strings.Contains(name, model) {
				return p, true
			}
		}
	}
	// Brand-level fallback
	for _, b := range brands {
		if !strings.Contains(model, b) {
			continue
		}
		entries := db.Cameras[b]
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			return entries[k], true
		}
	}
	return QuantPattern{}, false
}

// AIPatterns returns the known AI-generator fingerprints.
func (db *QuantDB) AIPatterns() map[string]QuantPattern {
	return db.AIGenerators
}

// Config is the immutable process-wide configuration.
type Config struct {
	TrustedSoftware map[string]TrustedTool
	AITools         []string
	Watermarks      WatermarkDicts
	Platforms       PlatformProfiles
	ICC             ICCTables
	Quantization    QuantDB
}

// Load parses the embedded tables. Failures here are programming errors
// (malformed embedded JSON) and abort startup.
func Load() (*Config, error) {
	cfg := &Config{}
	for _, part := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"trusted_software", trustedSoftwareJSON, &cfg.TrustedSoftware},
		{"ai_tools", aiToolsJSON, &cfg.AITools},
		{"watermarks", watermarksJSON, &cfg.Watermarks},
		{"platform_profiles", platformProfilesJSON, &cfg.Platforms},
		{"icc_profiles", iccProfilesJSON, &cfg.ICC},
		{"quantization_db", quantizationDBJSON, &cfg.Quantization},
	} {
		if err := json.Unmarshal(part.data, part.dst); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", part.name, err)
		}
	}
	return cfg, nil
}

// MustLoad is Load for main-path initialization.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
