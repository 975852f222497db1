package detectors

import (
	"strings"
	"testing"

	"github.com/truthsnap/forensics-engine/internal/exifmeta"
	"github.com/truthsnap/forensics-engine/internal/imaging"
)

func iccArtifacts(profile *imaging.ICCProfile, exif map[string]string) *Artifacts {
	return &Artifacts{
		ICC:  profile,
		Exif: exifmeta.Map(exif),
		Cfg:  mvCfg,
	}
}

func TestCheckICCMissingProfile(t *testing.T) {
	r := checkICCAnomalies(iccArtifacts(nil, nil))
	if !hasIntrinsicFlag(r, "missing ICC profile") || r.score != 15 {
		t.Errorf("expected +15 missing profile, got %v %v", r.score, r.flags)
	}
	if !r.anomalies {
		t.Error("expected anomalies")
	}
}

func TestCheckICCCorruptedProfile(t *testing.T) {
	r := checkICCAnomalies(iccArtifacts(&imaging.ICCProfile{Corrupted: true}, nil))
	if !hasIntrinsicFlag(r, "corrupted or invalid ICC profile") || r.score != 25 {
		t.Errorf("expected +25 corrupted profile, got %v %v", r.score, r.flags)
	}
}

func TestCheckICCMonitorProfile(t *testing.T) {
	r := checkICCAnomalies(iccArtifacts(&imaging.ICCProfile{Description: "Dell U2720Q", Size: 560}, nil))
	if !hasIntrinsicFlag(r, "monitor ICC profile") {
		t.Fatalf("expected monitor flag, got %v", r.flags)
	}
	if r.score != 40 {
		t.Errorf("expected +40, got %v", r.score)
	}
}

func TestCheckICCEditingProfile(t *testing.T) {
	r := checkICCAnomalies(iccArtifacts(&imaging.ICCProfile{Description: "Adobe RGB (1998)", Size: 560}, nil))
	if !hasIntrinsicFlag(r, "editing software ICC profile") {
		t.Fatalf("expected editing profile flag, got %v", r.flags)
	}
	if r.score != 25 {
		t.Errorf("expected +25, got %v", r.score)
	}
}

func TestIsEditingProfileNeedsAdobeMarker(t *testing.T) {
	if isEditingProfile("prophoto rgb", mvCfg.ICC.EditingProfiles) {
		t.Error("wide-gamut profile alone is not editing evidence")
	}
	if !isEditingProfile("adobe rgb (1998)", mvCfg.ICC.EditingProfiles) {
		t.Error("adobe-branded gamut profile should qualify")
	}
}

func TestCheckICCVendorMismatch(t *testing.T) {
	r := checkICCAnomalies(iccArtifacts(
		&imaging.ICCProfile{Description: "Generic RGB Profile", Size: 560},
		map[string]string{"Make": "Apple", "Model": "iPhone 14 Pro"},
	))
	if !hasIntrinsicFlag(r, "expected Display P3") {
		t.Fatalf("expected vendor mismatch flag, got %v", r.flags)
	}
	if r.score != 35 {
		t.Errorf("expected +35, got %v", r.score)
	}
}

func TestVendorMismatch(t *testing.T) {
	vendors := mvCfg.ICC.CameraVendorProfiles
	tests := []struct {
		name    string
		claimed string
		desc    string
		match   bool
	}{
		{"canon with srgb is fine", "canon eos r5", "srgb iec61966-2.1", false},
		{"canon with unknown profile", "canon eos r5", "generic profile", true},
		{"apple with display p3 is fine", "apple iphone 14 pro", "apple display p3", false},
		{"unknown brand is skipped", "kodak dc210", "generic profile", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := vendorMismatch(tt.claimed, tt.desc, vendors)
			if (reason != "") != tt.match {
				t.Errorf("vendorMismatch(%q, %q) = %q", tt.claimed, tt.desc, reason)
			}
		})
	}
}

func TestCheckICCGenericSRGB(t *testing.T) {
	r := checkICCAnomalies(iccArtifacts(&imaging.ICCProfile{Description: "sRGB IEC61966-2.1", Size: 560}, nil))
	if !hasIntrinsicFlag(r, "generic sRGB profile") {
		t.Fatalf("expected generic sRGB flag, got %v", r.flags)
	}
	if r.anomalies {
		t.Error("bare sRGB is a weak signal, not an anomaly on its own")
	}
	if r.score != 10 {
		t.Errorf("expected +10, got %v", r.score)
	}
}

func TestCheckICCSizeBounds(t *testing.T) {
	small := checkICCAnomalies(iccArtifacts(&imaging.ICCProfile{Description: "x", Size: 200}, nil))
	if !hasIntrinsicFlag(small, "suspiciously small ICC profile") {
		t.Errorf("expected small-profile flag, got %v", small.flags)
	}

	huge := checkICCAnomalies(iccArtifacts(&imaging.ICCProfile{Description: "x", Size: 2_000_000}, nil))
	if !hasIntrinsicFlag(huge, "unusually large ICC profile") {
		t.Errorf("expected large-profile flag, got %v", huge.flags)
	}
}

func TestVendorMismatchMessageNamesVendor(t *testing.T) {
	reason := vendorMismatch("canon eos r5", "generic profile", mvCfg.ICC.CameraVendorProfiles)
	if !strings.HasPrefix(reason, "Canon camera claims") {
		t.Errorf("expected capitalized vendor in reason, got %q", reason)
	}
}
