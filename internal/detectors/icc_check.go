package detectors

// ICC profile sub-check. A camera photo carries its vendor's color
// profile; monitor profiles betray screen recapture, editor profiles
// betray post-processing, and a bare generic sRGB is a weak AI signal.

import (
	"fmt"
	"strings"
)

func checkICCAnomalies(art *Artifacts) intrinsicResult {
	r := intrinsicResult{name: "ICC Profile"}

	if art.ICC == nil {
		r.flags = append(r.flags, "missing ICC profile")
		r.score += 15
		r.anomalies = true
		return r
	}
	if art.ICC.Corrupted {
		r.flags = append(r.flags, "corrupted or invalid ICC profile")
		r.score += 25
		r.anomalies = true
		return r
	}
	desc := strings.ToLower(art.ICC.Description)

	if containsAny(desc, art.Cfg.ICC.MonitorProfiles) {
		r.flags = append(r.flags, "monitor ICC profile: "+art.ICC.Description)
		r.score += 40
		r.anomalies = true
	}

	if isEditingProfile(desc, art.Cfg.ICC.EditingProfiles) {
		r.flags = append(r.flags, "editing software ICC profile: "+art.ICC.Description)
		r.score += 25
		r.anomalies = true
	}

	if claimed := art.ClaimedCamera(); claimed != "" && desc != "" {
		if reason := vendorMismatch(claimed, desc, art.Cfg.ICC.CameraVendorProfiles); reason != "" {
			r.flags = append(r.flags, reason)
			r.score += 35
			r.anomalies = true
		}
	}

	if desc == "srgb iec61966-2.1" || desc == "srgb" || desc == "srgb iec61966-2-1" {
		// Weak signal: older cameras ship bare sRGB too.
		r.flags = append(r.flags, "generic sRGB profile without vendor tags")
		r.score += 10
	}

	switch {
	case art.ICC.Size < 300:
		r.flags = append(r.flags, fmt.Sprintf("suspiciously small ICC profile (%d bytes)", art.ICC.Size))
		r.score += 20
		r.anomalies = true
	case art.ICC.Size > 1_000_000:
		r.flags = append(r.flags, fmt.Sprintf("unusually large ICC profile (%d bytes)", art.ICC.Size))
		r.score += 15
		r.anomalies = true
	}

	return r
}

// isEditingProfile requires an editor keyword and an Adobe marker; a
// plain sRGB description is not enough since cameras write those too.
func isEditingProfile(desc string, editingProfiles []string) bool {
	if !containsAny(desc, editingProfiles) {
		return false
	}
	return strings.Contains(desc, "photoshop") || strings.Contains(desc, "adobe")
}

// vendorMismatch resolves the claimed model to a vendor and checks the
// profile description against that vendor's expected keywords.
func vendorMismatch(claimed, desc string, vendorProfiles map[string][]string) string {
	claimedLower := strings.ToLower(claimed)

	vendor := ""
	switch {
	case strings.Contains(claimedLower, "iphone"),
		strings.Contains(claimedLower, "ipad"),
		strings.Contains(claimedLower, "apple"):
		vendor = "apple"
	case strings.Contains(claimedLower, "samsung"),
		strings.Contains(claimedLower, "sm-"),
		strings.Contains(claimedLower, "galaxy"):
		vendor = "samsung"
	case strings.Contains(claimedLower, "canon"),
		strings.Contains(claimedLower, "eos"):
		vendor = "canon"
	case strings.Contains(claimedLower, "nikon"):
		vendor = "nikon"
	case strings.Contains(claimedLower, "sony"),
		strings.Contains(claimedLower, "ilce"),
		strings.Contains(claimedLower, "dsc"):
		vendor = "sony"
	case strings.Contains(claimedLower, "pixel"):
		vendor = "google"
	default:
		return ""
	}

	expected := vendorProfiles[vendor]
	if len(expected) == 0 {
		return ""
	}
	for _, kw := range expected {
		if strings.Contains(desc, strings.ToLower(kw)) {
			return ""
		}
	}
	if vendor == "apple" && !strings.Contains(desc, "display p3") {
		return fmt.Sprintf("Apple device claims %q but ICC profile is %q, expected Display P3", claimed, desc)
	}
	return fmt.Sprintf("%s camera claims %q but ICC profile is %q", strings.ToUpper(vendor[:1])+vendor[1:], claimed, desc)
}
