package detectors

// Metadata validator: eleven evidence layers over the EXIF/XMP/container
// metadata, combined into an integer fraud score 0-100.
//
//	Layer  Evidence                         Contribution
//	0      camera/lens serial numbers       -30 / -20 / -15 (bonus)
//	1      Apple hardware runtime tokens    +95 critical when missing
//	2      screenshot fingerprints          +95 / +40
//	3      editing & generation software    floor 98 / trusted relief / +60
//	4      GPS absence                      +70 modern device / +30
//	5      timestamp gap                    +75 / +30 / +10 / +20
//	6      XMP AI markers                   floor 98
//	7      aperture physics                 +88
//	8      lens/device consistency          +60
//	9      container format                 +40 PNG / +50 WEBP
//	10     messaging-app fingerprint        floor 80
//
// Positive layers only ever raise the score, bonus layers only lower
// it; "floor" layers lift the running total to at least their value.
// The total is clamped to [0,100] and mapped to a risk level at the
// 80/60/40/20 cut-offs.

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/truthsnap/forensics-engine/internal/config"
	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

var (
	reGemini    = regexp.MustCompile(`\bgemini\b`)
	reImagen    = regexp.MustCompile(`\bimagen\b`)
	reAIContext = regexp.MustCompile(`\b(ai|artificial.?intelligence|trainedalgorithmicmedia)\b`)
)

// Validator scores metadata evidence against the static trust tables.
type Validator struct {
	cfg *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg}
}

type mvState struct {
	score    int
	checks   []models.Check
	redFlags []models.RedFlag

	trustedTool    string
	stockCopyright bool
	exifPresent    bool
	relaxed        bool // PHOTO mode without EXIF: skip EXIF-absence layers
}

func (s *mvState) add(points int) {
	s.score += points
}

// floor lifts the running score to at least v. Definitive markers (AI
// software, messaging fingerprints) override whatever accumulated
// before them.
func (s *mvState) floor(v int) {
	if s.score < v {
		s.score = v
	}
}

func (s *mvState) check(layer, status string, score int, reason string) {
	s.checks = append(s.checks, models.Check{
		Layer:      layer,
		Status:     status,
		Score:      float64(score),
		Reason:     reason,
		Confidence: 1.0,
	})
}

func (s *mvState) flag(severity, reason string, score int) *models.RedFlag {
	s.redFlags = append(s.redFlags, models.RedFlag{Severity: severity, Reason: reason, Score: score})
	return &s.redFlags[len(s.redFlags)-1]
}

// Validate runs all layers in order and produces the validator report.
func (v *Validator) Validate(ctx context.Context, art *Artifacts) models.ValidatorReport {
	st := &mvState{
		exifPresent: len(art.Exif) > 0,
	}
	st.relaxed = art.Mode == models.ModePhoto && !st.exifPresent
	st.stockCopyright = containsAny(strings.ToLower(art.Exif.Get("Copyright")), v.cfg.Platforms.StockServices)

	v.layerCameraAuthenticity(art, st)
	v.layerAppleRuntime(art, st)
	v.layerScreenshot(art, st)
	v.layerSoftware(art, st)
	v.layerGPS(art, st)
	v.layerTimestamps(art, st)
	v.layerXMPMarkers(art, st)
	v.layerPhysics(art, st)
	v.layerLensConsistency(art, st)
	v.layerFormat(art, st)
	v.layerMessagingFingerprint(art, st)

	if err := ctx.Err(); err != nil {
		r := models.NeutralReport(NameMetadata, err.Error())
		return models.ValidatorReport{DetectorReport: r, FraudScore: 50, RiskLevel: models.RiskMedium, RedFlags: []models.RedFlag{}}
	}

	if st.score > 100 {
		st.score = 100
	}
	if st.score < 0 {
		st.score = 0
	}

	risk := classifyRisk(st.score)
	return models.ValidatorReport{
		DetectorReport: models.DetectorReport{
			Detector: NameMetadata,
			Score:    float64(st.score) / 100.0,
			Checks:   st.checks,
		},
		FraudScore: st.score,
		RiskLevel:  risk,
		RedFlags:   st.redFlags,
		Verdict:    riskVerdict(risk),
	}
}

// ─── Layer 0: camera authenticity bonus ─────────────────────────────

func (v *Validator) layerCameraAuthenticity(art *Artifacts, st *mvState) {
	const layer = "Camera Authenticity"
	camSerial := art.Exif.GetAny("BodySerialNumber", "SerialNumber", "MakerNotes:SerialNumber")
	lensSerial := art.Exif.GetAny("LensSerialNumber", "MakerNotes:LensSerialNumber")

	switch {
	case camSerial != "" && lensSerial != "":
		st.add(-30)
		st.flag(models.SeverityBonus, "camera and lens serial numbers present", -30)
		st.check(layer, models.StatusPass, -30, "hardware serial pair verified")
	case camSerial != "":
		st.add(-20)
		st.flag(models.SeverityBonus, "camera serial number present", -20)
		st.check(layer, models.StatusPass, -20, "camera body serial present")
	case lensSerial != "":
		st.add(-15)
		st.flag(models.SeverityBonus, "lens serial number present", -15)
		st.check(layer, models.StatusPass, -15, "lens serial present")
	default:
		st.check(layer, models.StatusNA, 0, "no hardware serials")
	}
}

// ─── Layer 1: Apple hardware runtime tokens ─────────────────────────

var appleRuntimeKeys = []string{
	"MakerNotes:RunTimeFlags",
	"Composite:RunTimeSincePowerUp",
	"MakerNotes:RunTimeEpoch",
	"MakerNotes:AccelerationVector",
}

func (v *Validator) layerAppleRuntime(art *Artifacts, st *mvState) {
	const layer = "Apple Hardware Token"
	if st.relaxed || !art.IsIPhone() {
		st.check(layer, models.StatusNA, 0, "not applicable")
		return
	}
	if art.Exif.HasAny(appleRuntimeKeys...) {
		st.check(layer, models.StatusPass, 0, "runtime markers present")
		return
	}
	st.add(95)
	st.flag(models.SeverityCritical, "Apple hardware runtime markers missing from MakerNote", 95)
	st.check(layer, models.StatusFail, 95, "iPhone claimed but no RunTime/AccelerationVector tokens")
}

// ─── Layer 2: screenshot fingerprints ───────────────────────────────

func (v *Validator) layerScreenshot(art *Artifacts, st *mvState) {
	const layer = "Screenshot Detection"

	iccDesc := ""
	if art.ICC != nil {
		iccDesc = art.ICC.Description
	}
	if strings.Contains(iccDesc, "Display P3") {
		st.check(layer, models.StatusPass, 0, "Display P3 profile, native capture")
		return
	}

	for _, kw := range v.cfg.Platforms.MonitorKeywords {
		if kw != "" && strings.Contains(strings.ToLower(iccDesc), strings.ToLower(kw)) {
			st.floor(95)
			st.flag(models.SeverityCritical, fmt.Sprintf("screenshot detected: monitor ICC profile (%s)", kw), 95)
			st.check(layer, models.StatusFail, 95, "monitor color profile embedded")
			return
		}
	}

	software := strings.ToLower(art.Exif.Get("Software"))
	for _, kw := range v.cfg.Platforms.ScreenshotSoftware {
		if software != "" && strings.Contains(software, kw) {
			st.floor(95)
			st.flag(models.SeverityCritical, fmt.Sprintf("screenshot software in EXIF: %s", kw), 95)
			st.check(layer, models.StatusFail, 95, "capture tool identified")
			return
		}
	}

	if st.exifPresent &&
		art.Exif.Get("Make") == "" && art.Exif.Get("Model") == "" && art.Exif.Get("LensModel") == "" &&
		!st.stockCopyright {
		st.add(40)
		st.flag(models.SeverityHigh, "all camera identification absent despite EXIF block", 40)
		st.check(layer, models.StatusWarn, 40, "no Make/Model/LensModel")
		return
	}

	st.check(layer, models.StatusPass, 0, "no screenshot indicators")
}

// ─── Layer 3: editing & generation software ─────────────────────────

func (v *Validator) layerSoftware(art *Artifacts, st *mvState) {
	const layer = "Software Analysis"
	software := strings.ToLower(strings.TrimSpace(
		art.Exif.Get("Software") + " " + art.Exif.Get("XMP:CreatorTool")))
	if software == "" {
		st.check(layer, models.StatusNA, 0, "no software tag")
		return
	}

	// AI generation tools are definitive: lift the score to 98 rather
	// than accumulate.
	for _, tool := range v.cfg.AITools {
		if strings.Contains(software, tool) {
			st.floor(98)
			f := st.flag(models.SeverityCritical, fmt.Sprintf("AI generation software detected: %s", tool), 98)
			f.RequiresVisualProof = false
			st.check(layer, models.StatusFail, 98, "generator named in Software/CreatorTool")
			return
		}
	}

	// Trusted professional tools carry a per-tool penalty reduction and
	// shift the burden to pixel evidence. The table keys overlap
	// ("lightroom", "lightroom mobile"), so iterate in sorted order to
	// keep the reported tool and penalty stable across runs.
	tools := make([]string, 0, len(v.cfg.TrustedSoftware))
	for tool := range v.cfg.TrustedSoftware {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	for _, tool := range tools {
		if strings.Contains(software, tool) {
			trust := v.cfg.TrustedSoftware[tool]
			penalty := 85 - trust.Reduction
			if penalty < 0 {
				penalty = 0
			}
			st.add(penalty)
			st.trustedTool = tool
			if penalty > 20 {
				f := st.flag(models.SeverityMedium, fmt.Sprintf("professional editing software: %s", tool), penalty)
				f.TrustLevel = trust.TrustLevel
				f.RequiresVisualProof = true
				st.check(layer, models.StatusWarn, penalty, "edited with trusted tool")
			} else {
				f := st.flag(models.SeverityLow, fmt.Sprintf("professional editing software: %s", tool), penalty)
				f.TrustLevel = trust.TrustLevel
				f.RequiresVisualProof = true
				st.check(layer, models.StatusPass, penalty, "edited with trusted tool")
			}
			return
		}
	}

	for _, editor := range v.cfg.Platforms.OtherEditors {
		if strings.Contains(software, editor) {
			st.add(60)
			st.flag(models.SeverityHigh, fmt.Sprintf("image editor detected: %s", editor), 60)
			st.check(layer, models.StatusWarn, 60, "unrecognized editing tool")
			return
		}
	}

	for _, native := range v.cfg.Platforms.NativeApps {
		if strings.Contains(software, native) {
			st.check(layer, models.StatusPass, 0, "native camera software")
			return
		}
	}

	st.check(layer, models.StatusPass, 0, "software tag carries no known editor")
}

// ─── Layer 4: GPS presence ──────────────────────────────────────────

func (v *Validator) layerGPS(art *Artifacts, st *mvState) {
	const layer = "GPS Data"
	if st.relaxed {
		st.check(layer, models.StatusNA, 0, "EXIF stripped in transit")
		return
	}
	if art.GPS != nil {
		st.check(layer, models.StatusPass, 0, "GPS coordinates present")
		return
	}

	model := strings.ToLower(art.Exif.Get("Model"))
	if model != "" && containsAny(model, v.cfg.Platforms.ModernDeviceYears) {
		st.add(70)
		st.flag(models.SeverityHigh, "modern device without GPS data", 70)
		st.check(layer, models.StatusFail, 70, "recent phone, no location")
		return
	}
	st.add(30)
	st.flag(models.SeverityMedium, "no GPS data", 30)
	st.check(layer, models.StatusWarn, 30, "location absent")
}

// ─── Layer 5: timestamps ────────────────────────────────────────────

const exifTimeLayout = "2006:01:02 15:04:05"

func (v *Validator) layerTimestamps(art *Artifacts, st *mvState) {
	const layer = "Timestamps"
	if st.relaxed {
		st.check(layer, models.StatusNA, 0, "EXIF stripped in transit")
		return
	}

	original := art.Exif.Get("DateTimeOriginal")
	modified := art.Exif.Get("DateTime")

	if st.exifPresent && original == "" {
		st.add(20)
		st.flag(models.SeverityMedium, "capture timestamp missing", 20)
		st.check(layer, models.StatusWarn, 20, "no DateTimeOriginal")
		return
	}
	if original == "" || modified == "" {
		st.check(layer, models.StatusNA, 0, "timestamps unavailable")
		return
	}

	t0, err0 := time.Parse(exifTimeLayout, original)
	t1, err1 := time.Parse(exifTimeLayout, modified)
	if err0 != nil || err1 != nil {
		st.check(layer, models.StatusNA, 0, "unparseable timestamps")
		return
	}

	gap := math.Abs(t1.Sub(t0).Seconds())
	switch {
	case gap > 3600:
		if st.trustedTool != "" {
			st.check(layer, models.StatusPass, 0, "edit gap consistent with professional workflow")
			return
		}
		st.add(75)
		st.flag(models.SeverityHigh, fmt.Sprintf("file modified %.1fh after capture", gap/3600), 75)
		st.check(layer, models.StatusFail, 75, "large capture/modify gap")
	case gap >= 60:
		if st.trustedTool != "" {
			st.add(10)
			st.flag(models.SeverityLow, "minor edit gap with trusted tool", 10)
			st.check(layer, models.StatusPass, 10, "small capture/modify gap")
		} else {
			st.add(30)
			st.flag(models.SeverityMedium, fmt.Sprintf("file modified %.0fs after capture", gap), 30)
			st.check(layer, models.StatusWarn, 30, "capture/modify gap")
		}
	default:
		st.check(layer, models.StatusPass, 0, "timestamps consistent")
	}
}

// ─── Layer 6: XMP AI markers ────────────────────────────────────────

func (v *Validator) layerXMPMarkers(art *Artifacts, st *mvState) {
	const layer = "XMP AI Markers"
	if art.XMP == "" {
		st.check(layer, models.StatusNA, 0, "no XMP packet")
		return
	}
	xmp := strings.ToLower(art.XMP)

	for _, marker := range []string{"edited with google ai", "trainedalgorithmicmedia", "google ai"} {
		if strings.Contains(xmp, marker) {
			st.floor(98)
			f := st.flag(models.SeverityCritical, "Google AI editing marker detected in XMP", 98)
			f.RequiresVisualProof = false
			st.check(layer, models.StatusFail, 98, "provenance marker: "+marker)
			return
		}
	}

	for _, re := range []*regexp.Regexp{reGemini, reImagen} {
		if re.MatchString(xmp) && reAIContext.MatchString(xmp) {
			st.floor(98)
			f := st.flag(models.SeverityCritical, fmt.Sprintf("AI generator reference (%s) in XMP", re.FindString(xmp)), 98)
			f.RequiresVisualProof = false
			st.check(layer, models.StatusFail, 98, "generator name with AI context in XMP")
			return
		}
	}

	st.check(layer, models.StatusPass, 0, "XMP carries no AI markers")
}

// ─── Layer 7: aperture physics ──────────────────────────────────────

func (v *Validator) layerPhysics(art *Artifacts, st *mvState) {
	const layer = "Physics Validation"
	if !art.IsIPhone() {
		st.check(layer, models.StatusNA, 0, "not applicable")
		return
	}
	f, ok := parseFNumber(art.Exif.GetAny("FNumber", "ApertureValue"))
	if !ok {
		st.check(layer, models.StatusNA, 0, "no aperture tag")
		return
	}
	if f < 1.0 || f > 3.0 {
		st.add(88)
		st.flag(models.SeverityCritical, fmt.Sprintf("aperture f/%.1f impossible for iPhone hardware", f), 88)
		st.check(layer, models.StatusFail, 88, "aperture outside hardware range")
		return
	}
	st.check(layer, models.StatusPass, 0, fmt.Sprintf("aperture f/%.1f plausible", f))
}

// ─── Layer 8: lens/device consistency ───────────────────────────────

func (v *Validator) layerLensConsistency(art *Artifacts, st *mvState) {
	const layer = "Lens Consistency"
	if !art.IsIPhone() {
		st.check(layer, models.StatusNA, 0, "not applicable")
		return
	}
	lens := strings.ToLower(art.Exif.Get("LensModel"))
	if lens == "" {
		st.check(layer, models.StatusNA, 0, "no lens tag")
		return
	}
	for _, brand := range v.cfg.Platforms.DSLRLensBrands {
		if strings.Contains(lens, brand) {
			st.add(60)
			st.flag(models.SeverityHigh, fmt.Sprintf("DSLR lens (%s) claimed on iPhone body", brand), 60)
			st.check(layer, models.StatusFail, 60, "lens/body mismatch")
			return
		}
	}
	st.check(layer, models.StatusPass, 0, "lens consistent with device")
}

// ─── Layer 9: container format ──────────────────────────────────────

func (v *Validator) layerFormat(art *Artifacts, st *mvState) {
	const layer = "File Format"
	switch art.Image.Format {
	case imaging.FormatPNG:
		st.add(40)
		st.flag(models.SeverityMedium, "PNG container unusual for camera photo", 40)
		st.check(layer, models.StatusWarn, 40, "PNG source")
	case imaging.FormatWEBP:
		st.add(50)
		st.flag(models.SeverityMedium, "WEBP container indicates web re-encode", 50)
		st.check(layer, models.StatusWarn, 50, "WEBP source")
	default:
		st.check(layer, models.StatusPass, 0, "camera-native container")
	}
}

// ─── Layer 10: messaging-app fingerprint ────────────────────────────

func (v *Validator) layerMessagingFingerprint(art *Artifacts, st *mvState) {
	const layer = "Messaging Fingerprint"
	platform := strings.ToLower(art.SourcePlatform)
	for _, p := range v.cfg.Platforms.SocialPlatforms {
		if platform == p {
			st.check(layer, models.StatusNA, 0, "known social platform source")
			return
		}
	}
	if st.stockCopyright {
		st.check(layer, models.StatusNA, 0, "stock photo copyright")
		return
	}

	var confidence float64
	var hits []string

	if !st.exifPresent || len(art.Exif) < 3 {
		confidence += 0.50
		hits = append(hits, "exif stripped")
	}
	size := len(art.Image.Raw)
	if size >= 50*1024 && size <= 1536*1024 {
		confidence += 0.20
		hits = append(hits, "recompressed size range")
	}
	if px := art.Image.Width * art.Image.Height; px > 0 {
		bpp := float64(size) / float64(px)
		if bpp >= 0.10 && bpp <= 0.50 {
			confidence += 0.10
			hits = append(hits, "aggressive compression ratio")
		}
	}
	maxDim := art.Image.Width
	if art.Image.Height > maxDim {
		maxDim = art.Image.Height
	}
	if maxDim == 1600 {
		confidence += 0.30
		hits = append(hits, "whatsapp dimension cap")
	}
	if maxDim == 1280 {
		confidence += 0.30
		hits = append(hits, "telegram dimension cap")
	}

	if confidence >= 0.60 {
		st.floor(80)
		st.flag(models.SeverityCritical,
			fmt.Sprintf("messaging app processing fingerprint (telegram/whatsapp class): %s", strings.Join(hits, ", ")), 80)
		st.check(layer, models.StatusFail, 80, fmt.Sprintf("fingerprint confidence %.2f", confidence))
		return
	}
	st.check(layer, models.StatusPass, 0, fmt.Sprintf("fingerprint confidence %.2f", confidence))
}

// ─── helpers ────────────────────────────────────────────────────────

func classifyRisk(score int) string {
	switch {
	case score >= 80:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	case score >= 20:
		return models.RiskLow
	default:
		return models.RiskMinimal
	}
}

func riskVerdict(risk string) string {
	switch risk {
	case models.RiskCritical:
		return "metadata shows strong synthesis or manipulation evidence"
	case models.RiskHigh:
		return "metadata is heavily suspicious"
	case models.RiskMedium:
		return "metadata shows editing or transport artifacts"
	case models.RiskLow:
		return "metadata is mostly consistent with a camera original"
	default:
		return "metadata is consistent with an authentic photograph"
	}
}

func containsAny(s string, subs []string) bool {
	if s == "" {
		return false
	}
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// parseFNumber understands both rational ("9/5") and decimal ("1.8")
// renderings, with an optional f/ prefix.
func parseFNumber(v string) (float64, bool) {
	v = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(v), "f/"))
	if v == "" {
		return 0, false
	}
	if num, den, ok := strings.Cut(v, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 == nil && err2 == nil && d != 0 {
			return n / d, true
		}
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
