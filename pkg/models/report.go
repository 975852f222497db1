package models

// Mode describes how the image reached the pipeline. Channels that strip
// EXIF (photo uploads in messengers) relax the EXIF-absence penalties.
type Mode string

const (
	ModePhoto    Mode = "PHOTO"    // EXIF stripped in transit
	ModeDocument Mode = "DOCUMENT" // EXIF preserved, full validation
)

// Detail selects how much of the per-detector evidence is returned.
type Detail string

const (
	DetailBasic    Detail = "BASIC"
	DetailDetailed Detail = "DETAILED"
)

// Check status values shared by every detector layer.
const (
	StatusPass = "PASS"
	StatusWarn = "WARN"
	StatusFail = "FAIL"
	StatusNA   = "N/A"
)

// Check is one layer of evidence inside a detector report.
type Check struct {
	Layer      string  `json:"layer"`
	Status     string  `json:"status"` // PASS/WARN/FAIL/N/A
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// DetectorReport is the uniform record produced by every detector.
// Score is in [0,1], higher = more suspicious. When TerminalError is set
// the score is neutral (0.5) and Checks is empty.
type DetectorReport struct {
	Detector      string            `json:"detector"`
	Score         float64           `json:"score"`
	Checks        []Check           `json:"checks"`
	Details       map[string]string `json:"details,omitempty"`
	TerminalError bool              `json:"terminalError,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// NeutralReport builds the terminal-error slot for a failed detector.
func NeutralReport(detector, reason string) DetectorReport {
	return DetectorReport{
		Detector:      detector,
		Score:         0.5,
		Checks:        []Check{},
		TerminalError: true,
		Error:         reason,
	}
}

// Red flag severities emitted by the metadata validator.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
	SeverityBonus    = "bonus"
)

// RedFlag is a single metadata-validator finding. Bonus flags carry a
// negative score and reduce the fraud total.
type RedFlag struct {
	Severity            string `json:"severity"`
	Reason              string `json:"reason"`
	Score               int    `json:"score"`
	TrustLevel          string `json:"trustLevel,omitempty"`          // high/medium for recognized photo tools
	RequiresVisualProof bool   `json:"requiresVisualProof,omitempty"` // true = needs pixel evidence before condemning
}

// Risk levels for the 0-100 fraud score.
const (
	RiskMinimal  = "MINIMAL"
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// ValidatorReport is the metadata validator's specialization of
// DetectorReport: an integer fraud score with ordered red flags.
type ValidatorReport struct {
	DetectorReport
	FraudScore int       `json:"fraudScore"` // 0-100
	RiskLevel  string    `json:"riskLevel"`
	RedFlags   []RedFlag `json:"redFlags"`
	Verdict    string    `json:"verdict"`
}

// FaceSwapReport carries the face count alongside the usual report so the
// fusion engine can gate the face-swap weight on faces being present.
type FaceSwapReport struct {
	DetectorReport
	FacesDetected int `json:"facesDetected"`
}

// WatermarkHit is a positive result from either watermark detector.
type WatermarkHit struct {
	Detected   bool              `json:"detected"`
	Type       string            `json:"type,omitempty"`     // provider name or "stock_photo"
	Provider   string            `json:"provider,omitempty"` // e.g. "midjourney", "shutterstock"
	Confidence float64           `json:"confidence,omitempty"`
	TextFound  string            `json:"textFound,omitempty"`
	Location   string            `json:"location,omitempty"`
	Method     string            `json:"method,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Note       string            `json:"note,omitempty"` // soft-failure note, e.g. ocr_unavailable
}

// Verdict statuses.
const (
	VerdictReal         = "real"
	VerdictAIGenerated  = "ai_generated"
	VerdictManipulated  = "manipulated"
	VerdictInconclusive = "inconclusive"
)

// Verdict is the fusion engine's final decision.
type Verdict struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// GPSInfo is the decoded GPS IFD, when present.
type GPSInfo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"`
}

// MetadataSummary is the EXIF map plus decoded GPS returned in DETAILED
// responses.
type MetadataSummary struct {
	Exif map[string]string `json:"exif"`
	GPS  *GPSInfo          `json:"gps,omitempty"`
}

// VerifyResult is the wire-level outcome of one verification request.
// Optional sections are populated only for DETAILED requests or when the
// corresponding detector fired.
type VerifyResult struct {
	RequestID         string  `json:"requestId"`
	Verdict           string  `json:"verdict"`
	Confidence        float64 `json:"confidence"` // rounded to 4 decimals
	Reason            string  `json:"reason"`
	WatermarkDetected bool    `json:"watermarkDetected"`
	ProcessingTimeMS  int64   `json:"processingTimeMs"`

	WatermarkAnalysis *WatermarkHit `json:"watermarkAnalysis,omitempty"`
	VisualWatermark   *WatermarkHit `json:"visualWatermark,omitempty"`

	// DETAILED only
	Findings           []Check          `json:"findings,omitempty"`
	Metadata           *MetadataSummary `json:"metadata,omitempty"`
	AISignatures       map[string]bool  `json:"aiSignatures,omitempty"`
	MetadataValidation *ValidatorReport `json:"metadataValidation,omitempty"`
	FFTAnalysis        *DetectorReport  `json:"fftAnalysis,omitempty"`
	FaceSwapAnalysis   *FaceSwapReport  `json:"faceSwapAnalysis,omitempty"`
	IntrinsicAnalysis  *DetectorReport  `json:"intrinsicAnalysis,omitempty"`
}
