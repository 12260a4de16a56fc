package services

import (
	"strings"

	"github.com/rotisserie/eris"
)

// RiskLevel is the three-tier classification used by both the method
// statement and the RAMS record.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// rank orders levels so callers can take a maximum.
func (l RiskLevel) rank() int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Risk scoring policy shared by every document type.
const (
	MinRiskScore = 1
	MaxRiskScore = 5

	HighRiskThreshold   = 15
	MediumRiskThreshold = 8

	// FurtherActionThreshold flags RAMS entries whose residual risk is
	// still above it after controls.
	FurtherActionThreshold = 6
)

// ErrInvalidRiskScore is returned when likelihood or severity is outside 1-5.
var ErrInvalidRiskScore = eris.New("risk score out of range")

func validateScores(likelihood, severity int) error {
	if likelihood < MinRiskScore || likelihood > MaxRiskScore {
		return eris.Wrapf(ErrInvalidRiskScore, "likelihood %d", likelihood)
	}
	if severity < MinRiskScore || severity > MaxRiskScore {
		return eris.Wrapf(ErrInvalidRiskScore, "severity %d", severity)
	}
	return nil
}

// ComputeRiskRating returns likelihood × severity.
func ComputeRiskRating(likelihood, severity int) (int, error) {
	if err := validateScores(likelihood, severity); err != nil {
		return 0, err
	}
	return likelihood * severity, nil
}

// ComputeResidualRisk approximates the risk left once standard controls are
// in place: likelihood drops by 2 (floor 1) and severities above 3 drop by 1.
// It is a heuristic for drafting documents and is not a certified safety
// calculation; a competent person must review the figures.
func ComputeResidualRisk(likelihood, severity int) (int, error) {
	if err := validateScores(likelihood, severity); err != nil {
		return 0, err
	}
	l := max(likelihood-2, MinRiskScore)
	s := severity
	if s > 3 {
		s--
	}
	return l * s, nil
}

// ClassifyRiskLevel maps a rating onto low/medium/high.
func ClassifyRiskLevel(rating int) RiskLevel {
	switch {
	case rating >= HighRiskThreshold:
		return RiskHigh
	case rating >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// HazardRecord is a scored hazard. Build it with NewHazardRecord so the
// rating and residual stay consistent.
type HazardRecord struct {
	Name            string   `json:"name"`
	Likelihood      int      `json:"likelihood"`
	Severity        int      `json:"severity"`
	RiskRating      int      `json:"riskRating"`
	ControlMeasures []string `json:"controlMeasures"`
	ResidualRisk    int      `json:"residualRisk"`
}

// NewHazardRecord scores a hazard. A suppliedResidual between 1 and the
// rating is kept as given; anything else is replaced with ComputeResidualRisk.
func NewHazardRecord(name string, likelihood, severity int, controls []string, suppliedResidual int) (HazardRecord, error) {
	rating, err := ComputeRiskRating(likelihood, severity)
	if err != nil {
		return HazardRecord{}, eris.Wrapf(err, "hazard %q", name)
	}
	residual := suppliedResidual
	if residual < 1 || residual > rating {
		residual, _ = ComputeResidualRisk(likelihood, severity)
	}
	return HazardRecord{
		Name:            name,
		Likelihood:      likelihood,
		Severity:        severity,
		RiskRating:      rating,
		ControlMeasures: controls,
		ResidualRisk:    residual,
	}, nil
}

// ── Keyword rules ───────────────────────────────────────────────────

// HazardName identifies one of the implicit hazard families.
type HazardName string

const (
	HazardWorkAtHeight   HazardName = "Work at height"
	HazardLiveWorking    HazardName = "Live electrical working"
	HazardManualHandling HazardName = "Manual handling"
	HazardConfinedSpace  HazardName = "Confined space working"
	HazardDustCutting    HazardName = "Dust and debris from cutting/drilling"
)

// keywordRule maps a keyword family onto a result. Rules are evaluated in
// slice order.
type keywordRule[T any] struct {
	Result   T
	Keywords []string
}

func (r keywordRule[T]) matches(text string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// firstMatch returns the result of the first matching rule.
func firstMatch[T any](rules []keywordRule[T], text string, fallback T) T {
	text = strings.ToLower(text)
	for _, r := range rules {
		if r.matches(text) {
			return r.Result
		}
	}
	return fallback
}

var implicitHazardRules = []keywordRule[HazardName]{
	{HazardWorkAtHeight, []string{"height", "ladder", "scaffold", "loft", "ceiling", "roof", "mewp", "overhead"}},
	{HazardLiveWorking, []string{"live", "energised", "energized", "isolat", "testing", "consumer unit", "distribution board"}},
	{HazardManualHandling, []string{"lift", "carry", "heavy", "drum", "manual handling", "cable pulling", "pull cable"}},
	{HazardConfinedSpace, []string{"confined", "crawl space", "underfloor", "void", "duct"}},
	{HazardDustCutting, []string{"drill", "chase", "chasing", "cut", "core", "dust"}},
}

// InferImplicitHazards scans free text for hazard cues. A step can match
// any number of families; misses are expected and left to human review.
func InferImplicitHazards(description string) []HazardName {
	text := strings.ToLower(description)
	var found []HazardName
	for _, r := range implicitHazardRules {
		if r.matches(text) {
			found = append(found, r.Result)
		}
	}
	return found
}

// Hazard categories.
const (
	CategoryElectrical     = "Electrical"
	CategoryWorkAtHeight   = "Work at Height"
	CategoryManualHandling = "Manual Handling"
	CategoryConfinedSpaces = "Confined Spaces"
	CategoryDustFumes      = "Dust & Fumes"
	CategoryGeneral        = "General"
)

var hazardCategoryRules = []keywordRule[string]{
	{CategoryElectrical, []string{"electr", "shock", "live", "arc", "burn", "energi"}},
	{CategoryWorkAtHeight, []string{"height", "fall from", "ladder", "scaffold"}},
	{CategoryManualHandling, []string{"manual", "lifting", "handling", "musculoskeletal", "strain"}},
	{CategoryConfinedSpaces, []string{"confined", "void", "crawl"}},
	{CategoryDustFumes, []string{"dust", "fume", "asbestos", "silica", "debris"}},
}

// CategorizeHazard files a hazard name under the fixed taxonomy.
func CategorizeHazard(name string) string {
	return firstMatch(hazardCategoryRules, name, CategoryGeneral)
}

var stepRiskRules = []keywordRule[RiskLevel]{
	{RiskHigh, []string{"live", "energised", "energized", "height", "confined", "overhead"}},
	{RiskMedium, []string{"termination", "terminate", "testing", "cable pulling", "pull cable", "drilling", "drill"}},
}

// InferStepRiskLevel grades a step from its description and safety notes
// when no numeric score exists.
func InferStepRiskLevel(text string) RiskLevel {
	return firstMatch(stepRiskRules, text, RiskLow)
}
