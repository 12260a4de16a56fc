package services

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// DefaultQualifications is used when no step names a qualification.
var DefaultQualifications = []string{
	"18th Edition BS 7671 Wiring Regulations",
	"Inspection & Testing (City & Guilds 2391 or equivalent)",
	"ECS/JIB card holder",
}

// BuildMethodStatement maps each installation step to a graded method step
// and collects document-level tool, material and qualification sets.
func BuildMethodStatement(installer *InstallerOutput, project ProjectDetails) MethodStatementDocument {
	doc := MethodStatementDocument{
		SchemaVersion:    SchemaVersion,
		JobTitle:         project.Name,
		Location:         project.Location,
		Contractor:       project.Contractor,
		Supervisor:       project.Supervisor,
		Steps:            []MethodStep{},
		OverallRiskLevel: RiskLow,
	}
	if installer == nil {
		doc.ToolsRequired = []string{}
		doc.MaterialsRequired = []string{}
		doc.RequiredQualifications = slices.Clone(DefaultQualifications)
		doc.TotalEstimatedTime = totalEstimatedTime(nil)
		return doc
	}

	tools := newOrderedSet()
	materials := newOrderedSet()
	quals := newOrderedSet()

	for i, s := range installer.Steps {
		number := s.StepNumber
		if number == 0 {
			number = i + 1
		}
		riskText := s.Description + " " + strings.Join(s.SafetyRequirements, " ")
		step := MethodStep{
			StepNumber:         number,
			Title:              stepTitle(s, number),
			Description:        s.Description,
			SafetyRequirements: nonNil(s.SafetyRequirements),
			Equipment:          dedupe(s.ToolsRequired),
			Materials:          dedupe(s.MaterialsNeeded),
			EstimatedDuration:  s.EstimatedDuration,
			CriticalPoints:     nonNil(s.CriticalPoints),
			RiskLevel:          InferStepRiskLevel(riskText),
			Qualifications:     s.Qualifications,
			AssignedPersonnel:  s.AssignedPersonnel,
		}
		tools.add(step.Equipment...)
		materials.add(step.Materials...)
		quals.add(s.Qualifications...)
		if step.RiskLevel.rank() > doc.OverallRiskLevel.rank() {
			doc.OverallRiskLevel = step.RiskLevel
		}
		doc.Steps = append(doc.Steps, step)
	}

	doc.ToolsRequired = tools.items()
	doc.MaterialsRequired = materials.items()
	doc.RequiredQualifications = quals.items()
	if len(doc.RequiredQualifications) == 0 {
		doc.RequiredQualifications = slices.Clone(DefaultQualifications)
	}

	doc.TotalEstimatedTime = installer.TotalEstimatedTime
	if doc.TotalEstimatedTime == "" {
		doc.TotalEstimatedTime = totalEstimatedTime(installer.Steps)
	}

	doc.ScopeOfWork = installer.ScopeOfWork
	doc.ScheduleDetails = installer.ScheduleDetails
	doc.ComplianceRegulations = installer.ComplianceRegulations
	return doc
}

var durationPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(days?|hours?|hrs?|h\b|minutes?|mins?)`)

// totalEstimatedTime sums every parseable step duration.
func totalEstimatedTime(steps []InstallationStep) string {
	var minutes float64
	for _, s := range steps {
		for _, m := range durationPattern.FindAllStringSubmatch(strings.ToLower(s.EstimatedDuration), -1) {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(m[2], "d"):
				minutes += v * 8 * 60
			case strings.HasPrefix(m[2], "h"):
				minutes += v * 60
			default:
				minutes += v
			}
		}
	}
	if minutes == 0 {
		return "To be confirmed"
	}

	total := int(minutes + 0.5)
	h, m := total/60, total%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d minutes", m)
	case m == 0:
		return fmt.Sprintf("%d %s", h, plural(h, "hour"))
	default:
		return fmt.Sprintf("%d %s %d minutes", h, plural(h, "hour"), m)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// ── Step titles ─────────────────────────────────────────────────────

var actionVerbs = []string{
	"install", "fit", "mount", "run", "route", "terminate", "connect", "test",
	"isolate", "drill", "fix", "label", "inspect", "commission", "remove",
	"pull", "secure", "prepare", "mark", "check", "erect", "energise", "verify",
}

// stepTitle uses the installer's title, else the leading sentence when it
// starts with a recognised action verb, else a numbered placeholder.
func stepTitle(s InstallationStep, number int) string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return activityTitle(s.Description, number)
}

func activityTitle(description string, number int) string {
	sentence := leadingSentence(description)
	words := strings.Fields(sentence)
	if len(words) == 0 {
		return fmt.Sprintf("Installation work — Step %d", number)
	}
	first := strings.ToLower(words[0])
	for _, v := range actionVerbs {
		if strings.HasPrefix(first, v) {
			return truncateTitle(sentence, 80)
		}
	}
	return fmt.Sprintf("Installation work — Step %d", number)
}

func leadingSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".\n!?"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func truncateTitle(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}

// ── Small set helpers ───────────────────────────────────────────────

// orderedSet keeps first-seen order of trimmed, non-empty strings.
type orderedSet struct {
	seen  map[string]struct{}
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]struct{}{}}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.order = append(s.order, v)
	}
}

func (s *orderedSet) items() []string {
	if s.order == nil {
		return []string{}
	}
	return s.order
}

func dedupe(values []string) []string {
	s := newOrderedSet()
	s.add(values...)
	return s.items()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
