package services

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

const defaultResponsible = "Site Supervisor"

var riskDescriptionRules = []keywordRule[string]{
	{"Electric shock or burn", []string{"electr", "shock", "live", "arc", "energi"}},
	{"Fall from height", []string{"height", "fall from", "ladder", "scaffold", "roof"}},
	{"Musculoskeletal injury", []string{"manual", "lifting", "handling", "musculoskeletal", "strain"}},
}

var severityOutcomes = map[int]string{
	1: "minor injury requiring first aid",
	2: "injury requiring medical treatment",
	3: "injury requiring hospital treatment",
	4: "major injury with long-term effects",
	5: "fatal or life-changing injury",
}

// DescribeRisk turns a hazard name and severity into a sentence such as
// "Electric shock or burn resulting in fatal or life-changing injury".
func DescribeRisk(hazard string, severity int) string {
	base := firstMatch(riskDescriptionRules, hazard, "Personal injury")
	if outcome, ok := severityOutcomes[severity]; ok {
		return base + " resulting in " + outcome
	}
	return base
}

func responsiblePerson(project ProjectDetails) string {
	switch {
	case project.Supervisor != "":
		return project.Supervisor
	case project.Assessor != "":
		return project.Assessor
	default:
		return defaultResponsible
	}
}

func newRAMS(project ProjectDetails) RAMSDocument {
	date := ""
	if !project.Date.IsZero() {
		date = project.Date.Format("2006-01-02")
	}
	return RAMSDocument{
		SchemaVersion: SchemaVersion,
		ProjectName:   project.Name,
		Location:      project.Location,
		Date:          date,
		Assessor:      project.Assessor,
		Contractor:    project.Contractor,
		Supervisor:    project.Supervisor,
		Activities:    []string{},
		Risks:         []RiskEntry{},
	}
}

func riskEntry(n int, h HazardRecord, project ProjectDetails, linkedStep int) RiskEntry {
	return RiskEntry{
		ID:                fmt.Sprintf("risk-%d", n),
		Hazard:            h.Name,
		Category:          CategorizeHazard(h.Name),
		Risk:              DescribeRisk(h.Name, h.Severity),
		Likelihood:        h.Likelihood,
		Severity:          h.Severity,
		RiskRating:        h.RiskRating,
		Controls:          strings.Join(h.ControlMeasures, "; "),
		ResidualRisk:      h.ResidualRisk,
		ResponsiblePerson: responsiblePerson(project),
		FurtherAction:     h.ResidualRisk > FurtherActionThreshold,
		LinkedStep:        linkedStep,
	}
}

// BuildRAMSFromHazardAssessment builds the RAMS record from a dedicated
// hazard assessment. Installer steps, when given, only supply the activity
// list. Any hazard with an out-of-range score fails the whole document.
func BuildRAMSFromHazardAssessment(hs *HealthSafetyOutput, project ProjectDetails, steps []InstallationStep) (RAMSDocument, error) {
	doc := newRAMS(project)
	doc.Activities = activitiesFromSteps(steps)
	if hs == nil {
		return doc, nil
	}

	for i, h := range hs.Hazards {
		rec, err := NewHazardRecord(h.Hazard, h.Likelihood, h.Severity, h.ControlMeasures, h.ResidualRisk)
		if err != nil {
			return RAMSDocument{}, eris.Wrapf(err, "hazard %d", i+1)
		}
		doc.Risks = append(doc.Risks, riskEntry(i+1, rec, project, h.LinkedToStep))
	}

	ppe := newOrderedSet()
	for _, p := range hs.PPE {
		ppe.add(p.PPEType)
	}
	doc.RequiredPPE = ppe.items()
	doc.EmergencyProcedures = hs.EmergencyProcedures
	return doc, nil
}

// standardControl is the canned assessment for a canonical hazard family.
type standardControl struct {
	Hazard     string
	Likelihood int
	Severity   int
	Controls   []string
}

var standardControlRules = []keywordRule[standardControl]{
	{standardControl{"Live electrical working", 3, 5, []string{
		"Safe isolation procedure to GS38: isolate, lock off, prove dead, re-prove tester",
		"Work carried out by competent persons qualified to BS 7671",
		"GS38-compliant test leads and proving unit in use",
		"No live working without a written permit to work",
	}}, []string{"live", "electr", "energi", "shock", "isolat"}},
	{standardControl{"Work at height", 3, 4, []string{
		"Work at Height Regulations 2005 hierarchy applied: avoid, prevent, mitigate",
		"Podium steps or platforms inspected before use",
		"Three points of contact maintained on ladders",
		"Exclusion zone set up below the work area",
	}}, []string{"height", "ladder", "scaffold", "fall from"}},
	{standardControl{"Manual handling", 3, 3, []string{
		"Manual Handling Operations Regulations 1992 assessment completed",
		"Cable drum stands and mechanical aids used",
		"Team lift for loads over 25 kg",
		"Operatives trained in safe lifting technique",
	}}, []string{"manual", "lift", "handling", "carry"}},
	{standardControl{"Confined space working", 2, 5, []string{
		"Confined Spaces Regulations 1997 permit to work issued",
		"Atmosphere tested before and during entry",
		"Top person and rescue plan in place",
		"Only trained personnel to enter",
	}}, []string{"confined", "crawl", "underfloor", "void"}},
	{standardControl{"Dust and debris from cutting/drilling", 3, 3, []string{
		"Asbestos register checked before any drilling or chasing",
		"On-tool M-class dust extraction",
		"FFP3 respiratory protection and eye protection worn",
		"Area cleaned with H-class vacuum, no dry sweeping",
	}}, []string{"dust", "drill", "cut", "chas", "debris"}},
	{standardControl{"Slips, trips and falls", 3, 2, []string{
		"Good housekeeping: offcuts and packaging cleared as work proceeds",
		"Trailing leads routed and covered",
		"Adequate lighting of the work area",
	}}, []string{"slip", "trip", "housekeeping"}},
}

var genericControls = []string{
	"Task-specific risk assessment reviewed before starting",
	"Appropriate PPE worn",
	"Work supervised by a competent person",
}

// BuildRAMSFromInstallationSteps derives a RAMS record from installer steps
// when no hazard assessment exists. Hazards are inferred from the step text
// and explicit step hazards, then assessed from the standard control table.
func BuildRAMSFromInstallationSteps(steps []InstallationStep, project ProjectDetails) RAMSDocument {
	doc := newRAMS(project)
	doc.Activities = activitiesFromSteps(steps)

	type found struct {
		name string
		step int
	}
	var hazards []found
	seen := map[string]bool{}
	addHazard := func(name string, step int) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		hazards = append(hazards, found{strings.TrimSpace(name), step})
	}

	for i, s := range steps {
		number := s.StepNumber
		if number == 0 {
			number = i + 1
		}
		for _, h := range s.Hazards {
			addHazard(h, number)
		}
		text := s.Description + " " + strings.Join(s.SafetyRequirements, " ")
		for _, h := range InferImplicitHazards(text) {
			addHazard(string(h), number)
		}
	}

	generic := standardControl{Likelihood: 3, Severity: 3, Controls: genericControls}
	covered := map[string]bool{}
	n := 0
	for _, h := range hazards {
		ctrl := firstMatch(standardControlRules, h.name, generic)
		name := h.name
		if ctrl.Hazard != "" {
			// An explicit hazard and an inferred one can land in the same family.
			if covered[ctrl.Hazard] {
				continue
			}
			covered[ctrl.Hazard] = true
			name = ctrl.Hazard
		}
		// Table values are always within range.
		rec, _ := NewHazardRecord(name, ctrl.Likelihood, ctrl.Severity, ctrl.Controls, 0)
		n++
		doc.Risks = append(doc.Risks, riskEntry(n, rec, project, h.step))
	}
	return doc
}

// activitiesFromSteps returns one de-duplicated activity title per step.
func activitiesFromSteps(steps []InstallationStep) []string {
	set := newOrderedSet()
	for i, s := range steps {
		number := s.StepNumber
		if number == 0 {
			number = i + 1
		}
		set.add(activityTitle(s.Description, number))
	}
	return set.items()
}
