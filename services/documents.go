package services

import (
	"encoding/json"
	"time"

	"github.com/spf13/cast"
)

// SchemaVersion is stamped on every persisted document.
const SchemaVersion = 1

// ── Upstream assistant outputs ──────────────────────────────────────

// AgentOutputs bundles whatever the upstream assistants produced. Any field
// may be nil.
type AgentOutputs struct {
	Installer    *InstallerOutput    `json:"installer,omitempty"`
	HealthSafety *HealthSafetyOutput `json:"healthSafety,omitempty"`
	CostEngineer *CostEngineerOutput `json:"costEngineer,omitempty"`
	EICData      *EICSchedule        `json:"eicData,omitempty"`
}

// InstallationStep is one step of the installer's procedure.
type InstallationStep struct {
	StepNumber         int      `json:"stepNumber"`
	Title              string   `json:"title,omitempty"`
	Description        string   `json:"description"`
	SafetyRequirements []string `json:"safetyRequirements,omitempty"`
	ToolsRequired      []string `json:"toolsRequired,omitempty"`
	MaterialsNeeded    []string `json:"materialsNeeded,omitempty"`
	EstimatedDuration  string   `json:"estimatedDuration,omitempty"`
	CriticalPoints     []string `json:"criticalPoints,omitempty"`
	Hazards            []string `json:"hazards,omitempty"`
	Qualifications     []string `json:"qualifications,omitempty"`
	AssignedPersonnel  []string `json:"assignedPersonnel,omitempty"`
}

// ScopeOfWork is carried through to the method statement untouched.
type ScopeOfWork struct {
	Description     string   `json:"description"`
	KeyDeliverables []string `json:"keyDeliverables,omitempty"`
	Exclusions      []string `json:"exclusions,omitempty"`
}

// ScheduleDetails is carried through to the method statement untouched.
type ScheduleDetails struct {
	WorkingHours       string `json:"workingHours,omitempty"`
	TeamSize           string `json:"teamSize,omitempty"`
	Duration           string `json:"duration,omitempty"`
	AccessRequirements string `json:"accessRequirements,omitempty"`
}

// InstallerOutput is the installer assistant's procedure.
type InstallerOutput struct {
	Steps                 []InstallationStep `json:"steps"`
	ScopeOfWork           *ScopeOfWork       `json:"scopeOfWork,omitempty"`
	ScheduleDetails       *ScheduleDetails   `json:"scheduleDetails,omitempty"`
	ComplianceRegulations []string           `json:"complianceRegulations,omitempty"`
	TotalEstimatedTime    string             `json:"totalEstimatedTime,omitempty"`
}

// HazardInput is one hazard as assessed by the health & safety assistant.
type HazardInput struct {
	ID              string   `json:"id,omitempty"`
	Hazard          string   `json:"hazard"`
	Likelihood      int      `json:"likelihood"`
	Severity        int      `json:"severity"`
	ControlMeasures []string `json:"controlMeasures,omitempty"`
	ResidualRisk    int      `json:"residualRisk,omitempty"`
	LinkedToStep    int      `json:"linkedToStep,omitempty"`
	Regulation      string   `json:"regulation,omitempty"`
}

// PPEItem is one piece of protective equipment.
type PPEItem struct {
	PPEType   string `json:"ppeType"`
	Standard  string `json:"standard,omitempty"`
	Mandatory bool   `json:"mandatory"`
	Purpose   string `json:"purpose,omitempty"`
}

// HealthSafetyOutput is the hazard assessment.
type HealthSafetyOutput struct {
	Hazards               []HazardInput `json:"hazards"`
	PPE                   []PPEItem     `json:"ppe,omitempty"`
	EmergencyProcedures   []string      `json:"emergencyProcedures,omitempty"`
	ComplianceRegulations []string      `json:"complianceRegulations,omitempty"`
}

// Amount is a number that upstream assistants sometimes send as a string
// ("12.50", "50"). It decodes either form.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*a = 0
		return nil
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// CostEngineerMaterial is one material priced by the cost engineer.
type CostEngineerMaterial struct {
	Item      string `json:"item"`
	Quantity  Amount `json:"quantity"`
	Unit      string `json:"unit,omitempty"`
	UnitPrice Amount `json:"unitPrice"`
	Total     Amount `json:"total,omitempty"`
	Supplier  string `json:"supplier,omitempty"`
}

// LabourSummary is the cost engineer's labour estimate.
type LabourSummary struct {
	Hours       Amount `json:"hours"`
	Rate        Amount `json:"rate"`
	Description string `json:"description,omitempty"`
}

// CostEngineerOutput is the cost engineer's estimate.
type CostEngineerOutput struct {
	Materials []CostEngineerMaterial `json:"materials"`
	Labour    *LabourSummary         `json:"labour,omitempty"`
}

// EICCircuit is one row of the installation schedule.
type EICCircuit struct {
	Number           string  `json:"number"`
	Description      string  `json:"description"`
	CableSize        string  `json:"cableSize,omitempty"`
	CPCSize          string  `json:"cpcSize,omitempty"`
	ProtectiveDevice string  `json:"protectiveDevice,omitempty"`
	RatingAmps       float64 `json:"ratingAmps,omitempty"`
	MaxZs            float64 `json:"maxZs,omitempty"`
	DesignCurrent    float64 `json:"designCurrent,omitempty"`
}

// EICSchedule is the circuit design handed over for the installation
// certificate. It is also the source of the design spec PDF.
type EICSchedule struct {
	InstallationAddress string       `json:"installationAddress"`
	DesignerName        string       `json:"designerName"`
	DesignDate          string       `json:"designDate,omitempty"`
	SupplyType          string       `json:"supplyType,omitempty"`
	EarthingArrangement string       `json:"earthingArrangement,omitempty"`
	Circuits            []EICCircuit `json:"circuits"`
}

// ── Project metadata ────────────────────────────────────────────────

// ClientDetails is the quote recipient.
type ClientDetails struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// ProjectDetails describes the job the documents are for.
type ProjectDetails struct {
	Name        string         `json:"name"`
	Location    string         `json:"location,omitempty"`
	Description string         `json:"description,omitempty"`
	Assessor    string         `json:"assessor,omitempty"`
	Contractor  string         `json:"contractor,omitempty"`
	Supervisor  string         `json:"supervisor,omitempty"`
	Date        time.Time      `json:"date,omitempty"`
	Client      *ClientDetails `json:"client,omitempty"`
}

// ── Generated documents ─────────────────────────────────────────────

// MethodStep is an installation step with its graded risk.
type MethodStep struct {
	StepNumber         int       `json:"stepNumber"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	SafetyRequirements []string  `json:"safetyRequirements"`
	Equipment          []string  `json:"equipmentNeeded"`
	Materials          []string  `json:"materials"`
	EstimatedDuration  string    `json:"estimatedDuration"`
	CriticalPoints     []string  `json:"criticalPoints"`
	RiskLevel          RiskLevel `json:"riskLevel"`
	Qualifications     []string  `json:"qualifications,omitempty"`
	AssignedPersonnel  []string  `json:"assignedPersonnel,omitempty"`
}

// MethodStatementDocument is the step-by-step safe system of work.
type MethodStatementDocument struct {
	SchemaVersion          int              `json:"schemaVersion"`
	JobTitle               string           `json:"jobTitle"`
	Location               string           `json:"location"`
	Contractor             string           `json:"contractor"`
	Supervisor             string           `json:"supervisor"`
	Steps                  []MethodStep     `json:"steps"`
	ToolsRequired          []string         `json:"toolsRequired"`
	MaterialsRequired      []string         `json:"materialsRequired"`
	TotalEstimatedTime     string           `json:"totalEstimatedTime"`
	RequiredQualifications []string         `json:"requiredQualifications"`
	OverallRiskLevel       RiskLevel        `json:"overallRiskLevel"`
	ScopeOfWork            *ScopeOfWork     `json:"scopeOfWork,omitempty"`
	ScheduleDetails        *ScheduleDetails `json:"scheduleDetails,omitempty"`
	ComplianceRegulations  []string         `json:"complianceRegulations,omitempty"`
}

// RiskEntry is one row of the RAMS risk table.
type RiskEntry struct {
	ID                string `json:"id"`
	Hazard            string `json:"hazard"`
	Category          string `json:"category"`
	Risk              string `json:"risk"`
	Likelihood        int    `json:"likelihood"`
	Severity          int    `json:"severity"`
	RiskRating        int    `json:"riskRating"`
	Controls          string `json:"controls"`
	ResidualRisk      int    `json:"residualRisk"`
	ResponsiblePerson string `json:"responsiblePerson"`
	FurtherAction     bool   `json:"furtherAction"`
	LinkedStep        int    `json:"linkedStep,omitempty"`
}

// RAMSDocument is the risk assessment half of the RAMS pair.
type RAMSDocument struct {
	SchemaVersion       int         `json:"schemaVersion"`
	ProjectName         string      `json:"projectName"`
	Location            string      `json:"location"`
	Date                string      `json:"date"`
	Assessor            string      `json:"assessor"`
	Contractor          string      `json:"contractor,omitempty"`
	Supervisor          string      `json:"supervisor,omitempty"`
	Activities          []string    `json:"activities"`
	Risks               []RiskEntry `json:"risks"`
	RequiredPPE         []string    `json:"requiredPpe,omitempty"`
	EmergencyProcedures []string    `json:"emergencyProcedures,omitempty"`
}

// CostLineItem is one priced row of a quote.
type CostLineItem struct {
	ID          string  `json:"id"`
	Code        string  `json:"materialCode,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
	Category    string  `json:"category"`
	Notes       string  `json:"notes,omitempty"`
}

// QuoteSettings are the commercial terms applied to a quote.
type QuoteSettings struct {
	LabourRate      float64 `json:"labourRate"`
	OverheadPercent float64 `json:"overheadPercentage"`
	ProfitPercent   float64 `json:"profitMargin"`
	VATRate         float64 `json:"vatRate"`
	VATRegistered   bool    `json:"vatRegistered"`
}

// JobDetails summarises the work on the quote.
type JobDetails struct {
	Title       string `json:"title"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// QuoteStatusDraft is the only status this package assigns.
const QuoteStatusDraft = "draft"

// QuoteDocument is a fully costed quote.
type QuoteDocument struct {
	SchemaVersion int            `json:"schemaVersion"`
	QuoteNumber   string         `json:"quoteNumber"`
	Client        ClientDetails  `json:"client"`
	Job           JobDetails     `json:"jobDetails"`
	Items         []CostLineItem `json:"items"`
	Settings      QuoteSettings  `json:"settings"`
	Subtotal      float64        `json:"subtotal"`
	Overhead      float64        `json:"overhead"`
	Profit        float64        `json:"profit"`
	VATAmount     float64        `json:"vatAmount"`
	Total         float64        `json:"total"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	ExpiryDate    time.Time      `json:"expiryDate"`
}

// ── Export aggregate ────────────────────────────────────────────────

// DocumentKind names a rendered document type.
type DocumentKind string

const (
	KindDesignSpec DocumentKind = "design_spec"
	KindQuote      DocumentKind = "quote"
	KindRAMS       DocumentKind = "rams"
)

// DocumentKinds lists the renderable kinds in their reporting order.
var DocumentKinds = []DocumentKind{KindDesignSpec, KindQuote, KindRAMS}

// DisplayName is the human title of the kind.
func (k DocumentKind) DisplayName() string {
	switch k {
	case KindDesignSpec:
		return "Circuit Design Specification"
	case KindQuote:
		return "Quotation"
	case KindRAMS:
		return "Risk Assessment & Method Statement"
	default:
		return string(k)
	}
}

// GeneratedPDF records one rendered artifact.
type GeneratedPDF struct {
	Type        DocumentKind `json:"type"`
	Name        string       `json:"name"`
	URL         string       `json:"url"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Source      RenderState  `json:"source"`
}

// ProjectExport links the documents produced from one conversation.
type ProjectExport struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"userId"`
	ConversationID  string                   `json:"conversationId"`
	ProjectName     string                   `json:"projectName"`
	EICScheduleID   string                   `json:"eicScheduleId,omitempty"`
	QuoteID         string                   `json:"quoteId,omitempty"`
	RAMS            *RAMSDocument            `json:"ramsData,omitempty"`
	MethodStatement *MethodStatementDocument `json:"methodStatementData,omitempty"`
	ExportedAt      time.Time                `json:"exportedAt"`
	GeneratedPDFs   []GeneratedPDF           `json:"generatedPdfs"`
}
