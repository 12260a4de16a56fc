package services

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Persistence stages, in write order.
const (
	StageEICSchedule   = "eic_schedule"
	StageQuote         = "quote"
	StageProjectExport = "project_export"
)

// maxQuoteNumberAttempts bounds quote-number regeneration on collision.
const maxQuoteNumberAttempts = 5

var (
	// ErrQuoteNumberExhausted means every generated quote number was taken.
	ErrQuoteNumberExhausted = eris.New("no free quote number")
	// ErrMissingIdentity means the caller did not say who is exporting.
	ErrMissingIdentity = eris.New("acting user is required")
	// ErrUnsupportedSchema is returned when a stored document has an unknown
	// schema version.
	ErrUnsupportedSchema = eris.New("unsupported document schema version")
	// ErrNotFound is returned by stores for a missing document.
	ErrNotFound = eris.New("document not found")
)

// ExportStageError reports which persistence write failed.
type ExportStageError struct {
	Stage string
	Err   error
}

func (e *ExportStageError) Error() string {
	return fmt.Sprintf("export failed at %s: %v", e.Stage, e.Err)
}

func (e *ExportStageError) Unwrap() error { return e.Err }

// ExportStore is the persistence port used by the exporter and PDF pipeline.
type ExportStore interface {
	// RunInTransaction runs fn against a store bound to one transaction.
	RunInTransaction(fn func(tx ExportStore) error) error

	InsertEICSchedule(userID string, schedule *EICSchedule) (string, error)
	QuoteNumberExists(quoteNumber string) (bool, error)
	InsertQuote(userID string, quote *QuoteDocument) (string, error)
	InsertProjectExport(export *ProjectExport) (string, error)
	SaveGeneratedPDFs(exportID string, pdfs []GeneratedPDF) error

	FindProjectExport(id string) (*ProjectExport, error)
	FindQuote(id string) (*QuoteDocument, error)
	FindEICSchedule(id string) (*EICSchedule, error)
}

// ExportRequest is what callers hand to the exporter.
type ExportRequest struct {
	ConversationID string         `json:"conversationId"`
	Project        ProjectDetails `json:"project"`
	Outputs        AgentOutputs   `json:"outputs"`
}

// DocumentSet is an export plus the source data its PDFs are rendered from.
type DocumentSet struct {
	Export      *ProjectExport
	Project     ProjectDetails
	Quote       *QuoteDocument
	EICSchedule *EICSchedule
}

// Exporter turns assistant outputs into a persisted ProjectExport. It is the
// only component that writes documents.
type Exporter struct {
	Store    ExportStore
	Quotes   *QuoteAssembler
	Settings QuoteSettings
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewExporter wires an exporter with production defaults.
func NewExporter(store ExportStore, settings QuoteSettings, logger *zap.Logger) *Exporter {
	return &Exporter{
		Store:    store,
		Quotes:   NewQuoteAssembler(),
		Settings: settings,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Export builds every document the outputs allow and persists them. The
// quote needs both cost engineer output and client details; when either is
// missing it is skipped. RAMS comes from the hazard assessment when present
// and from installer steps otherwise.
func (x *Exporter) Export(userID string, req ExportRequest) (*DocumentSet, error) {
	if userID == "" {
		return nil, ErrMissingIdentity
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := x.Now()
	project := req.Project
	if project.Date.IsZero() {
		project.Date = now
	}
	out := req.Outputs

	export := &ProjectExport{
		UserID:         userID,
		ConversationID: req.ConversationID,
		ProjectName:    project.Name,
		ExportedAt:     now,
		GeneratedPDFs:  []GeneratedPDF{},
	}
	set := &DocumentSet{Export: export, Project: project, EICSchedule: out.EICData}

	if out.Installer != nil {
		ms := BuildMethodStatement(out.Installer, project)
		export.MethodStatement = &ms
	}

	switch {
	case out.HealthSafety != nil:
		var steps []InstallationStep
		if out.Installer != nil {
			steps = out.Installer.Steps
		}
		rams, err := BuildRAMSFromHazardAssessment(out.HealthSafety, project, steps)
		if err != nil {
			return nil, err
		}
		export.RAMS = &rams
	case out.Installer != nil:
		rams := BuildRAMSFromInstallationSteps(out.Installer.Steps, project)
		export.RAMS = &rams
	}

	if out.CostEngineer != nil {
		if project.Client == nil || project.Client.Name == "" {
			x.Logger.Info("quote skipped: no client details",
				zap.String("conversation_id", req.ConversationID))
		} else {
			set.Quote = x.buildQuote(out.CostEngineer, project)
		}
	}

	err := x.Store.RunInTransaction(func(tx ExportStore) error {
		return x.persist(tx, userID, set)
	})
	if err != nil {
		return nil, err
	}

	x.Logger.Info("project export saved",
		zap.String("export_id", export.ID),
		zap.String("user_id", userID),
		zap.Bool("method_statement", export.MethodStatement != nil),
		zap.Bool("rams", export.RAMS != nil),
		zap.Bool("quote", set.Quote != nil),
		zap.Bool("eic_schedule", set.EICSchedule != nil),
	)
	return set, nil
}

func (x *Exporter) buildQuote(ce *CostEngineerOutput, project ProjectDetails) *QuoteDocument {
	labour := ce.Labour
	if labour != nil && labour.Rate == 0 {
		withRate := *labour
		withRate.Rate = Amount(x.Settings.LabourRate)
		labour = &withRate
	}
	q := x.Quotes.AssembleQuote(x.Quotes.BuildLineItems(ce.Materials, labour), x.Settings)
	q.Client = *project.Client
	q.Job = JobDetails{
		Title:       project.Name,
		Location:    project.Location,
		Description: project.Description,
	}
	return &q
}

// persist writes EIC schedule, quote and export record in that order so the
// export can reference the earlier IDs.
func (x *Exporter) persist(tx ExportStore, userID string, set *DocumentSet) error {
	export := set.Export

	if set.EICSchedule != nil {
		id, err := tx.InsertEICSchedule(userID, set.EICSchedule)
		if err != nil {
			return &ExportStageError{Stage: StageEICSchedule, Err: err}
		}
		export.EICScheduleID = id
	}

	if set.Quote != nil {
		if err := x.reserveQuoteNumber(tx, set.Quote); err != nil {
			return &ExportStageError{Stage: StageQuote, Err: err}
		}
		id, err := tx.InsertQuote(userID, set.Quote)
		if err != nil {
			return &ExportStageError{Stage: StageQuote, Err: err}
		}
		export.QuoteID = id
	}

	id, err := tx.InsertProjectExport(export)
	if err != nil {
		return &ExportStageError{Stage: StageProjectExport, Err: err}
	}
	export.ID = id
	return nil
}

func (x *Exporter) reserveQuoteNumber(tx ExportStore, q *QuoteDocument) error {
	for attempt := 1; attempt <= maxQuoteNumberAttempts; attempt++ {
		taken, err := tx.QuoteNumberExists(q.QuoteNumber)
		if err != nil {
			return eris.Wrap(err, "check quote number")
		}
		if !taken {
			return nil
		}
		x.Logger.Warn("quote number collision",
			zap.String("quote_number", q.QuoteNumber), zap.Int("attempt", attempt))
		q.QuoteNumber = FormatQuoteNumber(q.CreatedAt, x.Quotes.IDs.Suffix())
	}
	return ErrQuoteNumberExhausted
}

// LoadDocumentSet reassembles a persisted export with its linked documents.
func LoadDocumentSet(store ExportStore, exportID string) (*DocumentSet, error) {
	export, err := store.FindProjectExport(exportID)
	if err != nil {
		return nil, err
	}
	set := &DocumentSet{Export: export, Project: ProjectDetails{Name: export.ProjectName}}
	if export.QuoteID != "" {
		if set.Quote, err = store.FindQuote(export.QuoteID); err != nil {
			return nil, eris.Wrap(err, "load quote")
		}
		c := set.Quote.Client
		set.Project.Client = &c
		set.Project.Location = set.Quote.Job.Location
	}
	if export.EICScheduleID != "" {
		if set.EICSchedule, err = store.FindEICSchedule(export.EICScheduleID); err != nil {
			return nil, eris.Wrap(err, "load eic schedule")
		}
	}
	set.Project.Date = export.ExportedAt
	if export.RAMS != nil {
		if set.Project.Location == "" {
			set.Project.Location = export.RAMS.Location
		}
		if d, err := time.Parse(time.DateOnly, export.RAMS.Date); err == nil {
			set.Project.Date = d
		}
	}
	return set, nil
}

// ── Boundary validation ─────────────────────────────────────────────

// IsValidationError reports whether err is a caller input problem.
func IsValidationError(err error) bool {
	var verrs validation.Errors
	return errors.As(err, &verrs) ||
		errors.Is(err, ErrInvalidRiskScore) ||
		errors.Is(err, ErrMissingIdentity)
}

// Validate implements validation.Validatable.
func (r ExportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ConversationID, validation.Required),
		validation.Field(&r.Project),
		validation.Field(&r.Outputs),
	)
}

// Validate implements validation.Validatable.
func (p ProjectDetails) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Client),
	)
}

// Validate implements validation.Validatable.
func (c ClientDetails) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, is.EmailFormat),
	)
}

// Validate implements validation.Validatable.
func (o AgentOutputs) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.HealthSafety),
		validation.Field(&o.CostEngineer),
	)
}

// Validate implements validation.Validatable.
func (hs HealthSafetyOutput) Validate() error {
	return validation.ValidateStruct(&hs,
		validation.Field(&hs.Hazards),
	)
}

// Validate implements validation.Validatable.
func (h HazardInput) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Hazard, validation.Required),
		validation.Field(&h.Likelihood, validation.Required, validation.Min(MinRiskScore), validation.Max(MaxRiskScore)),
		validation.Field(&h.Severity, validation.Required, validation.Min(MinRiskScore), validation.Max(MaxRiskScore)),
	)
}

// Validate implements validation.Validatable.
func (ce CostEngineerOutput) Validate() error {
	return validation.ValidateStruct(&ce,
		validation.Field(&ce.Materials),
		validation.Field(&ce.Labour),
	)
}

// Validate implements validation.Validatable.
func (m CostEngineerMaterial) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Item, validation.Required),
		validation.Field(&m.Quantity, validation.Min(Amount(0))),
		validation.Field(&m.UnitPrice, validation.Min(Amount(0))),
	)
}

// Validate implements validation.Validatable.
func (l LabourSummary) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Hours, validation.Min(Amount(0))),
		validation.Field(&l.Rate, validation.Min(Amount(0))),
	)
}
