package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RenderState tracks one document kind through the render attempts.
type RenderState string

const (
	StateNotRequested    RenderState = "not_requested"
	StateRemoteAttempted RenderState = "remote_attempted"
	StateRemoteSucceeded RenderState = "remote_succeeded"
	StateRemoteFailed    RenderState = "remote_failed"
	StateLocalAttempted  RenderState = "local_fallback_attempted"
	StateLocalSucceeded  RenderState = "local_succeeded"
	StateFailed          RenderState = "failed"
)

// ErrUnknownDocumentKind is returned for a kind/source pair no renderer knows.
var ErrUnknownDocumentKind = eris.New("unknown document kind")

// RemoteRenderer renders a document on the remote service and returns a
// download URL.
type RemoteRenderer interface {
	Render(ctx context.Context, kind DocumentKind, documentData any, userID string) (string, error)
}

// LocalRenderer renders a document in-process without network access.
type LocalRenderer interface {
	Render(kind DocumentKind, source any, project ProjectDetails) ([]byte, error)
}

// ArtifactStore keeps locally rendered PDFs and returns their URL.
type ArtifactStore interface {
	SavePDF(exportID string, kind DocumentKind, filename string, pdf []byte) (string, error)
}

// RenderOutcome is the per-kind report of a pipeline run.
type RenderOutcome struct {
	Kind        DocumentKind `json:"kind"`
	State       RenderState  `json:"state"`
	RemoteError string       `json:"remoteError,omitempty"`
	LocalError  string       `json:"localError,omitempty"`
}

// RenderReport is the result of PDFPipeline.Generate.
type RenderReport struct {
	PDFs     []GeneratedPDF  `json:"pdfs"`
	Outcomes []RenderOutcome `json:"outcomes"`
}

// Failed lists kinds for which neither renderer produced a PDF.
func (r *RenderReport) Failed() []DocumentKind {
	var kinds []DocumentKind
	for _, o := range r.Outcomes {
		if o.State == StateFailed {
			kinds = append(kinds, o.Kind)
		}
	}
	return kinds
}

// PDFPipeline renders every document of an export, remote first and local
// on any remote failure. Kinds are independent: one failing does not stop
// the others.
type PDFPipeline struct {
	Remote      RemoteRenderer
	Local       LocalRenderer
	Artifacts   ArtifactStore
	Store       ExportStore
	Logger      *zap.Logger
	Concurrency int
	Now         func() time.Time
}

// Generate renders the set's documents, appends one GeneratedPDF per
// successful kind to the export and saves the list. It only returns an
// error when that save fails.
func (p *PDFPipeline) Generate(ctx context.Context, userID string, set *DocumentSet) (*RenderReport, error) {
	sources := p.sources(set)

	outcomes := make([]RenderOutcome, len(DocumentKinds))
	pdfs := make([]*GeneratedPDF, len(DocumentKinds))

	g := new(errgroup.Group)
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}
	for i, kind := range DocumentKinds {
		source := sources[kind]
		if source == nil {
			outcomes[i] = RenderOutcome{Kind: kind, State: StateNotRequested}
			continue
		}
		g.Go(func() error {
			outcomes[i], pdfs[i] = p.renderOne(ctx, kind, source, userID, set)
			return nil
		})
	}
	_ = g.Wait()

	report := &RenderReport{PDFs: []GeneratedPDF{}, Outcomes: outcomes}
	for _, pdf := range pdfs {
		if pdf != nil {
			report.PDFs = append(report.PDFs, *pdf)
		}
	}

	set.Export.GeneratedPDFs = mergePDFs(set.Export.GeneratedPDFs, report.PDFs)
	if set.Export.ID != "" && len(report.PDFs) > 0 {
		if err := p.Store.SaveGeneratedPDFs(set.Export.ID, set.Export.GeneratedPDFs); err != nil {
			return report, eris.Wrap(err, "save generated pdfs")
		}
	}
	return report, nil
}

// mergePDFs replaces earlier entries of every freshly rendered kind and keeps
// the rest, so the list holds at most one entry per kind.
func mergePDFs(existing, fresh []GeneratedPDF) []GeneratedPDF {
	rendered := make(map[DocumentKind]bool, len(fresh))
	for _, pdf := range fresh {
		rendered[pdf.Type] = true
	}
	out := make([]GeneratedPDF, 0, len(existing)+len(fresh))
	for _, pdf := range existing {
		if !rendered[pdf.Type] {
			out = append(out, pdf)
		}
	}
	return append(out, fresh...)
}

// sources returns only the documents that exist; a nil entry means the kind
// is not requested.
func (p *PDFPipeline) sources(set *DocumentSet) map[DocumentKind]any {
	m := map[DocumentKind]any{}
	if set.EICSchedule != nil {
		m[KindDesignSpec] = set.EICSchedule
	}
	if set.Quote != nil {
		m[KindQuote] = set.Quote
	}
	if set.Export.RAMS != nil {
		m[KindRAMS] = set.Export.RAMS
	}
	return m
}

func (p *PDFPipeline) renderOne(ctx context.Context, kind DocumentKind, source any, userID string, set *DocumentSet) (RenderOutcome, *GeneratedPDF) {
	out := RenderOutcome{Kind: kind, State: StateRemoteAttempted}
	log := p.Logger.With(zap.String("kind", string(kind)), zap.String("export_id", set.Export.ID))

	url, err := p.Remote.Render(ctx, kind, source, userID)
	if err == nil && url != "" {
		out.State = StateRemoteSucceeded
		return out, p.record(kind, url, StateRemoteSucceeded)
	}
	if err == nil {
		err = eris.Wrap(ErrRemoteRenderFailed, "empty download url")
	}
	out.RemoteError = err.Error()
	log.Warn("remote render failed, using local renderer", zap.Error(err))

	out.State = StateLocalAttempted
	data, err := p.Local.Render(kind, source, set.Project)
	if err == nil {
		url, err = p.Artifacts.SavePDF(set.Export.ID, kind, pdfFilename(kind, set.Project.Name), data)
	}
	if err != nil {
		out.State = StateFailed
		out.LocalError = err.Error()
		log.Error("local render failed", zap.Error(err))
		return out, nil
	}

	out.State = StateLocalSucceeded
	return out, p.record(kind, url, StateLocalSucceeded)
}

func (p *PDFPipeline) record(kind DocumentKind, url string, source RenderState) *GeneratedPDF {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return &GeneratedPDF{
		Type:        kind,
		Name:        kind.DisplayName(),
		URL:         url,
		GeneratedAt: now(),
		Source:      source,
	}
}

func pdfFilename(kind DocumentKind, project string) string {
	name := sanitizeFilename(project)
	if name == "" {
		name = "project"
	}
	return fmt.Sprintf("%s_%s.pdf", kind, name)
}

// sanitizeFilename removes characters that are unsafe for filenames.
func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, ":", "-")
	return s
}
