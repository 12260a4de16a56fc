package handlers

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"projectdocs/services"
)

// Deps bundles what the export handlers need.
type Deps struct {
	Exporter *services.Exporter
	Pipeline *services.PDFPipeline
	Store    services.ExportStore
	Logger   *zap.Logger
}

type exportResponse struct {
	Export   *services.ProjectExport  `json:"export"`
	Outcomes []services.RenderOutcome `json:"outcomes,omitempty"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Stage  string            `json:"stage,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HandleExportCreate returns a handler that builds, persists and renders a
// project export for the authenticated user.
func HandleExportCreate(d *Deps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			return e.JSON(http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		}

		var req services.ExportRequest
		if err := e.BindBody(&req); err != nil {
			return e.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		}

		set, err := d.Exporter.Export(e.Auth.Id, req)
		if err != nil {
			return writeExportError(e, d.Logger, err)
		}

		report, err := d.Pipeline.Generate(e.Request.Context(), e.Auth.Id, set)
		if err != nil {
			// The export itself is saved; only the PDF list update failed.
			d.Logger.Error("save generated pdfs", zap.String("export_id", set.Export.ID), zap.Error(err))
		}

		return e.JSON(http.StatusCreated, exportResponse{Export: set.Export, Outcomes: report.Outcomes})
	}
}

// HandleExportView returns a handler that serves a persisted export.
func HandleExportView(d *Deps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		export, ok := loadOwnedExport(e, d)
		if !ok {
			return nil
		}
		return e.JSON(http.StatusOK, exportResponse{Export: export})
	}
}

// HandleExportRender returns a handler that re-runs the PDF pipeline for an
// existing export. Each rendered kind replaces the export's earlier entry for
// that kind; older generated_pdfs file records are left in place.
func HandleExportRender(d *Deps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		export, ok := loadOwnedExport(e, d)
		if !ok {
			return nil
		}

		set, err := services.LoadDocumentSet(d.Store, export.ID)
		if err != nil {
			return writeExportError(e, d.Logger, err)
		}

		report, err := d.Pipeline.Generate(e.Request.Context(), e.Auth.Id, set)
		if err != nil {
			d.Logger.Error("save generated pdfs", zap.String("export_id", export.ID), zap.Error(err))
			return e.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to save generated PDFs"})
		}
		return e.JSON(http.StatusOK, exportResponse{Export: set.Export, Outcomes: report.Outcomes})
	}
}

// HandleQuoteExcel returns a handler that downloads the export's quote as an
// Excel workbook.
func HandleQuoteExcel(d *Deps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		export, ok := loadOwnedExport(e, d)
		if !ok {
			return nil
		}
		if export.QuoteID == "" {
			return e.JSON(http.StatusNotFound, errorResponse{Error: "export has no quote"})
		}

		quote, err := d.Store.FindQuote(export.QuoteID)
		if err != nil {
			return writeExportError(e, d.Logger, err)
		}

		xlsxBytes, err := services.GenerateQuoteExcel(quote)
		if err != nil {
			d.Logger.Error("generate quote workbook", zap.String("quote_id", export.QuoteID), zap.Error(err))
			return e.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to generate Excel file"})
		}

		e.Response.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, quote.QuoteNumber))
		e.Response.WriteHeader(http.StatusOK)
		_, err = e.Response.Write(xlsxBytes)
		return err
	}
}

// loadOwnedExport resolves {id} to an export owned by the caller. When it
// returns false the response has already been written.
func loadOwnedExport(e *core.RequestEvent, d *Deps) (*services.ProjectExport, bool) {
	if e.Auth == nil {
		e.JSON(http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return nil, false
	}
	id := e.Request.PathValue("id")
	if id == "" {
		e.JSON(http.StatusBadRequest, errorResponse{Error: "missing export id"})
		return nil, false
	}

	export, err := d.Store.FindProjectExport(id)
	if err != nil {
		writeExportError(e, d.Logger, err)
		return nil, false
	}
	if export.UserID != e.Auth.Id {
		e.JSON(http.StatusNotFound, errorResponse{Error: "export not found"})
		return nil, false
	}
	return export, true
}

// writeExportError maps service errors onto HTTP statuses. Persistence
// stage failures are checked first since record validation inside a stage
// also surfaces as validation.Errors.
func writeExportError(e *core.RequestEvent, logger *zap.Logger, err error) error {
	var stageErr *services.ExportStageError
	if errors.As(err, &stageErr) {
		logger.Error("project export failed", zap.String("stage", stageErr.Stage), zap.Error(stageErr.Err))
		return e.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to save export", Stage: stageErr.Stage})
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		flattenValidation("", verrs, fields)
		return e.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
	}
	if services.IsValidationError(err) {
		return e.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if errors.Is(err, services.ErrNotFound) {
		return e.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	}

	logger.Error("project export request failed", zap.Error(err))
	return e.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// flattenValidation turns nested ozzo errors into dotted field paths.
func flattenValidation(prefix string, verrs validation.Errors, out map[string]string) {
	for field, err := range verrs {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flattenValidation(key, nested, out)
			continue
		}
		out[key] = err.Error()
	}
}
