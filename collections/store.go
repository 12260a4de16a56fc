package collections

import (
	"database/sql"
	"errors"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/filesystem"
	"github.com/rotisserie/eris"

	"projectdocs/services"
)

// Store persists documents in PocketBase collections. It implements
// services.ExportStore and services.ArtifactStore.
type Store struct {
	app core.App
}

// NewStore returns a store bound to app. Collections must already exist.
func NewStore(app core.App) *Store {
	return &Store{app: app}
}

var (
	_ services.ExportStore   = (*Store)(nil)
	_ services.ArtifactStore = (*Store)(nil)
)

// RunInTransaction runs fn with a store bound to a single transaction. Any
// error returned by fn rolls back every write made through tx.
func (s *Store) RunInTransaction(fn func(tx services.ExportStore) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&Store{app: txApp})
	})
}

// InsertEICSchedule saves a circuit design schedule and returns its ID.
func (s *Store) InsertEICSchedule(userID string, schedule *services.EICSchedule) (string, error) {
	rec, err := s.newRecord(EICSchedules)
	if err != nil {
		return "", err
	}
	rec.Set("user_id", userID)
	rec.Set("schema_version", services.SchemaVersion)
	rec.Set("installation_address", schedule.InstallationAddress)
	rec.Set("designer_name", schedule.DesignerName)
	rec.Set("circuit_count", len(schedule.Circuits))
	rec.Set("data", schedule)

	if err := s.app.Save(rec); err != nil {
		return "", eris.Wrap(err, "save eic schedule")
	}
	return rec.Id, nil
}

// QuoteNumberExists reports whether a quote already uses quoteNumber.
func (s *Store) QuoteNumberExists(quoteNumber string) (bool, error) {
	n, err := s.app.CountRecords(Quotes, dbx.HashExp{"quote_number": quoteNumber})
	if err != nil {
		return false, eris.Wrap(err, "count quotes")
	}
	return n > 0, nil
}

// InsertQuote saves a quote and returns its ID.
func (s *Store) InsertQuote(userID string, quote *services.QuoteDocument) (string, error) {
	rec, err := s.newRecord(Quotes)
	if err != nil {
		return "", err
	}
	rec.Set("user_id", userID)
	rec.Set("schema_version", quote.SchemaVersion)
	rec.Set("quote_number", quote.QuoteNumber)
	rec.Set("client_name", quote.Client.Name)
	rec.Set("status", quote.Status)
	rec.Set("total", quote.Total)
	rec.Set("expiry_date", quote.ExpiryDate)
	rec.Set("data", quote)

	if err := s.app.Save(rec); err != nil {
		return "", eris.Wrapf(err, "save quote %s", quote.QuoteNumber)
	}
	return rec.Id, nil
}

// InsertProjectExport saves the export record. RAMS and method statement are
// embedded as JSON; the schedule and quote are referenced by ID.
func (s *Store) InsertProjectExport(export *services.ProjectExport) (string, error) {
	rec, err := s.newRecord(ProjectExports)
	if err != nil {
		return "", err
	}
	rec.Set("user_id", export.UserID)
	rec.Set("conversation_id", export.ConversationID)
	rec.Set("project_name", export.ProjectName)
	rec.Set("schema_version", services.SchemaVersion)
	rec.Set("eic_schedule", export.EICScheduleID)
	rec.Set("quote", export.QuoteID)
	if export.RAMS != nil {
		rec.Set("rams_data", export.RAMS)
	}
	if export.MethodStatement != nil {
		rec.Set("method_statement_data", export.MethodStatement)
	}
	rec.Set("generated_pdfs", nonNilPDFs(export.GeneratedPDFs))
	rec.Set("exported_at", export.ExportedAt)

	if err := s.app.Save(rec); err != nil {
		return "", eris.Wrap(err, "save project export")
	}
	return rec.Id, nil
}

// SaveGeneratedPDFs replaces the export's generated PDF list.
func (s *Store) SaveGeneratedPDFs(exportID string, pdfs []services.GeneratedPDF) error {
	rec, err := s.find(ProjectExports, exportID)
	if err != nil {
		return err
	}
	rec.Set("generated_pdfs", nonNilPDFs(pdfs))
	if err := s.app.Save(rec); err != nil {
		return eris.Wrapf(err, "save generated pdfs for %s", exportID)
	}
	return nil
}

// FindProjectExport loads an export by ID.
func (s *Store) FindProjectExport(id string) (*services.ProjectExport, error) {
	rec, err := s.find(ProjectExports, id)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(rec); err != nil {
		return nil, err
	}

	export := &services.ProjectExport{
		ID:             rec.Id,
		UserID:         rec.GetString("user_id"),
		ConversationID: rec.GetString("conversation_id"),
		ProjectName:    rec.GetString("project_name"),
		EICScheduleID:  rec.GetString("eic_schedule"),
		QuoteID:        rec.GetString("quote"),
		ExportedAt:     rec.GetDateTime("exported_at").Time(),
		GeneratedPDFs:  []services.GeneratedPDF{},
	}

	if hasJSON(rec, "rams_data") {
		export.RAMS = &services.RAMSDocument{}
		if err := rec.UnmarshalJSONField("rams_data", export.RAMS); err != nil {
			return nil, eris.Wrap(err, "decode rams_data")
		}
	}
	if hasJSON(rec, "method_statement_data") {
		export.MethodStatement = &services.MethodStatementDocument{}
		if err := rec.UnmarshalJSONField("method_statement_data", export.MethodStatement); err != nil {
			return nil, eris.Wrap(err, "decode method_statement_data")
		}
	}
	if hasJSON(rec, "generated_pdfs") {
		if err := rec.UnmarshalJSONField("generated_pdfs", &export.GeneratedPDFs); err != nil {
			return nil, eris.Wrap(err, "decode generated_pdfs")
		}
	}
	return export, nil
}

// FindQuote loads a quote by record ID.
func (s *Store) FindQuote(id string) (*services.QuoteDocument, error) {
	rec, err := s.find(Quotes, id)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(rec); err != nil {
		return nil, err
	}
	q := &services.QuoteDocument{}
	if err := rec.UnmarshalJSONField("data", q); err != nil {
		return nil, eris.Wrap(err, "decode quote")
	}
	return q, nil
}

// FindEICSchedule loads a circuit design schedule by record ID.
func (s *Store) FindEICSchedule(id string) (*services.EICSchedule, error) {
	rec, err := s.find(EICSchedules, id)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(rec); err != nil {
		return nil, err
	}
	schedule := &services.EICSchedule{}
	if err := rec.UnmarshalJSONField("data", schedule); err != nil {
		return nil, eris.Wrap(err, "decode eic schedule")
	}
	return schedule, nil
}

// SavePDF stores a locally rendered PDF against the export and returns a
// URL served by the PocketBase file API.
func (s *Store) SavePDF(exportID string, kind services.DocumentKind, filename string, pdf []byte) (string, error) {
	rec, err := s.newRecord(GeneratedPDFs)
	if err != nil {
		return "", err
	}
	file, err := filesystem.NewFileFromBytes(pdf, filename)
	if err != nil {
		return "", eris.Wrap(err, "wrap pdf bytes")
	}
	rec.Set("export", exportID)
	rec.Set("kind", string(kind))
	rec.Set("file", file)

	if err := s.app.Save(rec); err != nil {
		return "", eris.Wrapf(err, "save %s pdf", kind)
	}
	return "/api/files/" + rec.BaseFilesPath() + "/" + rec.GetString("file"), nil
}

func (s *Store) newRecord(collection string) (*core.Record, error) {
	col, err := s.app.FindCachedCollectionByNameOrId(collection)
	if err != nil {
		return nil, eris.Wrapf(err, "collection %s", collection)
	}
	return core.NewRecord(col), nil
}

func (s *Store) find(collection, id string) (*core.Record, error) {
	rec, err := s.app.FindRecordById(collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(services.ErrNotFound, "%s %s", collection, id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "find %s %s", collection, id)
	}
	return rec, nil
}

func checkSchema(rec *core.Record) error {
	if v := rec.GetInt("schema_version"); v != services.SchemaVersion {
		return eris.Wrapf(services.ErrUnsupportedSchema, "%s %s has version %d", rec.Collection().Name, rec.Id, v)
	}
	return nil
}

// hasJSON reports whether a JSON field holds something other than null.
func hasJSON(rec *core.Record, field string) bool {
	raw := rec.GetString(field)
	return raw != "" && raw != "null"
}

func nonNilPDFs(pdfs []services.GeneratedPDF) []services.GeneratedPDF {
	if pdfs == nil {
		return []services.GeneratedPDF{}
	}
	return pdfs
}
