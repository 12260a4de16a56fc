package collections

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Collection names.
const (
	EICSchedules   = "eic_schedules"
	Quotes         = "quotes"
	ProjectExports = "project_exports"
	GeneratedPDFs  = "generated_pdfs"
)

// maxPDFSize caps a locally rendered PDF upload.
const maxPDFSize = 20 << 20

// Setup programmatically creates/ensures the eic_schedules, quotes,
// project_exports and generated_pdfs collections exist.
func Setup(app core.App, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	schedules, err := ensureCollection(app, logger, EICSchedules, func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "user_id", Required: true})
		c.Fields.Add(&core.NumberField{Name: "schema_version", Required: true, OnlyInt: true})
		c.Fields.Add(&core.TextField{Name: "installation_address"})
		c.Fields.Add(&core.TextField{Name: "designer_name"})
		c.Fields.Add(&core.NumberField{Name: "circuit_count", OnlyInt: true})
		c.Fields.Add(&core.JSONField{Name: "data", Required: true, MaxSize: 2 << 20})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_eic_schedules_user", false, "user_id", "")
	})
	if err != nil {
		return err
	}

	quotes, err := ensureCollection(app, logger, Quotes, func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "user_id", Required: true})
		c.Fields.Add(&core.NumberField{Name: "schema_version", Required: true, OnlyInt: true})
		c.Fields.Add(&core.TextField{Name: "quote_number", Required: true})
		c.Fields.Add(&core.TextField{Name: "client_name"})
		c.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			Values:    []string{"draft", "sent", "accepted", "rejected"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.NumberField{Name: "total"})
		c.Fields.Add(&core.DateField{Name: "expiry_date"})
		c.Fields.Add(&core.JSONField{Name: "data", Required: true, MaxSize: 2 << 20})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_quotes_quote_number", true, "quote_number", "")
		c.AddIndex("idx_quotes_user", false, "user_id", "")
	})
	if err != nil {
		return err
	}

	exports, err := ensureCollection(app, logger, ProjectExports, func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "user_id", Required: true})
		c.Fields.Add(&core.TextField{Name: "conversation_id", Required: true})
		c.Fields.Add(&core.TextField{Name: "project_name", Required: true})
		c.Fields.Add(&core.NumberField{Name: "schema_version", Required: true, OnlyInt: true})
		c.Fields.Add(&core.RelationField{
			Name:         "eic_schedule",
			CollectionId: schedules.Id,
			MaxSelect:    1,
		})
		c.Fields.Add(&core.RelationField{
			Name:         "quote",
			CollectionId: quotes.Id,
			MaxSelect:    1,
		})
		c.Fields.Add(&core.JSONField{Name: "rams_data", MaxSize: 2 << 20})
		c.Fields.Add(&core.JSONField{Name: "method_statement_data", MaxSize: 2 << 20})
		c.Fields.Add(&core.JSONField{Name: "generated_pdfs", MaxSize: 1 << 20})
		c.Fields.Add(&core.DateField{Name: "exported_at", Required: true})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_project_exports_user", false, "user_id", "")
		c.AddIndex("idx_project_exports_conversation", false, "conversation_id", "")
	})
	if err != nil {
		return err
	}

	_, err = ensureCollection(app, logger, GeneratedPDFs, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "export",
			Required:      true,
			CollectionId:  exports.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.SelectField{
			Name:      "kind",
			Required:  true,
			Values:    []string{"design_spec", "quote", "rams"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.FileField{
			Name:      "file",
			Required:  true,
			MaxSelect: 1,
			MaxSize:   maxPDFSize,
			MimeTypes: []string{"application/pdf"},
		})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
	})
	return err
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app core.App, logger *zap.Logger, name string, addFields func(*core.Collection)) (*core.Collection, error) {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		logger.Debug("collection exists", zap.String("collection", name))
		return existing, nil
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		return nil, eris.Wrapf(err, "create collection %q", name)
	}

	logger.Info("collection created", zap.String("collection", name), zap.String("id", collection.Id))
	return collection, nil
}
