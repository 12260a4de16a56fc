package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projectdocs/collections"
	"projectdocs/config"
	"projectdocs/handlers"
	"projectdocs/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	app := pocketbase.New()

	// Create collections on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		if err := collections.Setup(app, logger); err != nil {
			return err
		}
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		d := newDeps(app, cfg, logger)

		// ── Project exports (auth required) ──────────────────────
		g := se.Router.Group("/api/project-exports")
		g.Bind(apis.RequireAuth())
		g.POST("", handlers.HandleExportCreate(d))
		g.GET("/{id}", handlers.HandleExportView(d))
		g.POST("/{id}/pdfs", handlers.HandleExportRender(d))
		g.GET("/{id}/quote.xlsx", handlers.HandleQuoteExcel(d))

		return se.Next()
	})

	app.RootCmd.AddCommand(newExportCommand(app, cfg, logger))

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// newDeps wires the exporter, PDF pipeline and store against app.
func newDeps(app core.App, cfg *config.Config, logger *zap.Logger) *handlers.Deps {
	store := collections.NewStore(app)
	return &handlers.Deps{
		Exporter: services.NewExporter(store, cfg.QuoteSettings(), logger),
		Pipeline: &services.PDFPipeline{
			Remote:      cfg.RemoteRenderer(),
			Local:       services.NewMarotoRenderer(cfg.PDF.Attribution),
			Artifacts:   store,
			Store:       store,
			Logger:      logger,
			Concurrency: cfg.Render.Concurrency,
			Now:         time.Now,
		},
		Store:  store,
		Logger: logger,
	}
}

// newExportCommand runs an export from a JSON request file without the HTTP
// server, e.g. `projectdocs export --user u123 request.json`.
func newExportCommand(app *pocketbase.PocketBase, cfg *config.Config, logger *zap.Logger) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "export [request.json]",
		Short: "Build, persist and render a project export from a request file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return eris.Wrap(err, "read request")
			}
			var req services.ExportRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return eris.Wrap(err, "decode request")
			}

			if err := collections.Setup(app, logger); err != nil {
				return err
			}
			d := newDeps(app, cfg, logger)

			set, err := d.Exporter.Export(userID, req)
			if err != nil {
				return err
			}
			report, err := d.Pipeline.Generate(context.Background(), userID, set)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"export":   set.Export,
				"outcomes": report.Outcomes,
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "acting user id recorded on the export")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
