package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"projectdocs/collections"
	"projectdocs/services"
	"projectdocs/testhelpers"
)

// newTestRequestEvent creates a RequestEvent suitable for handler tests.
func newTestRequestEvent(app *pocketbase.PocketBase, req *http.Request, rec *httptest.ResponseRecorder) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e
}

// newTestDeps wires handlers against a temp app with remote rendering
// disabled, so every PDF goes through the local renderer.
func newTestDeps(t *testing.T, app *pocketbase.PocketBase) *Deps {
	t.Helper()

	store := collections.NewStore(app)
	logger := zap.NewNop()
	now := func() time.Time { return testhelpers.FixedTime }

	exporter := services.NewExporter(store, services.QuoteSettings{
		LabourRate:      45,
		OverheadPercent: 15,
		ProfitPercent:   20,
		VATRate:         20,
		VATRegistered:   true,
	}, logger)
	exporter.Now = now
	exporter.Quotes.Now = now

	local := services.NewMarotoRenderer("")
	local.Now = now

	return &Deps{
		Exporter: exporter,
		Pipeline: &services.PDFPipeline{
			Remote:      services.DisabledRenderer{},
			Local:       local,
			Artifacts:   store,
			Store:       store,
			Logger:      logger,
			Concurrency: 3,
			Now:         now,
		},
		Store:  store,
		Logger: logger,
	}
}
