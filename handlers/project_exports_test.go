package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"projectdocs/services"
	"projectdocs/testhelpers"
)

type testExportResponse struct {
	Export   services.ProjectExport   `json:"export"`
	Outcomes []services.RenderOutcome `json:"outcomes"`
}

func postExport(t *testing.T, app *pocketbase.PocketBase, d *Deps, auth *core.Record, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/project-exports", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e := newTestRequestEvent(app, req, rec)
	e.Auth = auth

	require.NoError(t, HandleExportCreate(d)(e))
	return rec
}

func getWithID(app *pocketbase.PocketBase, method, path, id string, auth *core.Record) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	e := newTestRequestEvent(app, req, rec)
	e.Auth = auth
	return e, rec
}

func TestHandleExportCreate_Success(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	user := testhelpers.CreateTestUser(t, app, "spark@example.com")
	d := newTestDeps(t, app)

	rec := postExport(t, app, d, user, testhelpers.SampleRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp testExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.Export.ID)
	assert.Equal(t, user.Id, resp.Export.UserID)
	assert.NotEmpty(t, resp.Export.QuoteID)
	require.Len(t, resp.Outcomes, len(services.DocumentKinds))
	for _, o := range resp.Outcomes {
		assert.Equal(t, services.StateLocalSucceeded, o.State, "kind %s", o.Kind)
		assert.NotEmpty(t, o.RemoteError)
	}

	// One PDF per document kind, and the list is persisted on the export.
	require.Len(t, resp.Export.GeneratedPDFs, 3)
	stored, err := d.Store.FindProjectExport(resp.Export.ID)
	require.NoError(t, err)
	assert.Len(t, stored.GeneratedPDFs, 3)
}

func TestHandleExportCreate_Unauthenticated(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	d := newTestDeps(t, app)

	rec := postExport(t, app, d, nil, testhelpers.SampleRequest())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleExportCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*services.ExportRequest)
		field  string
	}{
		{
			name:   "missing conversation id",
			mutate: func(r *services.ExportRequest) { r.ConversationID = "" },
			field:  "conversationId",
		},
		{
			name:   "missing project name",
			mutate: func(r *services.ExportRequest) { r.Project.Name = "" },
			field:  "project.name",
		},
		{
			name: "likelihood out of range",
			mutate: func(r *services.ExportRequest) {
				r.Outputs.HealthSafety.Hazards[0].Likelihood = 6
			},
			field: "outputs.healthSafety.hazards.0.likelihood",
		},
		{
			name: "negative quantity",
			mutate: func(r *services.ExportRequest) {
				r.Outputs.CostEngineer.Materials[0].Quantity = -1
			},
			field: "outputs.costEngineer.materials.0.quantity",
		},
	}

	app := testhelpers.NewTestApp(t)
	user := testhelpers.CreateTestUser(t, app, "spark@example.com")
	d := newTestDeps(t, app)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testhelpers.SampleRequest()
			tt.mutate(&req)

			rec := postExport(t, app, d, user, req)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Fields, tt.field)
		})
	}
}

func TestHandleExportCreate_BlankClientSkipsQuote(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	user := testhelpers.CreateTestUser(t, app, "spark@example.com")
	d := newTestDeps(t, app)

	req := testhelpers.SampleRequest()
	req.Project.Client = &services.ClientDetails{}

	rec := postExport(t, app, d, user, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp testExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Export.QuoteID)
	for _, o := range resp.Outcomes {
		if o.Kind == services.KindQuote {
			assert.Equal(t, services.StateNotRequested, o.State)
		}
	}
}

func TestHandleExportCreate_BadJSON(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	user := testhelpers.CreateTestUser(t, app, "spark@example.com")
	d := newTestDeps(t, app)

	req := httptest.NewRequest(http.MethodPost, "/api/project-exports", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e := newTestRequestEvent(app, req, rec)
	e.Auth = user

	require.NoError(t, HandleExportCreate(d)(e))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExportView(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	owner := testhelpers.CreateTestUser(t, app, "owner@example.com")
	other := testhelpers.CreateTestUser(t, app, "other@example.com")
	d := newTestDeps(t, app)

	set, err := d.Exporter.Export(owner.Id, testhelpers.SampleRequest())
	require.NoError(t, err)

	t.Run("owner", func(t *testing.T) {
		e, rec := getWithID(app, http.MethodGet, "/api/project-exports/"+set.Export.ID, set.Export.ID, owner)
		require.NoError(t, HandleExportView(d)(e))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp testExportResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, set.Export.ID, resp.Export.ID)
		require.NotNil(t, resp.Export.RAMS)
	})

	t.Run("other user", func(t *testing.T) {
		e, rec := getWithID(app, http.MethodGet, "/api/project-exports/"+set.Export.ID, set.Export.ID, other)
		require.NoError(t, HandleExportView(d)(e))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		e, rec := getWithID(app, http.MethodGet, "/api/project-exports/nope", "nope", owner)
		require.NoError(t, HandleExportView(d)(e))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleExportRender(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	owner := testhelpers.CreateTestUser(t, app, "owner@example.com")
	d := newTestDeps(t, app)

	req := testhelpers.SampleRequest()
	req.Outputs.EICData = nil
	set, err := d.Exporter.Export(owner.Id, req)
	require.NoError(t, err)

	// Rendering twice still leaves one entry per kind.
	var resp testExportResponse
	for range 2 {
		e, rec := getWithID(app, http.MethodPost, "/api/project-exports/"+set.Export.ID+"/pdfs", set.Export.ID, owner)
		require.NoError(t, HandleExportRender(d)(e))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}

	kinds := map[services.DocumentKind]int{}
	for _, pdf := range resp.Export.GeneratedPDFs {
		kinds[pdf.Type]++
	}
	assert.Equal(t, map[services.DocumentKind]int{services.KindQuote: 1, services.KindRAMS: 1}, kinds)

	stored, err := d.Store.FindProjectExport(set.Export.ID)
	require.NoError(t, err)
	assert.Len(t, stored.GeneratedPDFs, 2)

	for _, o := range resp.Outcomes {
		if o.Kind == services.KindDesignSpec {
			assert.Equal(t, services.StateNotRequested, o.State)
		}
	}
}

func TestHandleQuoteExcel(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	owner := testhelpers.CreateTestUser(t, app, "owner@example.com")
	d := newTestDeps(t, app)

	set, err := d.Exporter.Export(owner.Id, testhelpers.SampleRequest())
	require.NoError(t, err)

	e, rec := getWithID(app, http.MethodGet, "/api/project-exports/"+set.Export.ID+"/quote.xlsx", set.Export.ID, owner)
	require.NoError(t, HandleQuoteExcel(d)(e))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), set.Quote.QuoteNumber)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	title, err := f.GetCellValue("Quote", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Quotation "+set.Quote.QuoteNumber, title)
}

func TestHandleQuoteExcel_NoQuote(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	owner := testhelpers.CreateTestUser(t, app, "owner@example.com")
	d := newTestDeps(t, app)

	req := testhelpers.SampleRequest()
	req.Outputs.CostEngineer = nil
	set, err := d.Exporter.Export(owner.Id, req)
	require.NoError(t, err)

	e, rec := getWithID(app, http.MethodGet, "/api/project-exports/"+set.Export.ID+"/quote.xlsx", set.Export.ID, owner)
	require.NoError(t, HandleQuoteExcel(d)(e))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
