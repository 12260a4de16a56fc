// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"testing"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"projectdocs/collections"
	"projectdocs/services"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app and runs collections.Setup to create all tables.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}
	t.Cleanup(func() { _ = app.ResetBootstrapState() })

	if err := collections.Setup(app, nil); err != nil {
		t.Fatalf("failed to set up collections: %v", err)
	}

	return app
}

// CreateTestUser creates an auth record in the users collection.
func CreateTestUser(t *testing.T, app core.App, email string) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("users")
	if err != nil {
		col = core.NewAuthCollection("users")
		if err := app.Save(col); err != nil {
			t.Fatalf("failed to create users collection: %v", err)
		}
	}

	record := core.NewRecord(col)
	record.SetEmail(email)
	record.SetPassword("correct-horse-battery")

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test user: %v", err)
	}

	return record
}

// FixedTime is the clock used by fixtures.
var FixedTime = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

// SampleProject returns project details with a client, so a quote is built.
func SampleProject() services.ProjectDetails {
	return services.ProjectDetails{
		Name:        "Kitchen Rewire",
		Location:    "12 Acacia Avenue, Leeds",
		Description: "Full rewire of kitchen ring and lighting",
		Assessor:    "Sam Patel",
		Contractor:  "Bright Sparks Ltd",
		Supervisor:  "Jo Reid",
		Date:        FixedTime,
		Client: &services.ClientDetails{
			Name:     "Alex Morgan",
			Email:    "alex@example.com",
			Phone:    "07700 900123",
			Address:  "12 Acacia Avenue, Leeds",
			Postcode: "LS1 4AB",
		},
	}
}

// SampleRequest returns an export request carrying every assistant output.
func SampleRequest() services.ExportRequest {
	return services.ExportRequest{
		ConversationID: "conv-001",
		Project:        SampleProject(),
		Outputs: services.AgentOutputs{
			Installer: &services.InstallerOutput{
				Steps: []services.InstallationStep{
					{
						StepNumber:         1,
						Title:              "Isolate supply",
						Description:        "Isolate the consumer unit and prove dead before any work.",
						SafetyRequirements: []string{"Lock off and tag the main switch"},
						ToolsRequired:      []string{"Voltage indicator", "Lock-off kit"},
						EstimatedDuration:  "30 minutes",
					},
					{
						StepNumber:        2,
						Title:             "Install cables",
						Description:       "Drill joists and pull cable through the ceiling void.",
						ToolsRequired:     []string{"SDS drill", "Step ladder"},
						MaterialsNeeded:   []string{"2.5mm T&E cable"},
						EstimatedDuration: "2 hours",
					},
				},
			},
			HealthSafety: &services.HealthSafetyOutput{
				Hazards: []services.HazardInput{
					{
						Hazard:          "Electric shock from live conductors",
						Likelihood:      3,
						Severity:        5,
						ControlMeasures: []string{"Safe isolation procedure", "Use GS38 test leads"},
						LinkedToStep:    1,
					},
				},
				PPE: []services.PPEItem{
					{PPEType: "Safety boots", Mandatory: true},
					{PPEType: "Insulated gloves", Standard: "EN 60903", Mandatory: true},
				},
				EmergencyProcedures: []string{"Call 999 and isolate supply"},
			},
			CostEngineer: &services.CostEngineerOutput{
				Materials: []services.CostEngineerMaterial{
					{Item: "2.5mm T&E cable", Quantity: 50, UnitPrice: 2},
					{Item: "RCBO 32A", Quantity: 4, UnitPrice: 30},
				},
				Labour: &services.LabourSummary{Hours: 8, Rate: 45},
			},
			EICData: &services.EICSchedule{
				InstallationAddress: "12 Acacia Avenue, Leeds",
				DesignerName:        "Sam Patel",
				Circuits: []services.EICCircuit{
					{Number: "1", Description: "Kitchen ring", CableSize: "2.5mm", CPCSize: "1.5mm", ProtectiveDevice: "RCBO B32", RatingAmps: 32, MaxZs: 1.37},
				},
			},
		},
	}
}
