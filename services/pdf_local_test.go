package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMaroto() *MarotoRenderer {
	r := NewMarotoRenderer("")
	r.Now = fixedClock
	return r
}

func TestNewMarotoRenderer_DefaultAttribution(t *testing.T) {
	assert.Equal(t, DefaultAttribution, NewMarotoRenderer("").Attribution)
	assert.Equal(t, "Bright Sparks Ltd", NewMarotoRenderer("Bright Sparks Ltd").Attribution)
}

func TestMarotoRenderer_AllKinds(t *testing.T) {
	a := testAssembler()
	quote := a.AssembleQuote(a.BuildLineItems(sampleMaterials(), &LabourSummary{Hours: 8, Rate: 45}), testSettings())
	quote.Client = *testProject().Client

	rams, err := BuildRAMSFromHazardAssessment(&HealthSafetyOutput{
		Hazards: []HazardInput{
			{Hazard: "Electric shock", Likelihood: 3, Severity: 5, ControlMeasures: []string{"Safe isolation"}},
			{Hazard: "Fall from ladder", Likelihood: 4, Severity: 4, ResidualRisk: 9},
		},
		PPE:                 []PPEItem{{PPEType: "Safety boots"}},
		EmergencyProcedures: []string{"Call 999"},
	}, testProject(), testSteps())
	require.NoError(t, err)

	eic := &EICSchedule{
		InstallationAddress: "12 Acacia Avenue, Leeds",
		DesignerName:        "Sam Patel",
		SupplyType:          "TN-C-S",
		Circuits: []EICCircuit{
			{Number: "1", Description: "Kitchen ring", CableSize: "2.5mm²", RatingAmps: 32, MaxZs: 1.37},
			{Number: "2", Description: "Cooker", CableSize: "6mm", RatingAmps: 40},
		},
	}

	tests := []struct {
		kind   DocumentKind
		source any
	}{
		{KindDesignSpec, eic},
		{KindQuote, &quote},
		{KindRAMS, &rams},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			pdf, err := newTestMaroto().Render(tt.kind, tt.source, testProject())
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")), "output is not a PDF")
		})
	}
}

func TestMarotoRenderer_EmptyDocuments(t *testing.T) {
	quote := testAssembler().AssembleQuote(nil, testSettings())
	rams := BuildRAMSFromInstallationSteps(nil, ProjectDetails{Name: "Empty"})

	_, err := newTestMaroto().Render(KindQuote, &quote, ProjectDetails{})
	assert.NoError(t, err)
	_, err = newTestMaroto().Render(KindRAMS, &rams, ProjectDetails{})
	assert.NoError(t, err)
	_, err = newTestMaroto().Render(KindDesignSpec, &EICSchedule{}, ProjectDetails{})
	assert.NoError(t, err)
}

func TestMarotoRenderer_KindSourceMismatch(t *testing.T) {
	tests := []struct {
		name   string
		kind   DocumentKind
		source any
	}{
		{"rams source as quote", KindQuote, &RAMSDocument{}},
		{"quote source as design spec", KindDesignSpec, &QuoteDocument{}},
		{"schedule as rams", KindRAMS, &EICSchedule{}},
		{"value instead of pointer", KindQuote, QuoteDocument{}},
		{"unknown kind", DocumentKind("invoice"), &QuoteDocument{}},
		{"nil source", KindRAMS, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf, err := newTestMaroto().Render(tt.kind, tt.source, testProject())
			assert.ErrorIs(t, err, ErrUnknownDocumentKind)
			assert.Nil(t, pdf)
		})
	}
}
