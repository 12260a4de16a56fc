package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// bytesReader wraps a byte slice in a bytes.Reader for use with excelize.OpenReader.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// seqIDs is a deterministic IDGenerator. The nth suffix is suffixes[n-1],
// or S00n once the list runs out; IDs are id-1, id-2 and so on.
type seqIDs struct {
	suffixes []string
	nSuffix  int
	nID      int
}

func (g *seqIDs) Suffix() string {
	g.nSuffix++
	if g.nSuffix <= len(g.suffixes) {
		return g.suffixes[g.nSuffix-1]
	}
	return fmt.Sprintf("S%03d", g.nSuffix)
}

func (g *seqIDs) NewID() string {
	g.nID++
	return fmt.Sprintf("id-%d", g.nID)
}

var testNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testAssembler(suffixes ...string) *QuoteAssembler {
	return &QuoteAssembler{IDs: &seqIDs{suffixes: suffixes}, Now: fixedClock}
}

func testSettings() QuoteSettings {
	return QuoteSettings{
		LabourRate:      45,
		OverheadPercent: 15,
		ProfitPercent:   20,
		VATRate:         20,
		VATRegistered:   true,
	}
}

func testProject() ProjectDetails {
	return ProjectDetails{
		Name:       "Kitchen Rewire",
		Location:   "12 Acacia Avenue, Leeds",
		Assessor:   "Sam Patel",
		Contractor: "Bright Sparks Ltd",
		Supervisor: "Jo Reid",
		Date:       testNow,
		Client:     &ClientDetails{Name: "Alex Morgan", Email: "alex@example.com"},
	}
}

func testSteps() []InstallationStep {
	return []InstallationStep{
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
			Description:       "Drill joists and pull cable through the ceiling void.",
			ToolsRequired:     []string{"SDS drill", "Voltage indicator"},
			MaterialsNeeded:   []string{"2.5mm T&E cable"},
			EstimatedDuration: "2 hours",
		},
	}
}

func testRequest() ExportRequest {
	return ExportRequest{
		ConversationID: "conv-001",
		Project:        testProject(),
		Outputs: AgentOutputs{
			Installer: &InstallerOutput{Steps: testSteps()},
			HealthSafety: &HealthSafetyOutput{
				Hazards: []HazardInput{{
					Hazard:          "Electric shock from live conductors",
					Likelihood:      3,
					Severity:        5,
					ControlMeasures: []string{"Safe isolation procedure"},
				}},
			},
			CostEngineer: &CostEngineerOutput{
				Materials: []CostEngineerMaterial{
					{Item: "2.5mm T&E cable", Quantity: 50, UnitPrice: 2},
					{Item: "RCBO 32A", Quantity: 4, UnitPrice: 30},
				},
			},
			EICData: &EICSchedule{
				InstallationAddress: "12 Acacia Avenue, Leeds",
				DesignerName:        "Sam Patel",
				Circuits:            []EICCircuit{{Number: "1", Description: "Kitchen ring", RatingAmps: 32}},
			},
		},
	}
}

// fakeStore is an in-memory ExportStore and ArtifactStore. A failing stage
// makes the matching insert return errStoreDown; a failed transaction rolls
// back every map.
type fakeStore struct {
	mu sync.Mutex

	failStage   string
	saveErr     error
	takeAll     bool
	takenQuotes map[string]bool

	eics      map[string]*EICSchedule
	quotes    map[string]*QuoteDocument
	exports   map[string]*ProjectExport
	savedPDFs map[string][]GeneratedPDF
	artifacts map[string][]byte
	nextID    int
}

var errStoreDown = errors.New("store unavailable")

func newFakeStore() *fakeStore {
	return &fakeStore{
		takenQuotes: map[string]bool{},
		eics:        map[string]*EICSchedule{},
		quotes:      map[string]*QuoteDocument{},
		exports:     map[string]*ProjectExport{},
		savedPDFs:   map[string][]GeneratedPDF{},
		artifacts:   map[string][]byte{},
	}
}

func (s *fakeStore) RunInTransaction(fn func(tx ExportStore) error) error {
	eics, quotes, exports := maps.Clone(s.eics), maps.Clone(s.quotes), maps.Clone(s.exports)
	if err := fn(s); err != nil {
		s.eics, s.quotes, s.exports = eics, quotes, exports
		return err
	}
	return nil
}

func (s *fakeStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *fakeStore) InsertEICSchedule(userID string, schedule *EICSchedule) (string, error) {
	if s.failStage == StageEICSchedule {
		return "", errStoreDown
	}
	id := s.id("eic")
	s.eics[id] = schedule
	return id, nil
}

func (s *fakeStore) QuoteNumberExists(quoteNumber string) (bool, error) {
	return s.takeAll || s.takenQuotes[quoteNumber], nil
}

func (s *fakeStore) InsertQuote(userID string, quote *QuoteDocument) (string, error) {
	if s.failStage == StageQuote {
		return "", errStoreDown
	}
	id := s.id("quote")
	s.quotes[id] = quote
	return id, nil
}

func (s *fakeStore) InsertProjectExport(export *ProjectExport) (string, error) {
	if s.failStage == StageProjectExport {
		return "", errStoreDown
	}
	id := s.id("export")
	s.exports[id] = export
	return id, nil
}

func (s *fakeStore) SaveGeneratedPDFs(exportID string, pdfs []GeneratedPDF) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedPDFs[exportID] = slices.Clone(pdfs)
	return nil
}

func (s *fakeStore) FindProjectExport(id string) (*ProjectExport, error) {
	if e, ok := s.exports[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) FindQuote(id string) (*QuoteDocument, error) {
	if q, ok := s.quotes[id]; ok {
		return q, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) FindEICSchedule(id string) (*EICSchedule, error) {
	if e, ok := s.eics[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) SavePDF(exportID string, kind DocumentKind, filename string, pdf []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[filename] = pdf
	return "/files/" + exportID + "/" + filename, nil
}

// stubRemote returns a fixed URL per kind, or err for every kind.
type stubRemote struct {
	mu    sync.Mutex
	urls  map[DocumentKind]string
	err   error
	calls []DocumentKind
}

func (r *stubRemote) Render(_ context.Context, kind DocumentKind, _ any, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind)
	if r.err != nil {
		return "", r.err
	}
	return r.urls[kind], nil
}

// stubLocal renders a tiny placeholder PDF, failing for the listed kinds.
type stubLocal struct {
	mu    sync.Mutex
	fail  map[DocumentKind]bool
	calls int
}

func (l *stubLocal) Render(kind DocumentKind, _ any, _ ProjectDetails) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.fail[kind] {
		return nil, errors.New("render " + string(kind) + " failed")
	}
	return []byte("%PDF-1.4 " + string(kind)), nil
}
