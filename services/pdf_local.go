package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/rotisserie/eris"
)

// DefaultAttribution is printed in every page footer.
const DefaultAttribution = "Generated by ProjectDocs"

var (
	headerBg  = &props.Color{Red: 33, Green: 37, Blue: 41}
	stripeBg  = &props.Color{Red: 245, Green: 245, Blue: 245}
	summaryBg = &props.Color{Red: 240, Green: 240, Blue: 240}
	mutedText = &props.Color{Red: 100, Green: 100, Blue: 100}
	white     = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// MarotoRenderer is the offline fallback renderer. Output layout is fixed
// per kind: title header, typed body table and a paged footer.
type MarotoRenderer struct {
	Attribution string
	Now         func() time.Time
}

// NewMarotoRenderer returns a renderer stamping attribution in the footer.
func NewMarotoRenderer(attribution string) *MarotoRenderer {
	if attribution == "" {
		attribution = DefaultAttribution
	}
	return &MarotoRenderer{Attribution: attribution, Now: time.Now}
}

// Render implements LocalRenderer.
func (r *MarotoRenderer) Render(kind DocumentKind, source any, project ProjectDetails) ([]byte, error) {
	var body func(core.Maroto)
	orient := orientation.Vertical

	switch src := source.(type) {
	case *EICSchedule:
		if kind != KindDesignSpec {
			break
		}
		body = func(m core.Maroto) { addDesignSpecBody(m, src) }
		orient = orientation.Horizontal
	case *QuoteDocument:
		if kind != KindQuote {
			break
		}
		body = func(m core.Maroto) { addQuoteBody(m, src) }
	case *RAMSDocument:
		if kind != KindRAMS {
			break
		}
		body = func(m core.Maroto) { addRAMSBody(m, src) }
		orient = orientation.Horizontal
	}
	if body == nil {
		return nil, eris.Wrapf(ErrUnknownDocumentKind, "local render %q from %T", kind, source)
	}

	cfg := config.NewBuilder().
		WithOrientation(orient).
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).
		WithTopMargin(10).
		WithRightMargin(10).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		}).
		Build()

	m := maroto.New(cfg)
	if err := m.RegisterFooter(r.footer()); err != nil {
		return nil, eris.Wrap(err, "register footer")
	}

	r.addHeader(m, kind, project)
	body(m)

	doc, err := m.Generate()
	if err != nil {
		return nil, eris.Wrapf(err, "generate %s pdf", kind)
	}
	return doc.GetBytes(), nil
}

// addHeader adds the document title and the generated/date/project line.
func (r *MarotoRenderer) addHeader(m core.Maroto, kind DocumentKind, project ProjectDetails) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	m.AddRows(
		row.New(12).Add(
			col.New(12).Add(
				text.New(strings.ToUpper(kind.DisplayName()), props.Text{
					Size:  16,
					Style: fontstyle.Bold,
					Align: align.Center,
				}),
			),
		),
	)

	meta := props.Text{Size: 9, Align: align.Left, Color: mutedText}
	metaRight := meta
	metaRight.Align = align.Right
	m.AddRows(
		row.New(8).Add(
			col.New(6).Add(text.New("Project: "+project.Name, meta)),
			col.New(6).Add(text.New("Generated: "+FormatDocDate(now()), metaRight)),
		),
	)
	if loc := joinNonEmpty([]string{project.Location, FormatDocDate(project.Date)}, " | "); project.Location != "" {
		m.AddRows(row.New(6).Add(col.New(12).Add(text.New(loc, meta))))
	}

	m.AddRows(row.New(4))
}

func (r *MarotoRenderer) footer() core.Row {
	return row.New(6).Add(
		col.New(12).Add(
			text.New(r.Attribution, props.Text{
				Size:  7,
				Align: align.Left,
				Color: &props.Color{Red: 140, Green: 140, Blue: 140},
			}),
		),
	)
}

// ── Table helpers ───────────────────────────────────────────────────

// tableColumn is one column of a body table: grid width, header and
// alignment.
type tableColumn struct {
	Size   int
	Header string
	Align  align.Type
}

func addTableHeader(m core.Maroto, cols []tableColumn) {
	cell := &props.Cell{BackgroundColor: headerBg}
	r := row.New(8)
	for _, c := range cols {
		r.Add(col.New(c.Size).Add(text.New(c.Header, props.Text{
			Size:  8,
			Style: fontstyle.Bold,
			Align: c.Align,
			Color: white,
			Top:   1.5,
			Left:  1,
		})).WithStyle(cell))
	}
	m.AddRows(r)
}

func addTableRow(m core.Maroto, cols []tableColumn, values []string, striped bool) {
	r := row.New()
	for i, c := range cols {
		cc := col.New(c.Size).Add(text.New(values[i], props.Text{
			Size:  7,
			Align: c.Align,
			Top:   1,
			Left:  1,
			Right: 1,
		}))
		if striped {
			cc = cc.WithStyle(&props.Cell{BackgroundColor: stripeBg})
		}
		r.Add(cc)
	}
	m.AddRows(r)
}

func addSectionTitle(m core.Maroto, title string) {
	m.AddRows(row.New(4))
	m.AddRows(row.New(8).Add(col.New(12).Add(text.New(title, props.Text{
		Size:  10,
		Style: fontstyle.Bold,
		Align: align.Left,
	}))))
}

func addKeyValueRows(m core.Maroto, pairs [][2]string) {
	label := props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Left, Color: mutedText}
	value := props.Text{Size: 8, Align: align.Left}
	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}
		m.AddRows(row.New(6).Add(
			col.New(3).Add(text.New(kv[0], label)),
			col.New(9).Add(text.New(kv[1], value)),
		))
	}
}

func addBulletList(m core.Maroto, items []string) {
	for _, it := range items {
		m.AddRows(row.New().Add(col.New(12).Add(text.New("• "+it, props.Text{Size: 8, Align: align.Left, Left: 2}))))
	}
}

// ── Design spec ─────────────────────────────────────────────────────

var designSpecColumns = []tableColumn{
	{1, "Circuit", align.Center},
	{3, "Description", align.Left},
	{1, "Cable", align.Center},
	{1, "CPC", align.Center},
	{2, "Protective Device", align.Left},
	{1, "Rating (A)", align.Right},
	{1, "Ib (A)", align.Right},
	{2, "Max Zs (ohm)", align.Right},
}

func addDesignSpecBody(m core.Maroto, s *EICSchedule) {
	addSectionTitle(m, "Installation Parameters")
	addKeyValueRows(m, [][2]string{
		{"Installation address", s.InstallationAddress},
		{"Designer", s.DesignerName},
		{"Design date", s.DesignDate},
		{"Supply type", s.SupplyType},
		{"Earthing arrangement", s.EarthingArrangement},
		{"Circuits", fmt.Sprintf("%d", len(s.Circuits))},
	})

	addSectionTitle(m, "Circuit Schedule")
	addTableHeader(m, designSpecColumns)
	for i, c := range s.Circuits {
		addTableRow(m, designSpecColumns, []string{
			c.Number,
			c.Description,
			c.CableSize,
			c.CPCSize,
			c.ProtectiveDevice,
			formatOptional(c.RatingAmps),
			formatOptional(c.DesignCurrent),
			formatOptional(c.MaxZs),
		}, i%2 == 1)
	}
}

func formatOptional(v float64) string {
	if v == 0 {
		return "—"
	}
	return formatQty(v)
}

// ── Quote ───────────────────────────────────────────────────────────

var quoteColumns = []tableColumn{
	{1, "#", align.Center},
	{5, "Description", align.Left},
	{1, "Qty", align.Right},
	{1, "Unit", align.Center},
	{2, "Unit Price", align.Right},
	{2, "Total", align.Right},
}

func addQuoteBody(m core.Maroto, q *QuoteDocument) {
	addKeyValueRows(m, [][2]string{
		{"Quote number", q.QuoteNumber},
		{"Valid until", FormatDocDate(q.ExpiryDate)},
		{"Client", q.Client.Name},
		{"Address", joinNonEmpty([]string{q.Client.Address, q.Client.Postcode}, ", ")},
		{"Contact", joinNonEmpty([]string{q.Client.Email, q.Client.Phone}, " | ")},
		{"Job", q.Job.Title},
	})

	addSectionTitle(m, "Itemised Costs")
	addTableHeader(m, quoteColumns)
	for i, it := range q.Items {
		addTableRow(m, quoteColumns, []string{
			fmt.Sprintf("%d", i+1),
			it.Description,
			formatQty(it.Quantity),
			it.Unit,
			FormatGBP(it.UnitPrice),
			FormatGBP(it.TotalPrice),
		}, i%2 == 1)
	}

	m.AddRows(row.New(4))
	lines := [][2]string{
		{"Subtotal", FormatGBP(q.Subtotal)},
		{fmt.Sprintf("Overhead (%.1f%%)", q.Settings.OverheadPercent), FormatGBP(q.Overhead)},
		{fmt.Sprintf("Profit (%.1f%%)", q.Settings.ProfitPercent), FormatGBP(q.Profit)},
	}
	if q.Settings.VATRegistered {
		lines = append(lines, [2]string{fmt.Sprintf("VAT (%.1f%%)", q.Settings.VATRate), FormatGBP(q.VATAmount)})
	}
	lines = append(lines, [2]string{"Total", FormatGBP(q.Total)})

	cell := &props.Cell{BackgroundColor: summaryBg}
	style := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right, Top: 1.5, Right: 1}
	for _, l := range lines {
		m.AddRows(row.New(8).Add(
			col.New(8).Add(text.New(l[0], style)).WithStyle(cell),
			col.New(4).Add(text.New(l[1], style)).WithStyle(cell),
		))
	}
}

// ── RAMS ────────────────────────────────────────────────────────────

var ramsColumns = []tableColumn{
	{2, "Hazard", align.Left},
	{3, "Risk", align.Left},
	{1, "L", align.Center},
	{1, "S", align.Center},
	{1, "Rating", align.Center},
	{3, "Controls", align.Left},
	{1, "Residual", align.Center},
}

func addRAMSBody(m core.Maroto, d *RAMSDocument) {
	addKeyValueRows(m, [][2]string{
		{"Assessor", d.Assessor},
		{"Contractor", d.Contractor},
		{"Supervisor", d.Supervisor},
		{"Assessment date", d.Date},
	})

	if len(d.Activities) > 0 {
		addSectionTitle(m, "Work Activities")
		addBulletList(m, d.Activities)
	}

	addSectionTitle(m, "Risk Assessment")
	addTableHeader(m, ramsColumns)
	for i, rk := range d.Risks {
		residual := fmt.Sprintf("%d", rk.ResidualRisk)
		if rk.FurtherAction {
			residual += " *"
		}
		addTableRow(m, ramsColumns, []string{
			rk.Hazard,
			rk.Risk,
			fmt.Sprintf("%d", rk.Likelihood),
			fmt.Sprintf("%d", rk.Severity),
			fmt.Sprintf("%d (%s)", rk.RiskRating, ClassifyRiskLevel(rk.RiskRating)),
			rk.Controls,
			residual,
		}, i%2 == 1)
	}
	m.AddRows(row.New(6).Add(col.New(12).Add(text.New(
		fmt.Sprintf("* Residual risk above %d: further action required before work starts.", FurtherActionThreshold),
		props.Text{Size: 7, Align: align.Left, Color: mutedText, Top: 1},
	))))

	if len(d.RequiredPPE) > 0 {
		addSectionTitle(m, "Required PPE")
		addBulletList(m, d.RequiredPPE)
	}
	if len(d.EmergencyProcedures) > 0 {
		addSectionTitle(m, "Emergency Procedures")
		addBulletList(m, d.EmergencyProcedures)
	}
}
