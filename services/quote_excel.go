package services

import (
	"bytes"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

const quoteSheet = "Quote"

// GenerateQuoteExcel writes a quote as a single-sheet workbook: header block,
// line items and the totals ladder. Money cells stay numeric.
func GenerateQuoteExcel(q *QuoteDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), quoteSheet); err != nil {
		return nil, eris.Wrap(err, "set sheet name")
	}

	columns := []string{"A", "B", "C", "D", "E", "F", "G"}
	lastCol := columns[len(columns)-1]
	widths := []float64{10, 44, 10, 10, 14, 14, 24}
	for i, c := range columns {
		if err := f.SetColWidth(quoteSheet, c, c, widths[i]); err != nil {
			return nil, eris.Wrapf(err, "set col width %s", c)
		}
	}

	styles, err := newQuoteStyles(f)
	if err != nil {
		return nil, err
	}

	// ── Header block ────────────────────────────────────────────────────

	if err := f.MergeCell(quoteSheet, "A1", lastCol+"1"); err != nil {
		return nil, eris.Wrap(err, "merge title")
	}
	f.SetCellValue(quoteSheet, "A1", "Quotation "+q.QuoteNumber)
	f.SetCellStyle(quoteSheet, "A1", lastCol+"1", styles.title)

	meta := [][2]string{
		{"Client", q.Client.Name},
		{"Address", joinNonEmpty([]string{q.Client.Address, q.Client.Postcode}, ", ")},
		{"Job", q.Job.Title},
		{"Date", FormatDocDate(q.CreatedAt)},
		{"Valid until", FormatDocDate(q.ExpiryDate)},
	}
	row := 2
	for _, kv := range meta {
		if kv[1] == "" {
			continue
		}
		r := fmt.Sprintf("%d", row)
		f.SetCellValue(quoteSheet, "A"+r, kv[0])
		f.SetCellStyle(quoteSheet, "A"+r, "A"+r, styles.label)
		f.SetCellValue(quoteSheet, "B"+r, sanitizeExcelCell(kv[1]))
		row++
	}
	row++

	// ── Line items ──────────────────────────────────────────────────────

	headers := []string{"Code", "Description", "Qty", "Unit", "Unit Price", "Total", "Category"}
	hr := fmt.Sprintf("%d", row)
	for i, h := range headers {
		f.SetCellValue(quoteSheet, columns[i]+hr, h)
	}
	f.SetCellStyle(quoteSheet, "A"+hr, lastCol+hr, styles.header)
	row++

	for _, it := range q.Items {
		r := fmt.Sprintf("%d", row)
		f.SetCellValue(quoteSheet, "A"+r, sanitizeExcelCell(it.Code))
		f.SetCellValue(quoteSheet, "B"+r, sanitizeExcelCell(it.Description))
		f.SetCellValue(quoteSheet, "C"+r, it.Quantity)
		f.SetCellValue(quoteSheet, "D"+r, sanitizeExcelCell(it.Unit))
		f.SetCellValue(quoteSheet, "E"+r, it.UnitPrice)
		f.SetCellValue(quoteSheet, "F"+r, it.TotalPrice)
		f.SetCellValue(quoteSheet, "G"+r, sanitizeExcelCell(it.Category))
		f.SetCellStyle(quoteSheet, "A"+r, "D"+r, styles.item)
		f.SetCellStyle(quoteSheet, "E"+r, "F"+r, styles.money)
		f.SetCellStyle(quoteSheet, "G"+r, "G"+r, styles.item)
		row++
	}
	row++

	// ── Totals ──────────────────────────────────────────────────────────

	totals := []totalLine{
		{"Subtotal", q.Subtotal},
		{fmt.Sprintf("Overhead (%.1f%%)", q.Settings.OverheadPercent), q.Overhead},
		{fmt.Sprintf("Profit (%.1f%%)", q.Settings.ProfitPercent), q.Profit},
	}
	if q.Settings.VATRegistered {
		totals = append(totals, totalLine{fmt.Sprintf("VAT (%.1f%%)", q.Settings.VATRate), q.VATAmount})
	}
	totals = append(totals, totalLine{"Total", q.Total})

	for _, t := range totals {
		r := fmt.Sprintf("%d", row)
		f.SetCellValue(quoteSheet, "E"+r, t.label)
		f.SetCellStyle(quoteSheet, "E"+r, "E"+r, styles.summaryLabel)
		f.SetCellValue(quoteSheet, "F"+r, t.value)
		f.SetCellStyle(quoteSheet, "F"+r, "F"+r, styles.summaryValue)
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "write excel")
	}
	return buf.Bytes(), nil
}

type totalLine struct {
	label string
	value float64
}

type quoteStyles struct {
	title, label, header, item, money, summaryLabel, summaryValue int
}

func newQuoteStyles(f *excelize.File) (quoteStyles, error) {
	gbp := "£#,##0.00"
	defs := []struct {
		name  string
		style *excelize.Style
	}{
		{"title", &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}},
		{"label", &excelize.Style{Font: &excelize.Font{Bold: true, Size: 10, Color: "#555555"}}},
		{"header", &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    thinBorders(),
		}},
		{"item", &excelize.Style{Font: &excelize.Font{Size: 10}, Border: thinBorders()}},
		{"money", &excelize.Style{Font: &excelize.Font{Size: 10}, Border: thinBorders(), CustomNumFmt: &gbp}},
		{"summary label", &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 11},
			Alignment: &excelize.Alignment{Horizontal: "right"},
		}},
		{"summary value", &excelize.Style{Font: &excelize.Font{Bold: true, Size: 11}, CustomNumFmt: &gbp}},
	}

	var s quoteStyles
	targets := []*int{&s.title, &s.label, &s.header, &s.item, &s.money, &s.summaryLabel, &s.summaryValue}
	for i, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, eris.Wrapf(err, "create %s style", d.name)
		}
		*targets[i] = id
	}
	return s, nil
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{Type: side, Color: "#000000", Style: 1}
	}
	return borders
}
