package services

import (
	"fmt"
	"math"
	"time"
)

// QuoteValidity is how long an assembled quote stays open.
const QuoteValidity = 30 * 24 * time.Hour

// Material categories, in rule order.
const (
	MaterialCables         = "Cables & Conductors"
	MaterialProtection     = "Protection Devices"
	MaterialDistribution   = "Distribution Equipment"
	MaterialAccessories    = "Accessories"
	MaterialCableMgmt      = "Cable Management"
	MaterialFixings        = "Fixings & Supports"
	MaterialGeneral        = "General Materials"
	LabourCategory         = "Labour"
	UnitMetres             = "metres"
	UnitUnits              = "units"
	UnitHours              = "hours"
	defaultLabourLineTitle = "Installation labour"
)

var materialCategoryRules = []keywordRule[string]{
	{MaterialCables, []string{"cable", "t&e", "twin and earth", "swa", "flex", "conductor", "wire"}},
	{MaterialProtection, []string{"mcb", "rcbo", "rcd", "fuse", "breaker", "spd", "surge"}},
	{MaterialDistribution, []string{"consumer unit", "distribution board", "isolator", "switchgear", "enclosure", "busbar"}},
	{MaterialAccessories, []string{"socket", "switch", "outlet", "spur", "downlight", "light", "lamp", "faceplate", "back box"}},
	{MaterialCableMgmt, []string{"conduit", "trunking", "tray", "basket", "grommet"}},
	{MaterialFixings, []string{"clip", "screw", "fixing", "bracket", "anchor", "plug", "saddle", "tie"}},
}

var metreUnitRules = []keywordRule[string]{
	{UnitMetres, []string{"cable", "t&e", "twin and earth", "swa", "flex", "conduit", "trunking", "wire"}},
}

// CategorizeMaterial files a material description under the first matching
// category.
func CategorizeMaterial(description string) string {
	return firstMatch(materialCategoryRules, description, MaterialGeneral)
}

// InferUnit returns metres for run-length materials and units otherwise.
func InferUnit(description string) string {
	return firstMatch(metreUnitRules, description, UnitUnits)
}

// QuoteAssembler prices cost engineer output into quotes.
type QuoteAssembler struct {
	IDs IDGenerator
	Now func() time.Time
}

// NewQuoteAssembler returns an assembler using UUID suffixes and wall time.
func NewQuoteAssembler() *QuoteAssembler {
	return &QuoteAssembler{IDs: UUIDGenerator{}, Now: time.Now}
}

// BuildLineItems turns materials and labour into quote lines. Labour adds
// exactly one line when it has hours.
func (a *QuoteAssembler) BuildLineItems(materials []CostEngineerMaterial, labour *LabourSummary) []CostLineItem {
	items := make([]CostLineItem, 0, len(materials)+1)

	for _, m := range materials {
		qty := float64(m.Quantity)
		unitPrice := float64(m.UnitPrice)
		if unitPrice == 0 && qty > 0 && m.Total > 0 {
			unitPrice = float64(m.Total) / qty
		}

		unit := m.Unit
		if unit == "" {
			unit = InferUnit(m.Item)
		}
		category := CategorizeMaterial(m.Item)

		item := CostLineItem{
			ID:          a.IDs.NewID(),
			Code:        MaterialCode(category, a.IDs.Suffix()),
			Description: m.Item,
			Quantity:    qty,
			Unit:        unit,
			UnitPrice:   unitPrice,
			TotalPrice:  roundMoney(qty * unitPrice),
			Category:    category,
		}
		if m.Supplier != "" {
			item.Notes = "Supplier: " + m.Supplier
		}
		items = append(items, item)
	}

	if labour != nil && labour.Hours > 0 {
		desc := labour.Description
		if desc == "" {
			desc = defaultLabourLineTitle
		}
		hours := float64(labour.Hours)
		rate := float64(labour.Rate)
		items = append(items, CostLineItem{
			ID:          a.IDs.NewID(),
			Description: desc,
			Quantity:    hours,
			Unit:        UnitHours,
			UnitPrice:   rate,
			TotalPrice:  roundMoney(hours * rate),
			Category:    LabourCategory,
			Notes:       fmt.Sprintf("%s hours @ %s/hr", formatQty(hours), FormatGBP(rate)),
		})
	}

	return items
}

// QuoteTotals holds the money columns of a quote.
type QuoteTotals struct {
	Subtotal  float64
	Overhead  float64
	Profit    float64
	VATAmount float64
	Total     float64
}

// CalcQuoteTotals prices line items. Overhead and profit are both taken on
// the subtotal; VAT applies to subtotal+overhead+profit only when the
// business is VAT registered.
func CalcQuoteTotals(items []CostLineItem, settings QuoteSettings) QuoteTotals {
	var t QuoteTotals
	for _, it := range items {
		t.Subtotal += it.TotalPrice
	}
	t.Subtotal = roundMoney(t.Subtotal)
	t.Overhead = roundMoney(t.Subtotal * settings.OverheadPercent / 100)
	t.Profit = roundMoney(t.Subtotal * settings.ProfitPercent / 100)
	if settings.VATRegistered {
		t.VATAmount = roundMoney((t.Subtotal + t.Overhead + t.Profit) * settings.VATRate / 100)
	}
	t.Total = roundMoney(t.Subtotal + t.Overhead + t.Profit + t.VATAmount)
	return t
}

// AssembleQuote builds a draft quote valid for QuoteValidity. An empty item
// list gives a zero-total draft. The quote number is not guaranteed unique.
func (a *QuoteAssembler) AssembleQuote(items []CostLineItem, settings QuoteSettings) QuoteDocument {
	now := a.Now()
	totals := CalcQuoteTotals(items, settings)
	if items == nil {
		items = []CostLineItem{}
	}
	return QuoteDocument{
		SchemaVersion: SchemaVersion,
		QuoteNumber:   FormatQuoteNumber(now, a.IDs.Suffix()),
		Items:         items,
		Settings:      settings,
		Subtotal:      totals.Subtotal,
		Overhead:      totals.Overhead,
		Profit:        totals.Profit,
		VATAmount:     totals.VATAmount,
		Total:         totals.Total,
		Status:        QuoteStatusDraft,
		CreatedAt:     now,
		ExpiryDate:    now.Add(QuoteValidity),
	}
}

// roundMoney rounds to the nearest penny.
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
