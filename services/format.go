package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatGBP formats an amount as pounds sterling with thousands separators
// and exactly two decimal places (e.g. £1,234.50).
func FormatGBP(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	result := "£" + humanize.FormatFloat("#,###.##", roundMoney(amount))
	if negative {
		result = "-" + result
	}
	return result
}

// FormatDocDate renders a date the way every document header shows it.
func FormatDocDate(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("02 Jan 2006")
}

// formatQty returns whole numbers without decimals and fractional values
// with two.
func formatQty(qty float64) string {
	if qty == math.Trunc(qty) {
		return fmt.Sprintf("%.0f", qty)
	}
	return fmt.Sprintf("%.2f", qty)
}

// joinNonEmpty joins the non-blank parts with sep.
func joinNonEmpty(parts []string, sep string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
