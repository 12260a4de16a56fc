package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDGenerator supplies the random parts of material codes, quote numbers
// and line item IDs.
type IDGenerator interface {
	// Suffix returns a short upper-case token, e.g. "7F3A".
	Suffix() string
	// NewID returns an opaque unique identifier.
	NewID() string
}

// UUIDGenerator is the production IDGenerator.
type UUIDGenerator struct{}

// Suffix returns the first four hex digits of a random UUID.
func (UUIDGenerator) Suffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
}

// NewID returns a random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// FormatQuoteNumber builds "Q-{yyyy}{mm}-{suffix}".
// The suffix is random, so two quotes in the same month can collide; the
// exporter checks the store before using a number.
func FormatQuoteNumber(now time.Time, suffix string) string {
	return fmt.Sprintf("Q-%04d%02d-%s", now.Year(), int(now.Month()), suffix)
}

// MaterialCode builds "{category initials}-{suffix}", e.g. "CC-7F3A" for
// Cables & Conductors.
func MaterialCode(category, suffix string) string {
	var initials strings.Builder
	for _, w := range strings.Fields(category) {
		r := w[0]
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			initials.WriteByte(r)
		}
	}
	return strings.ToUpper(initials.String()) + "-" + suffix
}
