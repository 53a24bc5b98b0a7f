package model

import (
	"time"
)

// Report formats with a dedicated badge.
const (
	FormatSNOWTAM = "SNOWTAM"
	FormatRCR     = "RCR"
	FormatATIS    = "ATIS"
)

// Badge variants used when rendering a report format.
const (
	VariantSecondary   = "secondary"
	VariantDefault     = "default"
	VariantDestructive = "destructive"
	VariantOutline     = "outline"
)

// DisplayDateLayout is the 24-hour layout used for every displayed timestamp.
const DisplayDateLayout = "Jan 2, 2006, 15:04:05"

// FormatVariant maps a report format to its badge variant.
// Unknown formats are free-form and get the outline badge.
func FormatVariant(format string) string {
	switch format {
	case FormatSNOWTAM:
		return VariantSecondary
	case FormatRCR:
		return VariantDefault
	case FormatATIS:
		return VariantDestructive
	default:
		return VariantOutline
	}
}

// ParseTimestamp parses an ISO 8601 timestamp as sent by the archive API.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	// Some records omit the zone designator.
	return time.Parse("2006-01-02T15:04:05.999999999", s)
}

// FormatDate renders an ISO 8601 timestamp for display.
// Unparseable input is returned unchanged.
func FormatDate(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format(DisplayDateLayout)
}
