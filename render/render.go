// Package render writes report listings, report details and download
// history as JSON, aligned text, markdown, CSV or HTML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/robertmeta/report-cli/model"
	"github.com/robertmeta/report-cli/session"
	"github.com/robertmeta/report-cli/view"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Messages shown in place of empty content.
const (
	NoReportsMessage   = "No reports found for the selected year."
	EmptyStatusMessage = "No additional details available for this report. Download the PDF to view the full content."
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatMarkdown, FormatCSV:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected json, table, markdown or csv)", s)
	}
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Listing is one page of a year's reports as presented to the user.
type Listing struct {
	Aerodrome string          `json:"aerodrome"`
	Years     []int           `json:"years"`
	Year      int             `json:"year,omitempty"`
	Query     string          `json:"query,omitempty"`
	Page      view.Page       `json:"page"`
	Window    []view.PageItem `json:"window,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewListing builds a Listing from a session snapshot.
func NewListing(aerodrome string, snap session.Snapshot) Listing {
	return Listing{
		Aerodrome: aerodrome,
		Years:     snap.Years,
		Year:      snap.Year,
		Query:     snap.Query,
		Page:      snap.Page,
		Window:    snap.Window,
		Error:     snap.Error,
	}
}

// Detail is a single report with its local download count.
type Detail struct {
	Report    model.Report `json:"report"`
	Variant   string       `json:"variant"`
	Downloads int          `json:"downloads"`
}

// NewDetail builds a Detail for r.
func NewDetail(r model.Report, downloads int) Detail {
	return Detail{Report: r, Variant: model.FormatVariant(r.Format), Downloads: downloads}
}

// WriteListing writes l in format f.
func WriteListing(w io.Writer, f Format, l Listing) error {
	switch f {
	case FormatTable:
		return listingTable(w, l)
	case FormatMarkdown:
		return listingMarkdown(w, l)
	case FormatCSV:
		return reportsCSV(w, l.Page.Items)
	default:
		return JSON(w, l)
	}
}

// WriteDetail writes d in format f. CSV writes a single row.
func WriteDetail(w io.Writer, f Format, d Detail) error {
	switch f {
	case FormatTable:
		return detailTable(w, d)
	case FormatMarkdown:
		return detailMarkdown(w, d)
	case FormatCSV:
		return reportsCSV(w, []model.Report{d.Report})
	default:
		return JSON(w, d)
	}
}

// WriteDownloads writes download history entries in format f.
func WriteDownloads(w io.Writer, f Format, downloads []*model.Download) error {
	switch f {
	case FormatTable:
		return downloadsTable(w, downloads)
	case FormatMarkdown:
		return downloadsMarkdown(w, downloads)
	case FormatCSV:
		return downloadsCSV(w, downloads)
	default:
		return JSON(w, map[string]any{
			"count":     len(downloads),
			"downloads": downloads,
		})
	}
}

// Showing describes which slice of the filtered reports a page holds.
func Showing(p view.Page) string {
	switch {
	case p.NoResults():
		return NoReportsMessage
	case p.Empty():
		return fmt.Sprintf("No reports on page %d of %d", p.Number, p.TotalPages)
	default:
		return fmt.Sprintf("Showing %d to %d of %d reports", p.First, p.Last, p.TotalReports)
	}
}

// Pager renders a page window as e.g. "[1] 2 3 … 20".
func Pager(items []view.PageItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		switch {
		case it.Ellipsis:
			parts[i] = "…"
		case it.Active:
			parts[i] = fmt.Sprintf("[%d]", it.Number)
		default:
			parts[i] = fmt.Sprint(it.Number)
		}
	}
	return strings.Join(parts, " ")
}

// Title heads a listing, e.g. "DEMO reports for 2024".
func (l Listing) Title() string {
	if l.Year == 0 {
		return l.Aerodrome + " reports"
	}
	return fmt.Sprintf("%s reports for %d", l.Aerodrome, l.Year)
}

// StatusLines returns the per-delivery summaries of r, or the placeholder
// message when it has none.
func StatusLines(r model.Report) []string {
	if !r.HasStatus() {
		return []string{EmptyStatusMessage}
	}
	lines := make([]string, len(r.Status))
	for i, s := range r.Status {
		lines[i] = s.Summary()
	}
	return lines
}
