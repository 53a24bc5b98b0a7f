// Package view derives the filtered, paginated subset of a year's reports
// that is shown to the user.
package view

import (
	"strings"

	"github.com/robertmeta/report-cli/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PageSize is the fixed number of reports per page.
const PageSize = 15

// Filter returns the reports whose ID, format or publisher display name
// contains query, ignoring case. A blank query returns reports unchanged.
// The result preserves the input order.
func Filter(reports []model.Report, query string) []model.Report {
	if strings.TrimSpace(query) == "" {
		return reports
	}

	// Casers keep state between calls, so each Filter gets its own.
	lower := cases.Lower(language.Und)
	q := lower.String(strings.TrimSpace(query))

	filtered := make([]model.Report, 0, len(reports))
	for _, r := range reports {
		if matches(r, q, lower) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// matches reports whether r matches the already lower-cased query q.
func matches(r model.Report, q string, lower cases.Caser) bool {
	return strings.Contains(lower.String(r.ReportID), q) ||
		strings.Contains(lower.String(r.Format), q) ||
		strings.Contains(lower.String(r.Publisher.DisplayName), q)
}

// TotalPages returns the number of pages needed for n reports.
// Zero reports means zero pages.
func TotalPages(n int) int {
	return (n + PageSize - 1) / PageSize
}

// Paginate returns the reports on the 1-based page. Pages past the end, and
// pages below 1, are empty.
func Paginate(reports []model.Report, page int) []model.Report {
	if page < 1 {
		return []model.Report{}
	}
	start := (page - 1) * PageSize
	if start >= len(reports) {
		return []model.Report{}
	}
	end := min(start+PageSize, len(reports))
	return reports[start:end]
}

// Page is the derived view for one page of filtered reports.
type Page struct {
	Items        []model.Report `json:"items"`
	Number       int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalReports int            `json:"total_reports"`
	// First and Last are the 1-based positions of the shown items within the
	// filtered reports, or zero when nothing is shown.
	First int `json:"first"`
	Last  int `json:"last"`
}

// Empty reports whether the page shows no reports.
func (p Page) Empty() bool {
	return len(p.Items) == 0
}

// NoResults reports whether the filter matched nothing at all.
func (p Page) NoResults() bool {
	return p.TotalReports == 0
}

// NewPage derives page number of filtered.
func NewPage(filtered []model.Report, number int) Page {
	items := Paginate(filtered, number)
	p := Page{
		Items:        items,
		Number:       number,
		TotalPages:   TotalPages(len(filtered)),
		TotalReports: len(filtered),
	}
	if len(items) > 0 {
		p.First = (number-1)*PageSize + 1
		p.Last = p.First + len(items) - 1
	}
	return p
}
