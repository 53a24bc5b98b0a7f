package view

import "github.com/robertmeta/report-cli/model"

// State is the user-controlled view state plus the reports of the selected
// year. Every mutation is synchronous; View recomputes from scratch.
//
// State is not safe for concurrent use.
type State struct {
	year     int
	hasYear  bool
	query    string
	page     int
	reports  []model.Report
	filtered []model.Report
}

// NewState returns a State with no year selected on page 1.
func NewState() *State {
	return &State{page: 1, reports: []model.Report{}, filtered: []model.Report{}}
}

// Year returns the selected year, if any.
func (s *State) Year() (int, bool) {
	return s.year, s.hasYear
}

// Query returns the current search text as typed.
func (s *State) Query() string {
	return s.query
}

// Page returns the current 1-based page number.
func (s *State) Page() int {
	return s.page
}

// Reports returns the full collection for the selected year.
func (s *State) Reports() []model.Report {
	return s.reports
}

// SelectYear changes the selected year and goes back to page 1.
// The query is kept.
func (s *State) SelectYear(year int) {
	s.year = year
	s.hasYear = true
	s.page = 1
}

// SetQuery changes the search text and goes back to page 1.
func (s *State) SetQuery(query string) {
	s.query = query
	s.page = 1
	s.filtered = Filter(s.reports, s.query)
}

// SetPage changes only the page. It does not clamp to the page count, so a
// page past the end derives an empty view; values below 1 become 1.
func (s *State) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.page = page
}

// SetReports replaces the collection wholesale.
func (s *State) SetReports(reports []model.Report) {
	if reports == nil {
		reports = []model.Report{}
	}
	s.reports = reports
	s.filtered = Filter(s.reports, s.query)
}

// Filtered returns the reports matching the current query.
func (s *State) Filtered() []model.Report {
	return s.filtered
}

// View derives the visible page.
func (s *State) View() Page {
	return NewPage(s.filtered, s.page)
}

// Find returns the report with reportID from the full collection.
func (s *State) Find(reportID string) (model.Report, bool) {
	for _, r := range s.reports {
		if r.ReportID == reportID {
			return r, true
		}
	}
	return model.Report{}, false
}
