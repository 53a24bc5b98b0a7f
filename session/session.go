// Package session holds the state a report viewer presents: the year
// catalog, the selected year's reports, loading flags and the last error.
//
// A Session is safe for concurrent use. Network calls run outside its lock;
// every report load carries a request token and only the response for the
// newest token is applied.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/robertmeta/report-cli/export"
	"github.com/robertmeta/report-cli/model"
	"github.com/robertmeta/report-cli/view"
)

// ErrSuperseded is returned by ChangeYear when a newer year selection was
// made while the request was in flight. Its response was discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Archive is the subset of the archive client a session needs.
type Archive interface {
	ListYears(ctx context.Context) ([]int, error)
	ListReports(ctx context.Context, year int) ([]model.Report, error)
}

// Downloader exports a report document.
type Downloader interface {
	Download(ctx context.Context, reportID string) (*export.Result, error)
}

// Session is the presentation state of one viewer.
type Session struct {
	archive    Archive
	downloader Downloader
	logger     *slog.Logger

	mu             sync.Mutex
	years          []int
	state          *view.State
	yearsLoading   bool
	reportsLoading bool
	errMsg         string
	token          uint64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a Session. d may be nil when downloads are not offered.
func New(a Archive, d Downloader, opts ...Option) *Session {
	s := &Session{
		archive:    a,
		downloader: d,
		logger:     slog.Default(),
		years:      []int{},
		state:      view.NewState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is a consistent copy of everything a view layer renders.
type Snapshot struct {
	Years          []int           `json:"years"`
	Year           int             `json:"year,omitempty"`
	HasYear        bool            `json:"has_year"`
	Query          string          `json:"query"`
	Page           view.Page       `json:"page"`
	Window         []view.PageItem `json:"window,omitempty"`
	YearsLoading   bool            `json:"years_loading"`
	ReportsLoading bool            `json:"reports_loading"`
	Error          string          `json:"error,omitempty"`
}

// Load fetches the year catalog and selects the most recent year, which in
// turn loads its reports. An empty catalog leaves no year selected.
func (s *Session) Load(ctx context.Context) error {
	return s.LoadYear(ctx, 0)
}

// LoadYear is Load with an explicit starting year. Zero selects the most
// recent year. A year missing from the catalog is still requested.
func (s *Session) LoadYear(ctx context.Context, year int) error {
	s.mu.Lock()
	s.yearsLoading = true
	s.mu.Unlock()

	years, err := s.archive.ListYears(ctx)

	s.mu.Lock()
	s.yearsLoading = false
	if err != nil {
		s.years = []int{}
		s.errMsg = "Failed to load available years"
		s.mu.Unlock()
		return fmt.Errorf("failed to load years: %w", err)
	}
	s.years = slices.Clone(years)
	s.mu.Unlock()

	if year != 0 {
		return s.ChangeYear(ctx, year)
	}
	latest, ok := model.LatestYear(years)
	if !ok {
		s.logger.Info("archive has no report years")
		return nil
	}
	return s.ChangeYear(ctx, latest)
}

// ChangeYear selects year, resets the page and loads that year's reports.
// The query is kept.
func (s *Session) ChangeYear(ctx context.Context, year int) error {
	return s.fetchReports(ctx, year, true)
}

// fetchReports loads year's reports under a fresh request token. With
// selectYear the year is selected and the page reset first; otherwise the
// selection and page are left as they are.
func (s *Session) fetchReports(ctx context.Context, year int, selectYear bool) error {
	s.mu.Lock()
	if selectYear {
		s.state.SelectYear(year)
	}
	s.token++
	token := s.token
	s.reportsLoading = true
	s.errMsg = ""
	s.mu.Unlock()

	reports, err := s.archive.ListReports(ctx, year)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.token {
		s.logger.Debug("discarding stale reports response", "year", year, "token", token, "latest", s.token)
		return ErrSuperseded
	}

	s.reportsLoading = false
	s.state.SetReports(reports)
	if err != nil {
		s.errMsg = fmt.Sprintf("Failed to load reports for %d", year)
		return fmt.Errorf("failed to load reports for %d: %w", year, err)
	}
	return nil
}

// Reload fetches the selected year's reports again.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	year, ok := s.state.Year()
	s.mu.Unlock()

	if !ok {
		return s.Load(ctx)
	}
	// A refresh keeps the reader on their page.
	return s.fetchReports(ctx, year, false)
}

// Search sets the query and returns to page 1.
func (s *Session) Search(query string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetQuery(query)
	return s.snapshotLocked()
}

// GoToPage changes the page only.
func (s *Session) GoToPage(page int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetPage(page)
	return s.snapshotLocked()
}

// ViewReport returns the report with reportID from the loaded collection.
func (s *Session) ViewReport(reportID string) (model.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Find(reportID)
}

// DownloadReport exports the document of reportID. Failures are logged by
// the exporter and returned; the session state is untouched.
func (s *Session) DownloadReport(ctx context.Context, reportID string) (*export.Result, error) {
	if s.downloader == nil {
		return nil, errors.New("downloads are not available")
	}
	return s.downloader.Download(ctx, reportID)
}

// Snapshot returns the current presentation state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	year, ok := s.state.Year()
	page := s.state.View()
	return Snapshot{
		Years:          slices.Clone(s.years),
		Year:           year,
		HasYear:        ok,
		Query:          s.state.Query(),
		Page:           page,
		Window:         view.PageWindow(page.Number, page.TotalPages),
		YearsLoading:   s.yearsLoading,
		ReportsLoading: s.reportsLoading,
		Error:          s.errMsg,
	}
}
