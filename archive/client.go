// Package archive provides the HTTP client for the report archive API.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/robertmeta/report-cli/model"
	"github.com/robertmeta/report-cli/routes"
)

// DefaultRequestTimeout bounds a single archive request.
const DefaultRequestTimeout = time.Minute

// Client performs the archive API calls for one aerodrome.
//
// Every call is a single GET with no retries or caching. On failure the
// client logs the error and returns an empty result together with the error,
// so callers that only look at the data see "nothing found".
type Client struct {
	routes     routes.Routes
	httpClient *http.Client
	logger     *slog.Logger
	timeout    *time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger that receives failure diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = &d
	}
}

// NewClient creates a new Client for r.
func NewClient(r routes.Routes, opts ...Option) *Client {
	c := &Client{
		routes:     r,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout != nil {
		// Copy so a caller-supplied client is never mutated.
		hc := *c.httpClient
		hc.Timeout = *c.timeout
		c.httpClient = &hc
	}
	return c
}

// Routes returns the endpoints this client talks to.
func (c *Client) Routes() routes.Routes {
	return c.routes
}

type yearsResponse struct {
	Years []int `json:"years"`
}

type reportsResponse struct {
	Reports []model.Report `json:"reports"`
}

type reportResponse struct {
	Report *model.Document `json:"report"`
}

// ListYears retrieves the years that have at least one report.
// On failure it returns an empty slice and the error.
func (c *Client) ListYears(ctx context.Context) ([]int, error) {
	var resp yearsResponse
	if err := c.getJSON(ctx, c.routes.Years, &resp); err != nil {
		c.logger.Error("failed to fetch report years", "url", c.routes.Years, "error", err)
		return []int{}, err
	}
	if resp.Years == nil {
		err := &Error{Kind: KindPayload, URL: c.routes.Years, Err: errors.New(`missing "years" field`)}
		c.logger.Error("failed to fetch report years", "url", c.routes.Years, "error", err)
		return []int{}, err
	}

	c.logger.Debug("fetched report years", "count", len(resp.Years))
	return resp.Years, nil
}

// ListReports retrieves the reports filed in year, in the order the API sent them.
// On failure it returns an empty slice and the error.
func (c *Client) ListReports(ctx context.Context, year int) ([]model.Report, error) {
	url := c.routes.YearURL(year)

	var resp reportsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		c.logger.Error("failed to fetch reports", "year", year, "url", url, "error", err)
		return []model.Report{}, err
	}
	if resp.Reports == nil {
		err := &Error{Kind: KindPayload, URL: url, Err: errors.New(`missing "reports" field`)}
		c.logger.Error("failed to fetch reports", "year", year, "url", url, "error", err)
		return []model.Report{}, err
	}

	c.logger.Debug("fetched reports", "year", year, "count", len(resp.Reports))
	return resp.Reports, nil
}

// FetchReport retrieves the full record of one report, including its PDF payload.
// On failure it returns nil and the error. A record without a payload is not
// a failure here; check Document.HasPayload.
func (c *Client) FetchReport(ctx context.Context, reportID string) (*model.Document, error) {
	url := c.routes.ReportURL(reportID)

	var resp reportResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		c.logger.Error("failed to fetch report", "report_id", reportID, "url", url, "error", err)
		return nil, err
	}
	if resp.Report == nil {
		err := &Error{Kind: KindPayload, URL: url, Err: errors.New(`missing "report" field`)}
		c.logger.Error("failed to fetch report", "report_id", reportID, "url", url, "error", err)
		return nil, err
	}

	return resp.Report, nil
}

// getJSON issues one GET and decodes a 2xx JSON body into v.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Kind: KindTransport, URL: url, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Error{Kind: KindTransport, URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &Error{Kind: KindPayload, URL: url, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
