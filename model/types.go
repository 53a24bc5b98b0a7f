// Package model defines the core data structures for report-cli.
package model

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Report is one archived filing record for an aerodrome.
type Report struct {
	ReportID  string    `json:"reportId"`
	Year      int       `json:"year"`
	Publisher Publisher `json:"publisher"`
	Published string    `json:"published"`
	Format    string    `json:"format"`
	Status    []Status  `json:"status"`
}

// Validate checks if the report has required fields.
func (r *Report) Validate() error {
	if r.ReportID == "" {
		return errors.New("report ID is required")
	}
	return nil
}

// PublishedTime parses the ISO 8601 publication timestamp.
func (r *Report) PublishedTime() (time.Time, error) {
	return ParseTimestamp(r.Published)
}

// HasStatus returns true if at least one delivery attempt was recorded.
func (r *Report) HasStatus() bool {
	return len(r.Status) > 0
}

// FailedDeliveries counts the delivery attempts marked as failed.
func (r *Report) FailedDeliveries() int {
	n := 0
	for _, s := range r.Status {
		if s.Failed {
			n++
		}
	}
	return n
}

// Publisher identifies the user who filed a report.
type Publisher struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Status is one attempt to deliver a report to a recipient.
type Status struct {
	Delivered string `json:"delivered"`
	Error     string `json:"error"`
	Failed    bool   `json:"failed"`
	Method    string `json:"method"`
	Recipient string `json:"recipient"`
	Sent      string `json:"sent"`
}

// Summary renders the status line shown under a report's details.
func (s Status) Summary() string {
	return fmt.Sprintf("Sent at: %s to: %s", FormatDate(s.Sent), s.Recipient)
}

// Document is the report-by-id payload carrying the rendered PDF.
type Document struct {
	FormattedPDF string       `json:"formattedPdf"`
	Meta         DocumentMeta `json:"meta"`
}

// DocumentMeta holds the metadata block of a Document.
type DocumentMeta struct {
	ReportID string `json:"reportId"`
}

// HasPayload reports whether the document carries PDF data.
func (d *Document) HasPayload() bool {
	return d != nil && d.FormattedPDF != ""
}

// LatestYear returns the most recent year, or false if there are none.
func LatestYear(years []int) (int, bool) {
	if len(years) == 0 {
		return 0, false
	}
	return slices.Max(years), true
}

// Download records one PDF saved to disk.
type Download struct {
	ID           int64     `json:"id"`
	ReportID     string    `json:"report_id"`
	Aerodrome    string    `json:"aerodrome"`
	Path         string    `json:"path"`
	Bytes        int64     `json:"bytes"`
	Pages        int       `json:"pages,omitempty"`
	SHA256       string    `json:"sha256"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Validate checks if the download has required fields.
func (d *Download) Validate() error {
	if d.ReportID == "" {
		return errors.New("download report ID is required")
	}
	if d.Path == "" {
		return errors.New("download path is required")
	}
	return nil
}
