// Package export turns the base64 PDF embedded in a report record into a
// saved file.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robertmeta/report-cli/model"
	"golang.org/x/sync/singleflight"
)

// MIMEType is the content type of every exported document.
const MIMEType = "application/pdf"

var (
	// ErrNoDocument means the report record carries no PDF payload.
	ErrNoDocument = errors.New("no PDF data found in report")
	// ErrDecode means the payload is not valid base64.
	ErrDecode = errors.New("failed to decode PDF payload")
	// ErrInvalidDocument means the decoded bytes are not a valid PDF.
	ErrInvalidDocument = errors.New("decoded payload is not a valid PDF")
	// ErrSave means the Saver failed, possibly after writing part of the file.
	ErrSave = errors.New("failed to save")
)

// Fetcher retrieves a full report record.
type Fetcher interface {
	FetchReport(ctx context.Context, reportID string) (*model.Document, error)
}

// Recorder keeps a history of completed downloads.
type Recorder interface {
	RecordDownload(ctx context.Context, d *model.Download) error
}

// File is a decoded document ready to be saved.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Result describes a completed download.
type Result struct {
	ReportID string `json:"report_id"`
	FileName string `json:"file_name"`
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
	Pages    int    `json:"pages,omitempty"`
	Verified bool   `json:"verified"`
	SHA256   string `json:"sha256"`
}

// Exporter downloads report documents.
type Exporter struct {
	fetcher   Fetcher
	saver     Saver
	recorder  Recorder
	logger    *slog.Logger
	verify    VerifyMode
	aerodrome string
	now       func() time.Time
	group     singleflight.Group
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger that receives failure diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// WithRecorder records every saved file.
func WithRecorder(r Recorder, aerodrome string) Option {
	return func(e *Exporter) {
		e.recorder = r
		e.aerodrome = aerodrome
	}
}

// WithVerify sets how decoded payloads are checked.
func WithVerify(mode VerifyMode) Option {
	return func(e *Exporter) {
		e.verify = mode
	}
}

// New creates an Exporter that fetches with f and saves with s.
func New(f Fetcher, s Saver, opts ...Option) *Exporter {
	e := &Exporter{
		fetcher: f,
		saver:   s,
		logger:  slog.Default(),
		verify:  VerifyWarn,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// prepared is a decoded document shared between concurrent callers.
type prepared struct {
	file     File
	pages    int
	verified bool
	checksum string
}

// Download fetches reportID and hands its PDF to the configured Saver.
// On failure nothing is saved, the error is logged and returned.
func (e *Exporter) Download(ctx context.Context, reportID string) (*Result, error) {
	return e.DownloadTo(ctx, reportID, e.saver)
}

// DownloadTo is Download with an explicit Saver.
func (e *Exporter) DownloadTo(ctx context.Context, reportID string, s Saver) (*Result, error) {
	// Identical requests in flight share one fetch and decode. The shared
	// fetch outlives any single caller; each caller waits on its own context.
	flight := e.group.DoChan(reportID, func() (any, error) {
		return e.prepare(context.WithoutCancel(ctx), reportID)
	})

	var out singleflight.Result
	select {
	case <-ctx.Done():
		e.logger.Warn("download abandoned", "report_id", reportID, "error", ctx.Err())
		return nil, ctx.Err()
	case out = <-flight:
	}
	if out.Err != nil {
		return nil, out.Err
	}
	if out.Shared {
		e.logger.Debug("joined in-flight download", "report_id", reportID)
	}
	p := out.Val.(*prepared)

	location, err := s.Save(ctx, p.file)
	if err != nil {
		e.logger.Error("failed to save report PDF", "report_id", reportID, "file", p.file.Name, "error", err)
		return nil, fmt.Errorf("%w %s: %w", ErrSave, p.file.Name, err)
	}

	res := &Result{
		ReportID: reportID,
		FileName: p.file.Name,
		Location: location,
		Bytes:    len(p.file.Data),
		Pages:    p.pages,
		Verified: p.verified,
		SHA256:   p.checksum,
	}
	e.logger.Info("saved report PDF", "report_id", reportID, "location", location, "bytes", res.Bytes)

	if e.recorder != nil && location != "" {
		d := &model.Download{
			ReportID:     reportID,
			Aerodrome:    e.aerodrome,
			Path:         location,
			Bytes:        int64(res.Bytes),
			Pages:        res.Pages,
			SHA256:       res.SHA256,
			DownloadedAt: e.now(),
		}
		// History is best effort; the file is already saved.
		if err := e.recorder.RecordDownload(ctx, d); err != nil {
			e.logger.Warn("failed to record download", "report_id", reportID, "error", err)
		}
	}

	return res, nil
}

// prepare fetches, decodes and verifies the document for reportID.
func (e *Exporter) prepare(ctx context.Context, reportID string) (*prepared, error) {
	doc, err := e.fetcher.FetchReport(ctx, reportID)
	if err != nil {
		e.logger.Error("error fetching report by ID", "report_id", reportID, "error", err)
		return nil, fmt.Errorf("failed to fetch report %s: %w", reportID, err)
	}
	if !doc.HasPayload() {
		e.logger.Error("no PDF data found in report", "report_id", reportID)
		return nil, ErrNoDocument
	}

	data, err := Decode(doc.FormattedPDF)
	if err != nil {
		e.logger.Error("failed to decode report PDF", "report_id", reportID, "error", err)
		return nil, err
	}

	p := &prepared{
		file: File{
			Name:     FileName(doc, reportID),
			MIMEType: MIMEType,
			Data:     data,
		},
		checksum: checksum(data),
	}

	if e.verify != VerifyOff {
		pages, verr := Verify(data)
		switch {
		case verr == nil:
			p.pages = pages
			p.verified = true
		case e.verify == VerifyStrict:
			e.logger.Error("report PDF failed verification", "report_id", reportID, "error", verr)
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, verr)
		default:
			e.logger.Warn("report PDF failed verification, saving anyway", "report_id", reportID, "error", verr)
		}
	}

	return p, nil
}

// Decode turns a base64 payload into raw bytes. Like a browser's atob it
// ignores ASCII whitespace and accepts missing padding.
func Decode(payload string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, payload)
	if len(clean)%4 == 0 {
		clean = strings.TrimSuffix(clean, "=")
		clean = strings.TrimSuffix(clean, "=")
	}

	data, err := base64.RawStdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// FileName names the saved file after the record's report ID, falling back
// to the requested ID when the record has no metadata.
func FileName(doc *model.Document, requestedID string) string {
	id := requestedID
	if doc != nil && doc.Meta.ReportID != "" {
		id = doc.Meta.ReportID
	}
	return id + ".pdf"
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
