// Package store provides SQLite storage for the report download history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robertmeta/report-cli/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a download record does not exist.
var ErrNotFound = errors.New("download not found")

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
}

// QueryOptions specifies how to query downloads.
type QueryOptions struct {
	Limit     int
	Offset    int
	ReportID  string
	SinceTime *int64 // Unix timestamp
}

// New creates a new Store with the given database path, creating its
// directory if needed. Use ":memory:" for an in-memory database (useful for
// testing).
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each pooled connection to ":memory:" would be a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables and indexes.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		aerodrome TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL,
		bytes INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		sha256 TEXT NOT NULL DEFAULT '',
		downloaded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_downloaded_at ON downloads(downloaded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_downloads_report_id ON downloads(report_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordDownload inserts d and sets its ID. A zero DownloadedAt is stamped
// with the current time.
func (s *Store) RecordDownload(ctx context.Context, d *model.Download) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO downloads (report_id, aerodrome, path, bytes, pages, sha256, downloaded_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		d.ReportID, d.Aerodrome, d.Path, d.Bytes, d.Pages, d.SHA256, d.DownloadedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	d.ID = id
	return nil
}

const downloadColumns = "id, report_id, aerodrome, path, bytes, pages, sha256, downloaded_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(row scanner) (*model.Download, error) {
	d := &model.Download{}
	var downloadedUnix int64
	if err := row.Scan(&d.ID, &d.ReportID, &d.Aerodrome, &d.Path, &d.Bytes, &d.Pages, &d.SHA256, &downloadedUnix); err != nil {
		return nil, err
	}
	d.DownloadedAt = unixToTime(downloadedUnix)
	return d, nil
}

// GetDownload retrieves a download by ID.
func (s *Store) GetDownload(ctx context.Context, id int64) (*model.Download, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+downloadColumns+" FROM downloads WHERE id = ?", id)

	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	return d, nil
}

// ListDownloads retrieves downloads, newest first, with optional filtering
// and pagination. The result is never nil.
func (s *Store) ListDownloads(ctx context.Context, opts QueryOptions) ([]*model.Download, error) {
	query := "SELECT " + downloadColumns + " FROM downloads WHERE 1=1"
	args := []any{}

	if opts.ReportID != "" {
		query += " AND report_id = ?"
		args = append(args, opts.ReportID)
	}

	if opts.SinceTime != nil {
		query += " AND downloaded_at >= ?"
		args = append(args, *opts.SinceTime)
	}

	query += " ORDER BY downloaded_at DESC, id DESC"

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ?"
		args = append(args, limit)
	}

	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	downloads := []*model.Download{}
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads = append(downloads, d)
	}

	return downloads, rows.Err()
}

// CountDownloads returns how many times reportID was downloaded.
func (s *Store) CountDownloads(ctx context.Context, reportID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM downloads WHERE report_id = ?", reportID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return n, nil
}

// Helper to convert Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}
