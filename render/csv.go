package render

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/robertmeta/report-cli/model"
)

// reportRow flattens a Report for CSV output.
type reportRow struct {
	Published  string `csv:"published"`
	Format     string `csv:"format"`
	ReportID   string `csv:"report_id"`
	Publisher  string `csv:"publisher"`
	Email      string `csv:"email"`
	Deliveries int    `csv:"deliveries"`
	Failed     int    `csv:"failed_deliveries"`
}

type downloadRow struct {
	ID           int64  `csv:"id"`
	ReportID     string `csv:"report_id"`
	Aerodrome    string `csv:"aerodrome"`
	Path         string `csv:"path"`
	Bytes        int64  `csv:"bytes"`
	Pages        int    `csv:"pages"`
	SHA256       string `csv:"sha256"`
	DownloadedAt string `csv:"downloaded_at"`
}

func reportsCSV(w io.Writer, reports []model.Report) error {
	rows := make([]reportRow, len(reports))
	for i, r := range reports {
		rows[i] = reportRow{
			Published:  r.Published,
			Format:     r.Format,
			ReportID:   r.ReportID,
			Publisher:  r.Publisher.DisplayName,
			Email:      r.Publisher.Email,
			Deliveries: len(r.Status),
			Failed:     r.FailedDeliveries(),
		}
	}
	return writeCSV(w, rows, reportRow{})
}

func downloadsCSV(w io.Writer, downloads []*model.Download) error {
	rows := make([]downloadRow, len(downloads))
	for i, d := range downloads {
		rows[i] = downloadRow{
			ID:           d.ID,
			ReportID:     d.ReportID,
			Aerodrome:    d.Aerodrome,
			Path:         d.Path,
			Bytes:        d.Bytes,
			Pages:        d.Pages,
			SHA256:       d.SHA256,
			DownloadedAt: d.DownloadedAt.UTC().Format(time.RFC3339),
		}
	}
	return writeCSV(w, rows, downloadRow{})
}

// writeCSV encodes rows with a header line, which is written even when rows
// is empty.
func writeCSV[T any](w io.Writer, rows []T, zero T) error {
	cw := csv.NewWriter(w)

	if len(rows) == 0 {
		header, err := csvutil.Header(zero, "csv")
		if err != nil {
			return err
		}
		if err := cw.Write(header); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}

	if err := csvutil.NewEncoder(cw).Encode(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
