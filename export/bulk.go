package export

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one download in a batch.
type Outcome struct {
	ReportID string  `json:"report_id"`
	Result   *Result `json:"result,omitempty"`
	Err      error   `json:"-"`
	Error    string  `json:"error,omitempty"`
}

// DownloadAll downloads every report in ids with at most limit in flight.
// A failed download does not stop the others. Outcomes keep the order of ids.
func (e *Exporter) DownloadAll(ctx context.Context, ids []string, limit int) []Outcome {
	if limit < 1 {
		limit = 1
	}

	outcomes := make([]Outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(limit)

	for i, id := range ids {
		g.Go(func() error {
			out := Outcome{ReportID: id}
			if err := ctx.Err(); err != nil {
				out.Err = err
			} else {
				out.Result, out.Err = e.Download(ctx, id)
			}
			if out.Err != nil {
				out.Error = out.Err.Error()
			}
			// Each goroutine owns its slot.
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Failed counts the outcomes that ended in an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
