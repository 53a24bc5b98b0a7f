package render

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/robertmeta/report-cli/model"
)

func listingMarkdown(w io.Writer, l Listing) error {
	md := markdown.NewMarkdown(w)

	md.H2(l.Title())
	md.PlainText("")
	if l.Query != "" {
		md.PlainTextf("Searching for: **%s**", l.Query)
		md.PlainText("")
	}
	if l.Error != "" {
		md.Note(l.Error)
		md.PlainText("")
	}

	if !l.Page.Empty() {
		rows := make([][]string, len(l.Page.Items))
		for i, r := range l.Page.Items {
			rows[i] = []string{model.FormatDate(r.Published), r.Format, "`" + r.ReportID + "`", r.Publisher.DisplayName}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Date & Time", "Report Type", "Report ID", "Publisher"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	md.PlainText(Showing(l.Page))
	if len(l.Window) > 0 {
		md.PlainText("")
		md.PlainTextf("Pages: %s", Pager(l.Window))
	}

	return md.Build()
}

func detailMarkdown(w io.Writer, d Detail) error {
	r := d.Report
	md := markdown.NewMarkdown(w)

	md.H1("Report No " + r.ReportID)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Report ID", "`" + r.ReportID + "`"},
			{"Date Filed", model.FormatDate(r.Published)},
			{"Report Type", r.Format},
			{"Publisher", r.Publisher.DisplayName},
			{"Email", r.Publisher.Email},
			{"Downloaded", times(d.Downloads)},
		},
	})
	md.PlainText("")

	md.H2("Status")
	md.PlainText("")
	if r.HasStatus() {
		md.BulletList(StatusLines(r)...)
	} else {
		md.PlainText(EmptyStatusMessage)
	}

	return md.Build()
}

func downloadsMarkdown(w io.Writer, downloads []*model.Download) error {
	md := markdown.NewMarkdown(w)

	md.H2("Download history")
	md.PlainText("")
	if len(downloads) == 0 {
		md.PlainText("No downloads recorded.")
		return md.Build()
	}

	rows := make([][]string, len(downloads))
	for i, d := range downloads {
		rows[i] = []string{
			strconv.FormatInt(d.ID, 10),
			"`" + d.ReportID + "`",
			d.Aerodrome,
			humanize.Bytes(uint64(d.Bytes)),
			pages(d.Pages),
			d.DownloadedAt.Format(model.DisplayDateLayout),
			d.Path,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Report ID", "Aerodrome", "Size", "Pages", "Downloaded", "Path"},
		Rows:   rows,
	})

	return md.Build()
}
