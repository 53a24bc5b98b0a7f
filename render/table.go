package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/robertmeta/report-cli/model"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func listingTable(w io.Writer, l Listing) error {
	fmt.Fprintln(w, l.Title())
	if l.Query != "" {
		fmt.Fprintf(w, "Searching for: %q\n", l.Query)
	}
	if l.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", l.Error)
	}
	fmt.Fprintln(w)

	if !l.Page.Empty() {
		tw := newTabWriter(w)
		fmt.Fprintln(tw, "DATE & TIME\tREPORT TYPE\tREPORT ID\tPUBLISHER")
		for _, r := range l.Page.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", model.FormatDate(r.Published), r.Format, r.ReportID, r.Publisher.DisplayName)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, Showing(l.Page))
	if len(l.Window) > 0 {
		_, err := fmt.Fprintf(w, "Pages: %s\n", Pager(l.Window))
		return err
	}
	return nil
}

func detailTable(w io.Writer, d Detail) error {
	r := d.Report
	fmt.Fprintf(w, "Report No %s\n\n", r.ReportID)

	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Report ID:\t%s\n", r.ReportID)
	fmt.Fprintf(tw, "Date Filed:\t%s\n", model.FormatDate(r.Published))
	fmt.Fprintf(tw, "Report Type:\t%s (%s)\n", r.Format, d.Variant)
	fmt.Fprintf(tw, "Publisher:\t%s <%s>\n", r.Publisher.DisplayName, r.Publisher.Email)
	fmt.Fprintf(tw, "Downloaded:\t%s\n", times(d.Downloads))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nStatus:")
	for _, line := range StatusLines(r) {
		if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func downloadsTable(w io.Writer, downloads []*model.Download) error {
	if len(downloads) == 0 {
		_, err := fmt.Fprintln(w, "No downloads recorded.")
		return err
	}

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tREPORT ID\tAERODROME\tSIZE\tPAGES\tWHEN\tPATH")
	for _, d := range downloads {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.ReportID, d.Aerodrome, humanize.Bytes(uint64(d.Bytes)), pages(d.Pages),
			humanize.Time(d.DownloadedAt), d.Path)
	}
	return tw.Flush()
}

func pages(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func times(n int) string {
	switch n {
	case 0:
		return "never"
	case 1:
		return "once"
	default:
		return humanize.Comma(int64(n)) + " times"
	}
}
