package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robertmeta/report-cli/export"
	"github.com/robertmeta/report-cli/render"
	"github.com/robertmeta/report-cli/session"
	"github.com/robertmeta/report-cli/store"
	"github.com/robertmeta/report-cli/view"
	"github.com/urfave/cli/v2"
)

const browseHelp = `Commands:
  years              list the years that have reports
  year <yyyy>        switch to another year
  search <text>      filter by report ID, type or publisher
  clear              clear the search
  page <n>           go to page n
  next, prev         move one page
  view <id>          show report details
  download <id>      save the report PDF
  reload             fetch the current year again
  help               show this help
  quit               leave the browser
`

func browseReports(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	verify, err := export.ParseVerifyMode(e.cfg.Download.Verify)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	history, err := e.openHistory()
	if err != nil {
		e.logger.Warn("downloads will not be recorded", "error", err)
		history = nil
	} else {
		defer history.Close()
	}

	exporter := e.newExporter(export.DirSaver{Dir: e.cfg.Download.Dir}, history, verify)
	b := &browser{
		sess:      session.New(e.client, exporter, session.WithLogger(e.logger)),
		history:   history,
		aerodrome: e.cfg.API.Aerodrome,
		out:       os.Stdout,
		idle:      e.cfg.Session.IdleTimeout,
	}
	return b.run(c.Context, os.Stdin)
}

// browser is a line-oriented front end over a Session.
type browser struct {
	sess      *session.Session
	history   *store.Store // nil when history is unavailable
	aerodrome string
	out       io.Writer
	idle      time.Duration // zero disables the idle timeout
}

// run loads the most recent year and reads commands from in until quit, end
// of input, cancellation or the idle timeout.
func (b *browser) run(ctx context.Context, in io.Reader) error {
	// A failed load is shown in the listing; the user can still retry.
	_ = b.sess.Load(ctx)
	b.printListing()

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	var (
		timer *time.Timer
		idle  <-chan time.Time
	)
	if b.idle > 0 {
		timer = time.NewTimer(b.idle)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		fmt.Fprint(b.out, "> ")

		select {
		case <-ctx.Done():
			fmt.Fprintln(b.out)
			return nil
		case <-idle:
			fmt.Fprintf(b.out, "\nIdle for %s, closing session.\n", b.idle)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(b.out)
				return nil
			}
			if b.handle(ctx, line) {
				return nil
			}
			if timer != nil {
				timer.Reset(b.idle)
			}
		}
	}
}

// handle runs one command line and reports whether the user asked to quit.
func (b *browser) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprint(b.out, browseHelp)
	case "years":
		b.printYears()
	case "year", "y":
		year, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(b.out, "Not a year: %q\n", arg)
			return false
		}
		b.changeYear(ctx, year)
	case "search", "s":
		b.sess.Search(arg)
		b.printListing()
	case "clear":
		b.sess.Search("")
		b.printListing()
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(b.out, "Not a page number: %q\n", arg)
			return false
		}
		b.sess.GoToPage(n)
		b.printListing()
	case "next", "n":
		p := b.sess.Snapshot().Page
		if !view.HasNext(p.Number, p.TotalPages) {
			fmt.Fprintln(b.out, "Already on the last page.")
			return false
		}
		b.sess.GoToPage(p.Number + 1)
		b.printListing()
	case "prev", "p":
		p := b.sess.Snapshot().Page
		if !view.HasPrevious(p.Number) {
			fmt.Fprintln(b.out, "Already on the first page.")
			return false
		}
		b.sess.GoToPage(p.Number - 1)
		b.printListing()
	case "view", "show", "v":
		b.view(ctx, arg)
	case "download", "d":
		b.download(ctx, arg)
	case "reload", "r":
		if err := b.sess.Reload(ctx); err != nil && !errors.Is(err, session.ErrSuperseded) {
			fmt.Fprintf(b.out, "Reload failed: %s\n", oneLine(err))
		}
		b.printListing()
	default:
		fmt.Fprintf(b.out, "Unknown command %q. Type help for a list of commands.\n", cmd)
	}
	return false
}

func (b *browser) printListing() {
	render.WriteListing(b.out, render.FormatTable, render.NewListing(b.aerodrome, b.sess.Snapshot()))
}

func (b *browser) printYears() {
	snap := b.sess.Snapshot()
	if len(snap.Years) == 0 {
		fmt.Fprintln(b.out, "No years available.")
		return
	}
	parts := make([]string, len(snap.Years))
	for i, y := range snap.Years {
		parts[i] = strconv.Itoa(y)
		if snap.HasYear && y == snap.Year {
			parts[i] = "[" + parts[i] + "]"
		}
	}
	fmt.Fprintf(b.out, "Years: %s\n", strings.Join(parts, " "))
}

func (b *browser) changeYear(ctx context.Context, year int) {
	err := b.sess.ChangeYear(ctx, year)
	if errors.Is(err, session.ErrSuperseded) {
		return
	}
	b.printListing()
}

func (b *browser) view(ctx context.Context, reportID string) {
	if reportID == "" {
		fmt.Fprintln(b.out, "Usage: view <report-id>")
		return
	}
	report, ok := b.sess.ViewReport(reportID)
	if !ok {
		fmt.Fprintf(b.out, "Report %s is not in the current year.\n", reportID)
		return
	}

	downloads := 0
	if b.history != nil {
		if n, err := b.history.CountDownloads(ctx, reportID); err == nil {
			downloads = n
		}
	}
	render.WriteDetail(b.out, render.FormatTable, render.NewDetail(report, downloads))
}

func (b *browser) download(ctx context.Context, reportID string) {
	if reportID == "" {
		fmt.Fprintln(b.out, "Usage: download <report-id>")
		return
	}
	res, err := b.sess.DownloadReport(ctx, reportID)
	if err != nil {
		fmt.Fprintf(b.out, "Download failed: %s\n", oneLine(err))
		return
	}
	fmt.Fprintf(b.out, "Saved %s (%s)\n", res.Location, humanize.Bytes(uint64(res.Bytes)))
}
