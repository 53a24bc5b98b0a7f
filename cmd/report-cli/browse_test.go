package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robertmeta/report-cli/export"
	"github.com/robertmeta/report-cli/logging"
	"github.com/robertmeta/report-cli/session"
	"github.com/robertmeta/report-cli/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBrowser(t *testing.T, idle time.Duration) (*browser, *bytes.Buffer, string) {
	t.Helper()

	client := fakeArchiveAPI(t)
	history, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	dir := t.TempDir()
	exporter := export.New(client, export.DirSaver{Dir: dir},
		export.WithLogger(logging.Discard()),
		export.WithVerify(export.VerifyOff),
		export.WithRecorder(history, "DEMO"),
	)

	var out bytes.Buffer
	b := &browser{
		sess:      session.New(client, exporter, session.WithLogger(logging.Discard())),
		history:   history,
		aerodrome: "DEMO",
		out:       &out,
		idle:      idle,
	}
	return b, &out, dir
}

func runScript(t *testing.T, b *browser, lines ...string) {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, b.run(context.Background(), in))
}

func TestBrowser_StartsOnLatestYear(t *testing.T) {
	b, out, _ := newTestBrowser(t, 0)
	runScript(t, b, "quit")

	assert.Contains(t, out.String(), "DEMO reports for 2024")
	assert.Contains(t, out.String(), "Showing 1 to 15 of 20 reports")
}

func TestBrowser_Navigation(t *testing.T) {
	b, out, _ := newTestBrowser(t, 0)
	runScript(t, b, "next", "next", "prev", "prev", "page 2")

	s := out.String()
	assert.Contains(t, s, "Showing 16 to 20 of 20 reports")
	assert.Contains(t, s, "Already on the last page.")
	assert.Contains(t, s, "Already on the first page.")
	assert.Equal(t, 2, b.sess.Snapshot().Page.Number)
}

func TestBrowser_SearchAndYear(t *testing.T) {
	b, out, _ := newTestBrowser(t, 0)
	runScript(t, b, "page 2", "search rcr", "year 2023")

	snap := b.sess.Snapshot()
	assert.Equal(t, 2023, snap.Year)
	assert.Equal(t, "rcr", snap.Query, "query survives a year change")
	assert.Equal(t, 1, snap.Page.Number)
	require.Len(t, snap.Page.Items, 1)
	assert.Equal(t, "R-2301", snap.Page.Items[0].ReportID)
	assert.Contains(t, out.String(), `Searching for: "rcr"`)

	runScript(t, b, "clear")
	assert.Equal(t, "", b.sess.Snapshot().Query)
}

func TestBrowser_YearFailure(t *testing.T) {
	b, out, _ := newTestBrowser(t, 0)
	runScript(t, b, "year 2022", "years")

	assert.Contains(t, out.String(), "Failed to load reports for 2022")
	assert.Contains(t, out.String(), "Years: [2022] 2023 2024")
}

func TestBrowser_ViewAndDownload(t *testing.T) {
	b, out, dir := newTestBrowser(t, 0)
	runScript(t, b, "download R-2405", "view R-2405", "view R-9999", "download R-NOPDF")

	s := out.String()
	assert.Contains(t, s, "Saved "+filepath.Join(dir, "R-2405.pdf"))
	assert.Contains(t, s, "Report No R-2405")
	assert.Contains(t, s, "once")
	assert.Contains(t, s, "Report R-9999 is not in the current year.")
	assert.Contains(t, s, "Download failed: no PDF data found in report")

	data, err := os.ReadFile(filepath.Join(dir, "R-2405.pdf"))
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
}

func TestBrowser_BadInput(t *testing.T) {
	b, out, _ := newTestBrowser(t, 0)
	runScript(t, b, "year twenty", "page x", "frobnicate", "view", "help")

	s := out.String()
	assert.Contains(t, s, `Not a year: "twenty"`)
	assert.Contains(t, s, `Not a page number: "x"`)
	assert.Contains(t, s, `Unknown command "frobnicate"`)
	assert.Contains(t, s, "Usage: view <report-id>")
	assert.Contains(t, s, "Commands:")
}

func TestBrowser_IdleTimeout(t *testing.T) {
	b, out, _ := newTestBrowser(t, 20*time.Millisecond)

	// A reader that never delivers a line.
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	done := make(chan error, 1)
	go func() { done <- b.run(context.Background(), pr) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("browser did not time out")
	}
	assert.Contains(t, out.String(), "closing session")
}

func TestBrowser_Canceled(t *testing.T) {
	b, _, _ := newTestBrowser(t, 0)

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.run(ctx, pr) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("browser ignored cancellation")
	}
}
