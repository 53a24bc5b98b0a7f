package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/robertmeta/report-cli/archive"
	"github.com/robertmeta/report-cli/export"
	"github.com/robertmeta/report-cli/render"
	"github.com/robertmeta/report-cli/session"
	"github.com/robertmeta/report-cli/store"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func serveReports(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	addr := e.cfg.Serve.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	verify, err := export.ParseVerifyMode(e.cfg.Download.Verify)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	history, err := e.openHistory()
	if err != nil {
		e.logger.Warn("download counts unavailable", "error", err)
		history = nil
	} else {
		defer history.Close()
	}

	html, err := render.NewHTML()
	if err != nil {
		return err
	}

	// PDFs go straight to the browser and are not recorded.
	s := &server{
		archive:   e.client,
		exporter:  e.newExporter(nil, nil, verify),
		history:   history,
		html:      html,
		aerodrome: e.cfg.API.Aerodrome,
		logger:    e.logger,
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("serving report viewer", "addr", addr, "aerodrome", s.aerodrome)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit("Server failed: "+err.Error(), ExitGeneralError)
		}
		return nil
	case <-c.Context.Done():
	}

	e.logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// server serves the HTML report viewer. Every request gets its own Session,
// so the URL carries all view state.
type server struct {
	archive   session.Archive
	exporter  *export.Exporter
	history   *store.Store // may be nil
	html      *render.HTML
	aerodrome string
	logger    *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /reports/{id}", s.handleDetail)
	mux.HandleFunc("GET /reports/{id}/pdf", s.handlePDF)
	mux.HandleFunc("GET /api/reports", s.handleAPIReports)
	return mux
}

// queryInt reads a positive integer query parameter, or zero.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// listing loads the page described by the request's year, q and page.
func (s *server) listing(r *http.Request) render.Listing {
	sess := session.New(s.archive, nil, session.WithLogger(s.logger))
	if err := sess.LoadYear(r.Context(), queryInt(r, "year")); err != nil {
		s.logger.Warn("failed to load listing", "error", err)
	}
	sess.Search(r.URL.Query().Get("q"))

	page := queryInt(r, "page")
	if page == 0 {
		page = 1
	}
	return render.NewListing(s.aerodrome, sess.GoToPage(page))
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	l := s.listing(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.html.Index(w, l); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}

func (s *server) handleAPIReports(w http.ResponseWriter, r *http.Request) {
	l := s.listing(r)
	w.Header().Set("Content-Type", "application/json")
	if l.Error != "" {
		w.WriteHeader(http.StatusBadGateway)
	}
	if err := render.JSON(w, l); err != nil {
		s.logger.Error("failed to write listing", "error", err)
	}
}

func (s *server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess := session.New(s.archive, nil, session.WithLogger(s.logger))
	if err := sess.LoadYear(r.Context(), queryInt(r, "year")); err != nil {
		s.logger.Warn("failed to load report year", "report_id", id, "error", err)
		http.Error(w, sess.Snapshot().Error, http.StatusBadGateway)
		return
	}

	report, ok := sess.ViewReport(id)
	if !ok {
		http.Error(w, "Report "+id+" not found", http.StatusNotFound)
		return
	}

	downloads := 0
	if s.history != nil {
		n, err := s.history.CountDownloads(r.Context(), id)
		if err != nil {
			s.logger.Warn("failed to count downloads", "report_id", id, "error", err)
		}
		downloads = n
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.html.Detail(w, render.NewDetail(report, downloads), sess.Snapshot().Year); err != nil {
		s.logger.Error("failed to render detail", "error", err)
	}
}

func (s *server) handlePDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	_, err := s.exporter.DownloadTo(r.Context(), id, export.ResponseSaver{W: w})
	switch {
	case err == nil:
	case errors.Is(err, export.ErrSave):
		// The response is already committed.
		s.logger.Warn("failed to send pdf", "report_id", id, "error", err)
	case errors.Is(err, export.ErrNoDocument):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, archive.ErrTransport), errors.Is(err, archive.ErrPayload),
		errors.Is(err, export.ErrDecode), errors.Is(err, export.ErrInvalidDocument):
		http.Error(w, oneLine(err), http.StatusBadGateway)
	default:
		s.logger.Error("pdf download failed", "report_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
