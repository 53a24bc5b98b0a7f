package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robertmeta/report-cli/archive"
	"github.com/robertmeta/report-cli/config"
	"github.com/robertmeta/report-cli/export"
	"github.com/robertmeta/report-cli/logging"
	"github.com/robertmeta/report-cli/model"
	"github.com/robertmeta/report-cli/render"
	"github.com/robertmeta/report-cli/routes"
	"github.com/robertmeta/report-cli/session"
	"github.com/robertmeta/report-cli/store"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func newApp() *cli.App {
	formatFlag := &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   string(render.FormatJSON),
		Usage:   "Output format: json, table, markdown or csv",
	}

	return &cli.App{
		Name:    "report-cli",
		Usage:   "A scriptable viewer for an aerodrome report archive",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				EnvVars: []string{"REPORT_CLI_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Archive API base URL (overrides api.base_url)",
			},
			&cli.StringFlag{
				Name:    "aerodrome",
				Aliases: []string{"a"},
				Usage:   "Aerodrome identifier (overrides api.aerodrome)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error (overrides log.level)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "years",
				Usage:  "List the years that have reports",
				Action: listYears,
			},
			{
				Name:  "list",
				Usage: "List one page of a year's reports",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "year",
						Aliases: []string{"y"},
						Usage:   "Year to list (default: most recent)",
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Filter by report ID, type or publisher",
					},
					&cli.IntFlag{
						Name:    "page",
						Aliases: []string{"p"},
						Value:   1,
						Usage:   "Page number (15 reports per page)",
					},
					formatFlag,
				},
				Action: listReports,
			},
			{
				Name:      "show",
				Usage:     "Show report details",
				ArgsUsage: "<report-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "year",
						Aliases: []string{"y"},
						Usage:   "Year the report was filed in (default: most recent)",
					},
					formatFlag,
				},
				Action: showReport,
			},
			{
				Name:      "download",
				Usage:     "Download report PDFs",
				ArgsUsage: "<report-id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"o"},
						Usage:   "Output directory (overrides download.dir)",
					},
					&cli.StringFlag{
						Name:  "verify",
						Usage: "PDF verification: off, warn or strict (overrides download.verify)",
					},
				},
				Action: downloadReports,
			},
			{
				Name:  "history",
				Usage: "List downloaded reports",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of downloads to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Value:   0,
						Usage:   "Offset for pagination",
					},
					&cli.StringFlag{
						Name:    "since",
						Aliases: []string{"s"},
						Usage:   "Show downloads since duration (e.g., 12h, 7d, 2w, 3m, 1y)",
					},
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"r"},
						Usage:   "Filter by report ID",
					},
					formatFlag,
				},
				Action: listHistory,
			},
			{
				Name:   "browse",
				Usage:  "Browse reports interactively",
				Action: browseReports,
			},
			{
				Name:  "serve",
				Usage: "Serve the report viewer over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides serve.addr)",
					},
				},
				Action: serveReports,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: showConfig,
			},
		},
	}
}

// env is everything a command needs, built from config and global flags.
type env struct {
	cfg      *config.Config
	loader   *config.Loader
	logger   *slog.Logger
	logClose io.Closer
	client   *archive.Client
}

func setup(c *cli.Context) (*env, error) {
	var opts []config.LoaderOption
	if path := c.String("config"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, cli.Exit(fmt.Sprintf("Config file not found: %s", path), ExitUsageError)
		}
		opts = append(opts, config.WithConfigPaths(path))
	}

	loader := config.NewLoader(opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Invalid configuration: %v", err), ExitUsageError)
	}

	// Global flags win over every config source.
	if c.IsSet("base-url") {
		cfg.API.BaseURL = c.String("base-url")
	}
	if c.IsSet("aerodrome") {
		cfg.API.Aerodrome = c.String("aerodrome")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("Invalid configuration: %v", err), ExitUsageError)
	}

	logger, logClose, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to set up logging: %v", err), ExitGeneralError)
	}

	client := archive.NewClient(
		routes.New(cfg.API.BaseURL, cfg.API.Aerodrome),
		archive.WithLogger(logger),
		archive.WithTimeout(cfg.API.RequestTimeout),
	)

	return &env{cfg: cfg, loader: loader, logger: logger, logClose: logClose, client: client}, nil
}

func (e *env) Close() {
	e.logClose.Close()
}

// openHistory opens the download history store.
func (e *env) openHistory() (*store.Store, error) {
	s, err := store.New(e.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open download history: %w", err)
	}
	return s, nil
}

// newExporter builds an exporter that hands files to saver. history may be nil.
func (e *env) newExporter(saver export.Saver, history *store.Store, verify export.VerifyMode) *export.Exporter {
	opts := []export.Option{export.WithLogger(e.logger), export.WithVerify(verify)}
	if history != nil {
		opts = append(opts, export.WithRecorder(history, e.cfg.API.Aerodrome))
	}
	return export.New(e.client, saver, opts...)
}

func outputJSON(v any) error {
	return render.JSON(os.Stdout, v)
}

func parseFormat(c *cli.Context) (render.Format, error) {
	f, err := render.ParseFormat(c.String("format"))
	if err != nil {
		return "", cli.Exit(err.Error(), ExitUsageError)
	}
	return f, nil
}

func listYears(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	years, err := e.client.ListYears(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load available years: %v", err), ExitDataError)
	}

	out := map[string]any{
		"aerodrome": e.cfg.API.Aerodrome,
		"years":     years,
	}
	if latest, ok := model.LatestYear(years); ok {
		out["latest"] = latest
	}
	return outputJSON(out)
}

func listReports(c *cli.Context) error {
	format, err := parseFormat(c)
	if err != nil {
		return err
	}
	if c.Int("page") < 1 {
		return cli.Exit("Page must be at least 1", ExitUsageError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	sess := session.New(e.client, nil, session.WithLogger(e.logger))
	if err := sess.LoadYear(c.Context, c.Int("year")); err != nil {
		return cli.Exit(sess.Snapshot().Error, ExitDataError)
	}
	sess.Search(c.String("query"))
	snap := sess.GoToPage(c.Int("page"))

	return render.WriteListing(os.Stdout, format, render.NewListing(e.cfg.API.Aerodrome, snap))
}

func showReport(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: report-cli show <report-id>", ExitUsageError)
	}
	format, err := parseFormat(c)
	if err != nil {
		return err
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	reportID := c.Args().Get(0)

	sess := session.New(e.client, nil, session.WithLogger(e.logger))
	if err := sess.LoadYear(c.Context, c.Int("year")); err != nil {
		return cli.Exit(sess.Snapshot().Error, ExitDataError)
	}

	report, ok := sess.ViewReport(reportID)
	if !ok {
		snap := sess.Snapshot()
		return cli.Exit(fmt.Sprintf("Report %s not found in %d", reportID, snap.Year), ExitDataError)
	}

	return render.WriteDetail(os.Stdout, format, render.NewDetail(report, e.downloadCount(c.Context, reportID)))
}

// downloadCount is best effort: a missing or broken history shows zero.
func (e *env) downloadCount(ctx context.Context, reportID string) int {
	history, err := e.openHistory()
	if err != nil {
		e.logger.Warn("download history unavailable", "error", err)
		return 0
	}
	defer history.Close()

	n, err := history.CountDownloads(ctx, reportID)
	if err != nil {
		e.logger.Warn("failed to count downloads", "report_id", reportID, "error", err)
		return 0
	}
	return n
}

func downloadReports(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: report-cli download <report-id>...", ExitUsageError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	dir := e.cfg.Download.Dir
	if c.IsSet("dir") {
		dir = c.String("dir")
	}
	verifyName := e.cfg.Download.Verify
	if c.IsSet("verify") {
		verifyName = c.String("verify")
	}
	verify, err := export.ParseVerifyMode(verifyName)
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

	exporter := e.newExporter(export.DirSaver{Dir: dir}, history, verify)
	outcomes := exporter.DownloadAll(c.Context, c.Args().Slice(), e.cfg.Download.Parallel)
	failed := export.Failed(outcomes)

	if err := outputJSON(map[string]any{
		"downloaded": len(outcomes) - failed,
		"failed":     failed,
		"results":    outcomes,
	}); err != nil {
		return err
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d downloads failed", failed, len(outcomes)), ExitDataError)
	}
	return nil
}

func listHistory(c *cli.Context) error {
	format, err := parseFormat(c)
	if err != nil {
		return err
	}

	opts, err := store.BuildQueryOptions(
		c.Int("limit"),
		c.Int("offset"),
		c.String("since"),
		c.String("report"),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid query options: %v", err), ExitUsageError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	history, err := e.openHistory()
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer history.Close()

	downloads, err := history.ListDownloads(c.Context, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get downloads: %v", err), ExitDataError)
	}

	return render.WriteDownloads(os.Stdout, format, downloads)
}

func showConfig(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	values := make(map[string]any)
	for k, v := range e.loader.All() {
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		values[k] = v
	}
	// Global flags are applied after loading.
	values["api.base_url"] = e.cfg.API.BaseURL
	values["api.aerodrome"] = e.cfg.API.Aerodrome
	values["log.level"] = e.cfg.Log.Level

	return outputJSON(map[string]any{
		"source": e.loader.Source(),
		"values": values,
	})
}

// oneLine flattens an error for single-line display.
func oneLine(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
