// CLAUDE:SUMMARY CLI entry point for viewdiff — dual-session viewport comparison of two URLs with diff report output.
// Command viewdiff compares two rendered pages viewport by viewport and
// writes a visual diff report.
//
// Usage:
//
//	viewdiff -config viewdiff.yaml               # full run from YAML config
//	viewdiff -a https://prod.example.com -b https://staging.example.com
//	viewdiff -a <url> -b <url> -viewport mobile -out report/ -pdf
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/viewdiff/audit"
	"github.com/hazyhaar/viewdiff/compare"
	"github.com/hazyhaar/viewdiff/report"
	"github.com/hazyhaar/viewdiff/session"
	"github.com/hazyhaar/viewdiff/vision"
)

func main() {
	configPath := flag.String("config", "", "path to viewdiff.yaml config file")
	urlA := flag.String("a", "", "reference page URL")
	urlB := flag.String("b", "", "candidate page URL")
	viewport := flag.String("viewport", "", "viewport preset (desktop|tablet|mobile) or WxH")
	outDir := flag.String("out", "", "output directory for composites and results.json")
	pdf := flag.Bool("pdf", false, "assemble composites into report.pdf")
	analyze := flag.Bool("analyze", false, "enable vision analysis of each frame pair")
	auditDB := flag.String("audit-db", "", "path to a SQLite run-event database")
	chromeURL := flag.String("chrome-url", "", "WebSocket URL of an external Chrome (default: launch local)")
	headed := flag.Bool("headed", false, "run local Chrome with a visible window")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, vp, err := buildConfig(*configPath, *urlA, *urlB, *viewport, *outDir, *pdf, *analyze, *auditDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: viewdiff -config <file> | -a <url> -b <url> [-viewport <spec>] [-out <dir>]")
		os.Exit(2)
	}

	if err := run(ctx, logger, cfg, vp, *chromeURL, *headed); err != nil {
		logger.Error("viewdiff: fatal", "error", err)
		os.Exit(1)
	}
}

// buildConfig merges the optional YAML file with command-line overrides and
// resolves the viewport once for both the runner and the sessions.
func buildConfig(configPath, urlA, urlB, viewport, outDir string, pdf, analyze bool, auditDB string) (*compare.Config, session.Viewport, error) {
	var cfg *compare.Config
	if configPath != "" {
		loaded, err := compare.LoadFile(configPath)
		if err != nil {
			return nil, session.Viewport{}, fmt.Errorf("viewdiff: load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = &compare.Config{}
		cfg.ApplyDefaults()
	}

	if urlA != "" {
		cfg.URLA = urlA
	}
	if urlB != "" {
		cfg.URLB = urlB
	}
	if viewport != "" {
		cfg.Viewport = viewport
	}
	if outDir != "" {
		cfg.Report.Dir = outDir
	}
	if pdf {
		cfg.Report.PDF = true
	}
	if analyze {
		cfg.Analysis.Enabled = true
	}
	if auditDB != "" {
		cfg.AuditDB = auditDB
	}

	vp, err := session.ParseViewport(cfg.Viewport)
	if err != nil {
		return nil, session.Viewport{}, err
	}
	cfg.ViewportWidth = vp.Width
	cfg.ViewportHeight = vp.Height
	cfg.ViewportLabel = vp.Label

	if err := cfg.Validate(); err != nil {
		return nil, session.Viewport{}, err
	}
	return cfg, vp, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *compare.Config, vp session.Viewport, chromeURL string, headed bool) error {
	headless := !headed
	mgr := session.NewManager(session.ManagerConfig{
		RemoteURL: chromeURL,
		Headless:  &headless,
		Logger:    logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	sessA, err := session.Open(ctx, mgr, cfg.URLA, vp)
	if err != nil {
		return err
	}
	defer sessA.Close()

	sessB, err := session.Open(ctx, mgr, cfg.URLB, vp)
	if err != nil {
		return err
	}
	defer sessB.Close()

	opts := []compare.RunnerOption{compare.WithLogger(logger)}

	if cfg.Analysis.Enabled {
		keyEnv := cfg.Analysis.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		opts = append(opts, compare.WithAnalyzer(vision.New(vision.Options{
			APIKey:  os.Getenv(keyEnv),
			BaseURL: cfg.Analysis.BaseURL,
			Model:   cfg.Analysis.Model,
			Timeout: cfg.Timeouts.Analyze,
			Logger:  logger,
		})))
	}

	if cfg.AuditDB != "" {
		db, err := sql.Open("sqlite", cfg.AuditDB)
		if err != nil {
			return fmt.Errorf("viewdiff: open audit db: %w", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(1)
		if err := audit.Init(db); err != nil {
			return err
		}
		opts = append(opts, compare.WithAuditLog(audit.New(db)))
	}

	runner := compare.NewRunner(*cfg, opts...)
	res, err := runner.Run(ctx, sessA, sessB)
	if err != nil {
		return err
	}

	w := report.NewWriter(cfg.Report.Dir, report.WithPDF(cfg.Report.PDF), report.WithLogger(logger))
	out, err := w.Write(res)
	if err != nil {
		return err
	}

	printOutcome(res, out)
	return nil
}

// printOutcome writes the one-line human summary to stdout; everything else
// goes to the structured log on stderr.
func printOutcome(res *compare.RunResult, out *report.Output) {
	s := res.Summary
	state := "complete"
	if !s.Complete {
		state = "partial"
	}

	mean := "n/a"
	if s.MeanSimilarity != nil {
		mean = fmt.Sprintf("%.4f", *s.MeanSimilarity)
	}

	fmt.Printf("viewdiff %s: %d/%d frames, %d regions, mean similarity %s -> %s\n",
		state, s.FrameCount, s.PlannedFrames, s.TotalRegions, mean, out.JSONPath)
}
