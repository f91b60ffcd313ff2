// Command deadaudit scans HTML files for elements that look interactive but
// have no action attached, and reports them as ui.dead_element events.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/net/html"

	"github.com/V4T54L/actionlog/internal/adapter/dom"
	"github.com/V4T54L/actionlog/internal/adapter/transport"
	"github.com/V4T54L/actionlog/internal/bootstrap"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/pkg/config"
	"github.com/V4T54L/actionlog/internal/pkg/logger"
	"github.com/V4T54L/actionlog/internal/usecase"
)

func main() {
	ci := pflag.Bool("ci", false, "fail with exit status 1 when dead elements are found")
	reportCap := pflag.Int("report-cap", 0, "maximum findings reported per file (default AUDIT_REPORT_CAP)")
	collector := pflag.String("collector", "", "collector URL to post events to; events go to stdout as NDJSON when empty")
	handlers := pflag.StringSlice("handler", nil, "element ids with a registered handler, repeatable")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file.html...\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *ci {
		cfg.AppEnv = config.EnvCI
	}
	if *reportCap > 0 {
		cfg.AuditReportCap = *reportCap
	}

	logger := logger.NewForEnv(cfg.LogLevel, cfg.IsProduction())
	slog.SetDefault(logger)

	var tr domain.Transport
	if *collector != "" {
		cfg.CollectorURL = *collector
	} else {
		tr = transport.NewWriterTransport(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := bootstrap.Build(ctx, cfg, tr, nil, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	var current dom.Source
	source := dom.SnapshotFunc(func(ctx context.Context) (*html.Node, error) {
		return current.Snapshot(ctx)
	})
	strategies := dom.DefaultStrategies()
	if len(*handlers) > 0 {
		strategies = append(strategies, dom.NewRegistryStrategy(*handlers...))
	}
	auditor := p.NewAuditor(source, strategies...)

	// broken marks a file or flush that could not be processed.
	failed, broken := false, false
	for _, path := range pflag.Args() {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		current = dom.FileSource(path)
		p.Logger.SetLocation("file://" + filepath.ToSlash(abs))

		err = auditor.Scan(ctx)
		var dead *usecase.DeadElementsError
		switch {
		case errors.As(err, &dead):
			failed = true
			logger.Error("dead elements found", "file", path, "total", dead.Total, "first", dead.Findings[0].Path)
		case err != nil:
			broken = true
			logger.Error("failed to audit file", "file", path, "error", err)
		default:
			logger.Info("audited file", "file", path)
		}
	}
	auditor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Close(shutdownCtx); err != nil {
		logger.Error("failed to flush events", "error", err)
		broken = true
	}

	if broken || (failed && bootstrap.AuditMode(cfg) == usecase.AuditCI) {
		os.Exit(1)
	}
}
