package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/actionlog/internal/adapter/dom"
	appmetrics "github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/pkg/clock"
)

const (
	DefaultAuditCooldown    = 2 * time.Second
	DefaultAuditSettleDelay = 50 * time.Millisecond
	DefaultAuditReportCap   = 10
)

// EventEmitter is the part of Logger the auditor reports through.
type EventEmitter interface {
	Emit(spec domain.EventSpec)
}

// AuditMode selects what happens when dead elements are found.
type AuditMode int

const (
	// AuditProduction only emits events.
	AuditProduction AuditMode = iota
	// AuditDevelopment also logs a warning.
	AuditDevelopment
	// AuditCI makes Scan return a *DeadElementsError.
	AuditCI
)

type AuditorOptions struct {
	Cooldown    time.Duration
	SettleDelay time.Duration
	ReportCap   int
	Mode        AuditMode
	Clock       clock.Clock
	Metrics     *appmetrics.PipelineMetrics
}

// DeadElementsError is returned by Scan in CI mode when the page has dead elements.
type DeadElementsError struct {
	Findings []dom.Finding
	Total    int
}

func (e *DeadElementsError) Error() string {
	if len(e.Findings) == 0 {
		return fmt.Sprintf("found %d dead elements", e.Total)
	}
	return fmt.Sprintf("found %d dead elements, first at %s", e.Total, e.Findings[0].Path)
}

// Auditor scans the page for interactive-looking elements with no action and
// reports them as ui.dead_element events. Scans are throttled to one per
// cooldown window and scheduled a short delay after the triggering render.
type Auditor struct {
	source     dom.Source
	classifier *dom.Classifier
	emitter    EventEmitter
	opts       AuditorOptions
	limiter    *rate.Limiter
	clock      clock.Clock
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending *clock.Timer
	stopped bool
	lastErr error
}

// NewAuditor creates an Auditor. A nil classifier uses dom.DefaultStrategies.
func NewAuditor(source dom.Source, classifier *dom.Classifier, emitter EventEmitter, opts AuditorOptions, logger *slog.Logger) *Auditor {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultAuditCooldown
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultAuditSettleDelay
	}
	if opts.ReportCap <= 0 {
		opts.ReportCap = DefaultAuditReportCap
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if classifier == nil {
		classifier = dom.NewClassifier(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Auditor{
		source:     source,
		classifier: classifier,
		emitter:    emitter,
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Every(opts.Cooldown), 1),
		clock:      opts.Clock,
		logger:     logger.With("component", "dead_element_auditor"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Trigger schedules a scan after the settle delay. It returns false when the
// auditor is stopped, a scan is already scheduled, or the cooldown has not elapsed.
func (a *Auditor) Trigger(reason string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped || a.pending != nil {
		return false
	}
	if !a.limiter.AllowN(a.clock.Now(), 1) {
		a.logger.Debug("scan throttled", "reason", reason)
		return false
	}

	a.pending = a.clock.AfterFunc(a.opts.SettleDelay, func() {
		a.mu.Lock()
		a.pending = nil
		stopped := a.stopped
		a.mu.Unlock()
		if stopped {
			return
		}

		err := a.Scan(a.ctx)
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()
	})
	return true
}

// OnRender is the render-complete hook.
func (a *Auditor) OnRender() { a.Trigger("render") }

// OnRouteChange is the router hook.
func (a *Auditor) OnRouteChange(from, to string) { a.Trigger("route_change") }

// AttachTo schedules a scan after every route change logged by l.
func (a *Auditor) AttachTo(l *Logger) { l.OnRouteChange(a.OnRouteChange) }

// LastError returns the result of the most recent scheduled scan.
func (a *Auditor) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Scan audits the current snapshot immediately, bypassing the throttle.
// Only the first ReportCap findings are emitted. In CI mode findings are
// returned as a *DeadElementsError.
func (a *Auditor) Scan(ctx context.Context) error {
	doc, err := a.source.Snapshot(ctx)
	if err != nil {
		a.scanned("error")
		a.logger.Warn("failed to snapshot document", "error", err)
		return fmt.Errorf("failed to snapshot document: %w", err)
	}

	report := a.classifier.Classify(doc)
	total := len(report.Findings)
	if total == 0 {
		a.scanned("clean")
		return nil
	}
	a.scanned("findings")
	reported := report.Findings
	if len(reported) > a.opts.ReportCap {
		reported = reported[:a.opts.ReportCap]
	}

	for _, f := range reported {
		a.emitter.Emit(domain.EventSpec{
			Type:    domain.EventDeadElement,
			Level:   domain.LevelWarn,
			Message: "dead element " + f.Path,
			Data: map[string]any{
				"path":        f.Path,
				"snippet":     f.Snippet,
				"tag":         f.Tag,
				"reasons":     append([]string(nil), f.Reasons...),
				"total_found": total,
			},
			Component: "dead_element_auditor",
		})
	}
	if a.opts.Metrics != nil {
		a.opts.Metrics.DeadElements.Add(float64(total))
	}

	switch a.opts.Mode {
	case AuditCI:
		return &DeadElementsError{Findings: reported, Total: total}
	case AuditDevelopment:
		a.logger.Warn("found dead elements",
			"total", total,
			"reported", len(reported),
			"first", reported[0].Path,
			"failed", report.Failed,
		)
	}
	return nil
}

func (a *Auditor) scanned(status string) {
	if a.opts.Metrics != nil {
		a.opts.Metrics.AuditScansTotal.WithLabelValues(status).Inc()
	}
}

// Stop cancels any scheduled scan. Later triggers are ignored.
func (a *Auditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	a.cancel()
}
