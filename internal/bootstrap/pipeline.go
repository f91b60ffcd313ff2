// Package bootstrap wires the action logging pipeline from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/V4T54L/actionlog/internal/adapter/dom"
	appmetrics "github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/adapter/pii"
	"github.com/V4T54L/actionlog/internal/adapter/repository/memory"
	redisrepo "github.com/V4T54L/actionlog/internal/adapter/repository/redis"
	"github.com/V4T54L/actionlog/internal/adapter/repository/wal"
	"github.com/V4T54L/actionlog/internal/adapter/transport"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/pkg/config"
	"github.com/V4T54L/actionlog/internal/usecase"
)

const redisPingTimeout = 2 * time.Second

// Pipeline is a configured, started Logger and the resources it owns.
type Pipeline struct {
	Logger    *usecase.Logger
	Metrics   *appmetrics.PipelineMetrics
	Transport domain.Transport

	cfg    *config.Config
	redis  *goredis.Client
	logger *slog.Logger
}

// Build creates the Logger described by cfg and starts its flush loop. A nil
// tr posts to cfg.CollectorURL. A nil reg skips metrics.
func Build(ctx context.Context, cfg *config.Config, tr domain.Transport, reg prometheus.Registerer, logger *slog.Logger) (*Pipeline, error) {
	minLevel, err := domain.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, logger: logger}
	if reg != nil {
		p.Metrics = appmetrics.NewPipelineMetrics(reg)
	}
	if tr == nil {
		tr = transport.NewHTTPTransport(cfg.CollectorURL, nil, cfg.TransportTimeout, logger)
	}
	p.Transport = tr

	var redactOpts []pii.Option
	if cfg.PIIScrubNested {
		redactOpts = append(redactOpts, pii.WithNested())
	}
	redactor := pii.NewRedactor(cfg.ExtraRedactionFields(), logger, redactOpts...)

	opts := usecase.Options{
		MinLevel:      minLevel,
		FlushInterval: cfg.FlushInterval,
		MaxBufferSize: cfg.MaxBufferSize,
		Development:   !cfg.IsProduction(),
		UserAgent:     cfg.UserAgent,
		CaptureMemory: cfg.CaptureMemory,
		Sessions:      p.sessionStore(ctx),
		Metrics:       p.Metrics,
	}

	if cfg.OverflowWALDir != "" {
		outbox, err := wal.NewWALRepository(cfg.OverflowWALDir, cfg.WALSegmentSize, cfg.WALMaxDiskSize, logger)
		if err != nil {
			p.closeRedis()
			return nil, fmt.Errorf("failed to open overflow WAL: %w", err)
		}
		opts.Overflow = outbox
	}

	p.Logger = usecase.NewLogger(tr, redactor, opts, logger)
	p.Logger.Start(ctx)
	return p, nil
}

// sessionStore returns the configured store. An unreachable Redis falls back
// to process memory so logging keeps working.
func (p *Pipeline) sessionStore(ctx context.Context) domain.SessionStore {
	if p.cfg.SessionStore != "redis" {
		return memory.NewSessionRepository()
	}

	redisOpts, err := goredis.ParseURL(p.cfg.RedisAddr)
	if err != nil {
		p.logger.Warn("failed to parse redis url, using in-memory sessions", "error", err)
		return memory.NewSessionRepository()
	}
	client := goredis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		p.logger.Warn("could not connect to redis, using in-memory sessions", "error", err)
		client.Close()
		return memory.NewSessionRepository()
	}

	p.redis = client
	return redisrepo.NewSessionRepository(client, p.cfg.SessionKey, p.cfg.SessionTTL, p.logger)
}

// NewAuditor builds an auditor reporting through the pipeline's Logger and
// attached to its route changes.
func (p *Pipeline) NewAuditor(source dom.Source, strategies ...dom.ActionStrategy) *usecase.Auditor {
	a := usecase.NewAuditor(source, dom.NewClassifier(p.logger, strategies...), p.Logger, usecase.AuditorOptions{
		Cooldown:    p.cfg.AuditCooldown,
		SettleDelay: p.cfg.AuditSettleDelay,
		ReportCap:   p.cfg.AuditReportCap,
		Mode:        AuditMode(p.cfg),
		Metrics:     p.Metrics,
	}, p.logger)
	a.AttachTo(p.Logger)
	return a
}

// AuditMode maps APP_ENV to the auditor's escalation mode.
func AuditMode(cfg *config.Config) usecase.AuditMode {
	switch cfg.AppEnv {
	case config.EnvCI:
		return usecase.AuditCI
	case config.EnvProduction:
		return usecase.AuditProduction
	}
	return usecase.AuditDevelopment
}

// Close shuts the Logger down, flushing what is buffered and closing the
// outbox, then releases Redis.
func (p *Pipeline) Close(ctx context.Context) error {
	err := p.Logger.Shutdown(ctx)
	p.closeRedis()
	return err
}

func (p *Pipeline) closeRedis() {
	if p.redis == nil {
		return
	}
	if err := p.redis.Close(); err != nil {
		p.logger.Warn("failed to close redis client", "error", err)
	}
	p.redis = nil
}
