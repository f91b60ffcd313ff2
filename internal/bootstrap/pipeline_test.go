package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/actionlog/internal/adapter/dom"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/domain/mocks"
	"github.com/V4T54L/actionlog/internal/pkg/config"
	"github.com/V4T54L/actionlog/internal/usecase"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:         "info",
		AppEnv:           config.EnvProduction,
		FlushInterval:    time.Hour,
		MaxBufferSize:    100,
		UserAgent:        "bootstrap-test",
		AuditCooldown:    time.Second,
		AuditSettleDelay: time.Millisecond,
		AuditReportCap:   10,
		SessionStore:     "memory",
	}
}

func TestBuild_EmitsThroughTransport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	cfg.PIIScrubNested = true
	cfg.OverflowWALDir = t.TempDir()
	cfg.WALSegmentSize = 1 << 20
	cfg.WALMaxDiskSize = 8 << 20

	tr := &mocks.MockTransport{}
	p, err := Build(context.Background(), cfg, tr, prometheus.NewRegistry(), logger)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Metrics == nil {
		t.Fatal("expected metrics with a registry")
	}

	p.Logger.LogClick("save", map[string]any{"form": map[string]any{"password": "hunter2"}})
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := tr.AllEvents()
	if len(events) != 1 || events[0].Type != domain.EventClick {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Context.UserAgent != "bootstrap-test" {
		t.Errorf("unexpected user agent %q", events[0].Context.UserAgent)
	}
	form, _ := events[0].Data["form"].(map[string]any)
	if form["password"] != "[REDACTED]" {
		t.Errorf("expected nested password to be redacted, got %v", events[0].Data)
	}
}

func TestBuild_InvalidLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "loud"
	if _, err := Build(context.Background(), cfg, &mocks.MockTransport{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestBuild_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.SessionStore = "redis"
	cfg.RedisAddr = "redis://127.0.0.1:1/0"

	p, err := Build(context.Background(), cfg, &mocks.MockTransport{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close(context.Background())

	if p.redis != nil {
		t.Error("expected no redis client after a failed ping")
	}
	if p.Logger.SessionID() == "" {
		t.Error("expected an in-memory session id")
	}
}

func TestAuditMode(t *testing.T) {
	tests := []struct {
		env  string
		want usecase.AuditMode
	}{
		{config.EnvCI, usecase.AuditCI},
		{config.EnvProduction, usecase.AuditProduction},
		{config.EnvDevelopment, usecase.AuditDevelopment},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := AuditMode(&config.Config{AppEnv: tt.env}); got != tt.want {
				t.Errorf("AuditMode(%q) = %v, want %v", tt.env, got, tt.want)
			}
		})
	}
}

func TestPipeline_NewAuditorInCI(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = config.EnvCI

	tr := &mocks.MockTransport{}
	p, err := Build(context.Background(), cfg, tr, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	doc, err := dom.ParseString(`<html><body><div style="cursor: pointer">Buy</div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	a := p.NewAuditor(dom.StaticSource(doc))
	defer a.Stop()

	var dead *usecase.DeadElementsError
	if err := a.Scan(context.Background()); !errors.As(err, &dead) || dead.Total != 1 {
		t.Fatalf("expected one dead element, got %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	events := tr.AllEvents()
	if len(events) != 1 || events[0].Type != domain.EventDeadElement {
		t.Errorf("unexpected events %+v", events)
	}
}
