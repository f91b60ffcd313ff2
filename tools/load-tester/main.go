package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/V4T54L/actionlog/internal/adapter/nethttp"
	"github.com/V4T54L/actionlog/internal/adapter/transport"
	"github.com/V4T54L/actionlog/internal/bootstrap"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/pkg/config"
	"github.com/V4T54L/actionlog/internal/usecase"
)

// countingTransport tallies what reaches the collector.
type countingTransport struct {
	next            domain.Transport
	batches, errors atomic.Int64
	events          atomic.Int64
}

func (t *countingTransport) Send(ctx context.Context, events []domain.LogEvent) error {
	if err := t.next.Send(ctx, events); err != nil {
		t.errors.Add(1)
		return err
	}
	t.batches.Add(1)
	t.events.Add(int64(len(events)))
	return nil
}

func main() {
	targetURL := pflag.String("url", "http://localhost:8080"+transport.DefaultPath, "collector batch endpoint")
	probeURL := pflag.String("probe", "", "URL fetched through the instrumented client (default: the collector's /health)")
	concurrency := pflag.IntP("concurrency", "c", 10, "number of simulated clients")
	duration := pflag.DurationP("duration", "d", 30*time.Second, "duration of the load test")
	rps := pflag.Int("rps", 1000, "actions per second across all clients")
	bufferSize := pflag.Int("buffer", 100, "per-client buffer size")
	flushInterval := pflag.Duration("flush", time.Second, "per-client flush interval")
	pflag.Parse()

	if *probeURL == "" {
		u, err := url.Parse(*targetURL)
		if err != nil {
			log.Fatalf("invalid url %q: %v", *targetURL, err)
		}
		u.Path, u.RawQuery = "/health", ""
		*probeURL = u.String()
	}

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Clients: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		LogLevel:         "info",
		AppEnv:           config.EnvProduction,
		FlushInterval:    *flushInterval,
		MaxBufferSize:    *bufferSize,
		UserAgent:        "actionlog-load-tester",
		SessionStore:     "memory",
		AuditCooldown:    usecase.DefaultAuditCooldown,
		AuditSettleDelay: usecase.DefaultAuditSettleDelay,
		AuditReportCap:   usecase.DefaultAuditReportCap,
	}
	counter := &countingTransport{next: transport.NewHTTPTransport(*targetURL, nil, 5*time.Second, quiet)}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100
	var wg sync.WaitGroup
	var actions, probeErrors atomic.Int64

	for i := 0; i < *concurrency; i++ {
		p, err := bootstrap.Build(context.Background(), cfg, counter, nil, quiet)
		if err != nil {
			log.Fatalf("failed to build client %d: %v", i, err)
		}
		p.Logger.SetUserID("load-" + uuid.NewString()[:8])
		client := &http.Client{
			Timeout:   5 * time.Second,
			Transport: nethttp.NewRoundTripper(nil, p.Logger, nethttp.WithSkipPrefix(*targetURL)),
		}

		wg.Add(1)
		go func(workerID int, p *bootstrap.Pipeline) {
			defer wg.Done()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := p.Close(shutdownCtx); err != nil {
					log.Printf("client %d: final flush failed: %v", workerID, err)
				}
			}()

			for n := 0; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				actions.Add(1)
				switch n % 4 {
				case 0:
					p.Logger.LogClick(fmt.Sprintf("button_%d", n%7), map[string]any{"worker": workerID})
				case 1:
					p.Logger.LogRouteChange(p.Logger.Location(), fmt.Sprintf("/page/%d", n%5))
				case 2:
					p.Logger.LogSubmit("checkout_form", map[string]any{"email": "load@example.com", "items": n % 3})
				case 3:
					err := usecase.Do(p.Logger, "probe", func() error {
						resp, err := client.Get(*probeURL)
						if err != nil {
							return err
						}
						defer resp.Body.Close()
						_, _ = io.Copy(io.Discard, resp.Body)
						return nil
					})
					if err != nil {
						probeErrors.Add(1)
					}
				}
			}
		}(i, p)
	}

	wg.Wait()

	log.Println("Load test finished.")
	log.Printf("Actions: %d (%.2f/s)", actions.Load(), float64(actions.Load())/duration.Seconds())
	log.Printf("Events delivered: %d in %d batches", counter.events.Load(), counter.batches.Load())
	log.Printf("Failed flushes: %d", counter.errors.Load())
	log.Printf("Probe errors: %d", probeErrors.Load())
}
