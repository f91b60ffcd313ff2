package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/actionlog/internal/adapter/api/handler"
	"github.com/V4T54L/actionlog/internal/adapter/api/middleware"
	"github.com/V4T54L/actionlog/internal/adapter/transport"
)

// NewRouter creates and configures the HTTP router for the development collector.
func NewRouter(logger *slog.Logger, collectHandler *handler.CollectHandler, broker *handler.SSEBroker) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(transport.DefaultPath, collectHandler)
	if broker != nil {
		mux.Handle("GET /api/analytics/stream", broker)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
