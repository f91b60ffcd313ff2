package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/V4T54L/actionlog/internal/adapter/metrics"
	"github.com/V4T54L/actionlog/internal/domain"
	"github.com/V4T54L/actionlog/internal/usecase"
)

// CollectUseCase defines the interface for the batch collection use case.
type CollectUseCase interface {
	Collect(ctx context.Context, batch domain.Batch) error
}

// CollectHandler accepts POSTed {"logs": [...]} batches.
type CollectHandler struct {
	useCase  CollectUseCase
	logger   *slog.Logger
	maxBytes int64
	metrics  *metrics.CollectorMetrics
}

// NewCollectHandler creates a new CollectHandler. m may be nil.
func NewCollectHandler(uc CollectUseCase, logger *slog.Logger, maxBytes int64, m *metrics.CollectorMetrics) *CollectHandler {
	return &CollectHandler{
		useCase:  uc,
		logger:   logger.With("component", "collect_handler"),
		maxBytes: maxBytes,
		metrics:  m,
	}
}

func (h *CollectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		h.count("error_media_type")
		http.Error(w, "Unsupported Media Type: "+r.Header.Get("Content-Type"), http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.count("error_size")
			http.Error(w, "Payload Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		h.count("error_parse")
		http.Error(w, "Bad Request: Failed to read body", http.StatusBadRequest)
		return
	}
	if h.metrics != nil {
		h.metrics.BytesTotal.Add(float64(len(body)))
	}

	var batch domain.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		h.count("error_parse")
		h.logger.Warn("failed to decode batch", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, "Bad Request: Failed to decode JSON", http.StatusBadRequest)
		return
	}

	if err := h.useCase.Collect(r.Context(), batch); err != nil {
		if errors.Is(err, usecase.ErrInvalidEvent) {
			h.count("error_invalid")
			h.logger.Warn("rejected batch", "error", err, "count", len(batch.Logs))
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		h.count("error_sink")
		h.logger.Error("failed to collect batch", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.count("accepted")
	w.WriteHeader(http.StatusAccepted)
}

func (h *CollectHandler) count(status string) {
	if h.metrics != nil {
		h.metrics.BatchesTotal.WithLabelValues(status).Inc()
	}
}
