package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/V4T54L/actionlog/internal/domain"
)

// WriterTransport writes each event as one JSON line to w. It backs the
// collector's NDJSON sink and offline runs of the CLI tools.
type WriterTransport struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w, enc: json.NewEncoder(w)}
}

// Send implements domain.Transport.
func (t *WriterTransport) Send(ctx context.Context, events []domain.LogEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("failed to write event %s: %w", events[i].ID, err)
		}
	}
	return nil
}
