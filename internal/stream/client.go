package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nilabh-astrophysics/satellite-tracker1/internal/metrics"
)

// writeDeadline bounds each individual SSE write. The connection itself is
// unbounded; only a stalled client gets disconnected.
const writeDeadline = 30 * time.Second

// conn wraps one SSE subscriber. All writes funnel through push so the
// deadline, flush, and byte accounting stay in one place.
type conn struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// emit marshals v and sends it as one SSE data message.
func (c *conn) emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.emitRaw(data)
}

// emitRaw sends already-marshalled bytes as one SSE data message.
func (c *conn) emitRaw(data []byte) error {
	n, err := c.push("data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(n)
	return nil
}

// comment sends an SSE comment line so proxies and the client keep the
// idle connection open.
func (c *conn) comment() error {
	n, err := c.push(":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	metrics.AddStreamBytes(n)
	return nil
}

func (c *conn) push(format string, args ...any) (int64, error) {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := fmt.Fprintf(c.w, format, args...)
	if err != nil {
		return 0, err
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	return int64(n), nil
}
