package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RequestEvent is one line of the request telemetry log.
type RequestEvent struct {
	RequestID       string    `json:"request_id"`
	Timestamp       time.Time `json:"timestamp"`
	Method          string    `json:"method"`
	Path            string    `json:"path"`
	ClientIP        string    `json:"client_ip"`
	Model           string    `json:"model,omitempty"`
	StatusCode      int       `json:"status_code"`
	EstimatedTokens int       `json:"estimated_tokens,omitempty"`
	MinuteCount     int64     `json:"minute_count,omitempty"`
	DayCount        int64     `json:"day_count,omitempty"`
	LatencyMs       int64     `json:"latency_ms"`
	Error           string    `json:"error,omitempty"`
}

// Tracker appends request events to a JSONL file, one JSON object per line.
// A zero path disables recording entirely.
type Tracker struct {
	path string
	mu   sync.Mutex
}

// NewTracker creates the telemetry tracker, ensuring the log directory
// exists.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path}
	if path == "" {
		return t, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	return t, nil
}

// Enabled reports whether events are being written.
func (t *Tracker) Enabled() bool { return t.path != "" }

// RecordRequest appends one event. Failures are logged, never propagated:
// telemetry must not affect the request path.
func (t *Tracker) RecordRequest(event *RequestEvent) {
	if t.path == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		log.Error().Err(err).Str("path", t.path).Msg("telemetry: failed to open log")
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		log.Error().Err(err).Str("path", t.path).Msg("telemetry: failed to write event")
	}
}
