// Package gateway wires the HTTP surface of the edge gateway.
//
// DESIGN: Request flow:
//   - handleLLM():      chat-completion proxy with distributed rate limiting
//   - handleFeedback(): anti-abuse gated intake into the pending queue
//   - handlePull()/handleAck(): passphrase-gated queue drain
//
// Handlers are stateless; all shared state lives in the key-value store, so
// any number of gateway instances can run against the same store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/aiworkshop/edge-gateway/internal/config"
	"github.com/aiworkshop/edge-gateway/internal/feedback"
	"github.com/aiworkshop/edge-gateway/internal/monitoring"
	"github.com/aiworkshop/edge-gateway/internal/proxy"
	"github.com/aiworkshop/edge-gateway/internal/ratelimit"
	"github.com/aiworkshop/edge-gateway/internal/store"
)

// Gateway owns the HTTP server and the request-handling components.
type Gateway struct {
	cfg     *config.Config
	store   store.Store
	proxy   *proxy.Proxy
	intake  *feedback.Intake
	queue   *feedback.Queue
	llmRL   *ratelimit.Limiter
	fbRL    *ratelimit.Limiter
	metrics *monitoring.Metrics
	tracker *monitoring.Tracker
	server  *http.Server
}

// New builds the gateway and all of its components from configuration.
// The store may be nil, in which case rate limiting is disabled and
// feedback intake fails with a store error.
func New(cfg *config.Config, s store.Store) (*Gateway, error) {
	tracker, err := monitoring.NewTracker(cfg.Monitoring.TelemetryPath)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	llmRL := ratelimit.New(s, "rl:llm", cfg.RateLimit.PerMinute, cfg.RateLimit.PerDay)
	fbRL := ratelimit.New(s, "rl:feedback", cfg.Feedback.PerMinute, 0)

	g := &Gateway{
		cfg:     cfg,
		store:   s,
		proxy:   proxy.New(cfg.Upstream, llmRL),
		intake:  feedback.NewIntake(s, fbRL, cfg.Feedback.Passphrase, cfg.Feedback.MinDwell, cfg.Feedback.RecordTTL),
		queue:   feedback.NewQueue(s, cfg.Feedback.Passphrase, cfg.Feedback.RecordTTL),
		llmRL:   llmRL,
		fbRL:    fbRL,
		metrics: monitoring.NewMetrics("edge_gateway"),
		tracker: tracker,
	}
	g.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      g.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return g, nil
}

// Handler returns the full route table wrapped in the CORS middleware.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/llm", g.handleLLM)
	mux.HandleFunc("/feedback", g.handleFeedback)
	mux.HandleFunc("/feedback/pull", g.handlePull)
	mux.HandleFunc("/feedback/ack", g.handleAck)
	mux.HandleFunc("/metrics", g.handleMetrics)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "not found", http.StatusNotFound)
	})
	return withCORS(mux)
}

// Start runs the HTTP server until Shutdown is called.
func (g *Gateway) Start() error {
	log.Info().
		Int("port", g.cfg.Server.Port).
		Str("rate_limiter", g.llmRL.Mode()).
		Bool("telemetry", g.tracker.Enabled()).
		Msg("gateway: listening")

	err := g.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and joins pending counter writes.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.server.Shutdown(ctx)
	g.llmRL.Flush()
	g.fbRL.Flush()
	return err
}
