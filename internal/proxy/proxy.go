package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/aiworkshop/edge-gateway/internal/config"
	"github.com/aiworkshop/edge-gateway/internal/ratelimit"
	"github.com/aiworkshop/edge-gateway/internal/utils"
)

// upstreamRequest is the payload forwarded to the completion API, with the
// gateway's defaults resolved.
type upstreamRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Proxy orchestrates rate limiting, validation, and the upstream call.
type Proxy struct {
	cfg      config.UpstreamConfig
	limiter  *ratelimit.Limiter
	client   *http.Client
	encoding *tiktoken.Tiktoken
}

// New creates a completion proxy. The HTTP client timeout is the only bound
// on a hung upstream; expiry surfaces as UnavailableError.
func New(cfg config.UpstreamConfig, limiter *ratelimit.Limiter) *Proxy {
	// Token estimates are telemetry only; if the encoding is unavailable we
	// fall back to a chars/4 heuristic.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn().Err(err).Msg("proxy: token encoding unavailable, estimating by length")
		enc = nil
	}
	return &Proxy{
		cfg:      cfg,
		limiter:  limiter,
		client:   &http.Client{Timeout: cfg.Timeout},
		encoding: enc,
	}
}

// Models returns the configured allow-list, for the health endpoint.
func (p *Proxy) Models() []string { return p.cfg.AllowedModels }

// LimiterMode reports the limiter's operating mode, for the health endpoint.
func (p *Proxy) LimiterMode() string { return p.limiter.Mode() }

// Complete proxies one chat-completion request for the given client identity.
// The returned error is one of ErrNotConfigured, *RateLimitError,
// *ValidationError, or *UnavailableError; upstream responses, success or not,
// come back in the Result with their status and body intact.
func (p *Proxy) Complete(ctx context.Context, identity string, req Request) (*Result, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, ErrNotConfigured{}
	}

	decision := p.limiter.CheckAndConsume(ctx, identity)
	if !decision.Allowed {
		return nil, &RateLimitError{Decision: decision}
	}

	if err := validateMessages(req.Messages); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	if err := ValidateModel(model, p.cfg.AllowedModels); err != nil {
		return nil, err
	}

	upstream := upstreamRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	if req.Temperature != nil {
		upstream.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		upstream.MaxTokens = *req.MaxTokens
	}

	payload, err := json.Marshal(upstream)
	if err != nil {
		return nil, fmt.Errorf("marshal upstream request: %w", err)
	}

	estTokens := p.estimateTokens(req.Messages)

	url := strings.TrimSuffix(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	log.Debug().
		Str("model", model).
		Str("api_key", utils.MaskKey(p.cfg.APIKey)).
		Int("est_prompt_tokens", estTokens).
		Msg("proxy: forwarding completion request")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("proxy: upstream unreachable")
		return nil, &UnavailableError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("body", truncateForLog(body, 500)).
			Msg("proxy: upstream error passed through")
		return &Result{
			StatusCode:            resp.StatusCode,
			Body:                  body,
			Decision:              decision,
			EstimatedPromptTokens: estTokens,
		}, nil
	}

	log.Info().
		Str("model", model).
		Int("status", resp.StatusCode).
		Dur("upstream_latency", time.Since(start)).
		Msg("proxy: completion ok")

	return &Result{
		StatusCode:            resp.StatusCode,
		Body:                  stripChoices(body),
		Decision:              decision,
		EstimatedPromptTokens: estTokens,
	}, nil
}

func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return &ValidationError{Reason: "messages array required"}
	}
	for i, m := range messages {
		if m.Role == "" {
			return &ValidationError{Reason: fmt.Sprintf("messages[%d] missing role", i)}
		}
		if m.Content == "" {
			return &ValidationError{Reason: fmt.Sprintf("messages[%d] missing content", i)}
		}
	}
	return nil
}

func (p *Proxy) estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		if p.encoding != nil {
			total += len(p.encoding.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content) / 4
		}
	}
	return total
}

func truncateForLog(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
