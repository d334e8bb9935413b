package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aiworkshop/edge-gateway/internal/config"
	"github.com/aiworkshop/edge-gateway/internal/feedback"
	"github.com/aiworkshop/edge-gateway/internal/monitoring"
	"github.com/aiworkshop/edge-gateway/internal/proxy"
	"github.com/aiworkshop/edge-gateway/internal/ratelimit"
	"github.com/aiworkshop/edge-gateway/internal/utils"
)

// clientIP resolves the caller identity used for rate limiting.
func clientIP(r *http.Request) string {
	return utils.ClientIP(r.Header.Get("X-Forwarded-For"), r.Header.Get("X-Real-IP"), r.RemoteAddr)
}

// requestID honors a caller-supplied correlation id, else generates one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// observe records one completed request into metrics and the telemetry log.
func (g *Gateway) observe(r *http.Request, reqID, route string, status int, start time.Time, model string, estTokens int, d ratelimit.Decision, errMsg string) {
	elapsed := time.Since(start)
	g.metrics.ObserveRequest(route, strconv.Itoa(status), elapsed.Seconds())
	g.tracker.RecordRequest(&monitoring.RequestEvent{
		RequestID:       reqID,
		Timestamp:       start.UTC(),
		Method:          r.Method,
		Path:            r.URL.Path,
		ClientIP:        clientIP(r),
		Model:           model,
		StatusCode:      status,
		EstimatedTokens: estTokens,
		MinuteCount:     d.MinuteCount,
		DayCount:        d.DayCount,
		LatencyMs:       elapsed.Milliseconds(),
		Error:           errMsg,
	})
}

// handleHealth reports service status, the model allow-list, and the
// limiter mode. The store is probed with a throwaway write.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]any{
		"status":       "ok",
		"time":         time.Now().UTC().Format(time.RFC3339),
		"models":       g.proxy.Models(),
		"rate_limiter": g.proxy.LimiterMode(),
		"store":        "ok",
	}

	if g.store == nil {
		health["store"] = "unconfigured"
	} else if err := g.store.Put(r.Context(), "_health_", "ok", time.Minute); err != nil {
		health["status"] = "degraded"
		health["store"] = "unreachable"
	} else {
		_ = g.store.Delete(r.Context(), "_health_")
	}

	status := http.StatusOK
	if health["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleLLM proxies one chat-completion request.
func (g *Gateway) handleLLM(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)

	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
	var req proxy.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.observe(r, reqID, "llm", http.StatusBadRequest, start, "", 0, ratelimit.Decision{}, "invalid body")
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = g.cfg.Upstream.DefaultModel
	}

	res, err := g.proxy.Complete(r.Context(), clientIP(r), req)
	if err != nil {
		g.writeLLMError(w, r, reqID, start, model, err)
		return
	}

	g.setRateLimitHeaders(w, res.Decision)
	w.Header().Set("X-Response-Time", fmt.Sprintf("%dms", time.Since(start).Milliseconds()))
	if res.StatusCode >= 400 {
		g.metrics.IncUpstreamError()
	}

	g.observe(r, reqID, "llm", res.StatusCode, start, model, res.EstimatedPromptTokens, res.Decision, "")

	// Upstream status and body pass through verbatim.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.StatusCode)
	_, _ = w.Write(res.Body)
}

// writeLLMError maps proxy error types onto the response envelope.
func (g *Gateway) writeLLMError(w http.ResponseWriter, r *http.Request, reqID string, start time.Time, model string, err error) {
	var (
		rle *proxy.RateLimitError
		ve  *proxy.ValidationError
		ue  *proxy.UnavailableError
	)
	switch {
	case errors.Is(err, proxy.ErrNotConfigured{}):
		g.observe(r, reqID, "llm", http.StatusInternalServerError, start, model, 0, ratelimit.Decision{}, "not configured")
		writeError(w, "LLM service is not configured", http.StatusInternalServerError)
	case errors.As(err, &rle):
		g.metrics.IncRateLimited("llm")
		g.setRateLimitHeaders(w, rle.Decision)
		w.Header().Set("Retry-After", strconv.Itoa(rle.Decision.RetryAfter))
		g.observe(r, reqID, "llm", http.StatusTooManyRequests, start, model, 0, rle.Decision, rle.Decision.Reason)
		writeError(w, "Rate limit exceeded. "+rle.Decision.Reason+".", http.StatusTooManyRequests)
	case errors.As(err, &ve):
		g.observe(r, reqID, "llm", http.StatusBadRequest, start, model, 0, ratelimit.Decision{}, ve.Reason)
		writeError(w, ve.Reason, http.StatusBadRequest)
	case errors.As(err, &ue):
		g.metrics.IncUpstreamError()
		g.observe(r, reqID, "llm", http.StatusBadGateway, start, model, 0, ratelimit.Decision{}, err.Error())
		writeError(w, "upstream service temporarily unavailable", http.StatusBadGateway)
	default:
		log.Error().Err(err).Str("request_id", reqID).Msg("llm: unexpected error")
		g.observe(r, reqID, "llm", http.StatusInternalServerError, start, model, 0, ratelimit.Decision{}, err.Error())
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func (g *Gateway) setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	limits := g.cfg.RateLimit
	w.Header().Set("X-RateLimit-Limit-Minute", strconv.Itoa(limits.PerMinute))
	w.Header().Set("X-RateLimit-Remaining-Minute", strconv.FormatInt(remaining(int64(limits.PerMinute), d.MinuteCount), 10))
	w.Header().Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
	w.Header().Set("X-RateLimit-Remaining-Day", strconv.FormatInt(remaining(int64(limits.PerDay), d.DayCount), 10))
}

func remaining(limit, count int64) int64 {
	if count >= limit {
		return 0
	}
	return limit - count
}

// feedbackRequest is the wire shape of a feedback submission.
type feedbackRequest struct {
	Message      string  `json:"message"`
	FeedbackType string  `json:"feedback_type"`
	PageURL      string  `json:"page_url"`
	Passphrase   string  `json:"passphrase"`
	Honeypot     string  `json:"honeypot"`
	OpenedAt     float64 `json:"opened_at"`
}

// handleFeedback runs a submission through the intake gates.
func (g *Gateway) handleFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)

	if r.Method != http.MethodPost {
		writeFeedbackError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.observe(r, reqID, "feedback", http.StatusBadRequest, start, "", 0, ratelimit.Decision{}, "invalid body")
		writeFeedbackError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acc, err := g.intake.Submit(r.Context(), feedback.Submission{
		Identity:     clientIP(r),
		Message:      req.Message,
		FeedbackType: req.FeedbackType,
		PageURL:      req.PageURL,
		Passphrase:   req.Passphrase,
		Honeypot:     req.Honeypot,
		OpenedAtMs:   req.OpenedAt,
	})
	if err != nil {
		var rej *feedback.Rejection
		if errors.As(err, &rej) {
			g.metrics.IncFeedbackRejected(rej.Gate)
			if rej.Gate == "rate_limit" {
				g.metrics.IncRateLimited("feedback")
				w.Header().Set("Retry-After", strconv.Itoa(rej.RetryAfter))
			}
			g.observe(r, reqID, "feedback", rej.Status, start, "", 0, ratelimit.Decision{}, rej.Gate)
			writeFeedbackError(w, rej.Reason, rej.Status)
			return
		}
		// Store failure on a valid submission, distinct from a rejection.
		log.Error().Err(err).Str("request_id", reqID).Msg("feedback: store failure")
		g.observe(r, reqID, "feedback", http.StatusInternalServerError, start, "", 0, ratelimit.Decision{}, err.Error())
		writeFeedbackError(w, "Failed to save feedback. Please try again.", http.StatusInternalServerError)
		return
	}

	g.observe(r, reqID, "feedback", http.StatusOK, start, "", 0, ratelimit.Decision{}, "")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"id":           acc.ID,
		"message":      acc.Message,
		"pii_redacted": len(acc.RedactedCategories) > 0,
	})
}

// handlePull lists pending feedback for the passphrase holder.
func (g *Gateway) handlePull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFeedbackError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items, err := g.queue.Pull(r.Context(), r.URL.Query().Get("passphrase"))
	if err != nil {
		var rej *feedback.Rejection
		if errors.As(err, &rej) {
			writeFeedbackError(w, rej.Reason, rej.Status)
			return
		}
		log.Error().Err(err).Msg("feedback: pull failed")
		writeFeedbackError(w, "Failed to read feedback queue.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"items":   items,
	})
}

// ackRequest is the wire shape of an acknowledgement batch.
type ackRequest struct {
	Passphrase string   `json:"passphrase"`
	Keys       []string `json:"keys"`
}

// handleAck transitions pending records to the acked namespace.
func (g *Gateway) handleAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFeedbackError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFeedbackError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Keys) == 0 {
		writeFeedbackError(w, "keys required", http.StatusBadRequest)
		return
	}

	acked, err := g.queue.Acknowledge(r.Context(), req.Passphrase, req.Keys)
	if err != nil {
		var rej *feedback.Rejection
		if errors.As(err, &rej) {
			writeFeedbackError(w, rej.Reason, rej.Status)
			return
		}
		log.Error().Err(err).Msg("feedback: ack failed")
		writeFeedbackError(w, "Failed to acknowledge feedback.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"acked_count": len(acked),
		"acked":       acked,
	})
}

// handleMetrics serves the Prometheus scrape endpoint.
// Restricted to localhost to keep operational metrics off the public surface.
func (g *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		writeError(w, "forbidden", http.StatusForbidden)
		return
	}
	g.metrics.Handler().ServeHTTP(w, r)
}
