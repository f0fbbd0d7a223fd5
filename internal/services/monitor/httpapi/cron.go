package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/auth"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/services/monitor"
	"github.com/NordCoder/Uptimer/internal/services/monitor/incidents"
	"github.com/NordCoder/Uptimer/internal/services/monitor/schedule"
)

const (
	SourceSignature = "qstash"
	SourceBearer    = "bearer"
	sourceNone      = ""
)

type triggerResponse struct {
	monitor.Summary
	RequestID string `json:"requestId"`
	Duration  string `json:"duration"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	reqID := newRequestID("cron", start)
	log := obs.WithTrace(r.Context(), s.Log).With(zap.String("request_id", reqID))

	if r.Method == http.MethodGet && r.URL.Query().Get("health") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": start.UTC().Format(time.RFC3339Nano),
			"requestId": reqID,
		})
		return
	}

	source := s.authenticate(r)
	if source == sourceNone {
		log.Warn("unauthorized trigger", zap.String("method", r.Method))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized", "requestId": reqID})
		return
	}

	log.Info("starting monitor checks", zap.String("source", source))
	sum, err := s.Passes.RunPass(r.Context())
	if err != nil {
		log.Error("dispatch pass", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "requestId": reqID})
		return
	}

	end := s.now()
	writeJSON(w, http.StatusOK, triggerResponse{
		Summary:   sum,
		RequestID: reqID,
		Duration:  strconv.FormatInt(end.Sub(start).Milliseconds(), 10) + "ms",
		Source:    source,
		Timestamp: end.UTC().Format(time.RFC3339Nano),
	})
}

// authenticate prefers the signature header on POST. A present but invalid
// signature is not retried as a bearer token.
func (s *Server) authenticate(r *http.Request) string {
	if r.Method == http.MethodPost && r.Header.Get(auth.SignatureHeader) != "" {
		if s.verifySignature(r) {
			return SourceSignature
		}
		return sourceNone
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && h[:7] == "Bearer " && auth.SecureCompare(h[7:], s.Cfg.CronSecret) {
		return SourceBearer
	}
	return sourceNone
}

// verifySignature consumes the body and puts it back for later readers.
func (s *Server) verifySignature(r *http.Request) bool {
	if s.Signature == nil {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	url := schedule.DestinationURL(s.Cfg.SiteURL, r.URL.Path)
	if _, err := s.Signature.Verify(r.Header.Get(auth.SignatureHeader), body, url); err != nil {
		obs.WithTrace(r.Context(), s.Log).Debug("signature rejected", zap.Error(err))
		return false
	}
	return true
}

func headerOr(r *http.Request, name, def string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return def
}

func (s *Server) handleFailureCallback(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	reqID := newRequestID("failure", now)
	log := obs.WithTrace(r.Context(), s.Log).With(zap.String("request_id", reqID))

	if r.Header.Get(auth.SignatureHeader) == "" || !s.verifySignature(r) {
		writeJSON(w, http.StatusUnauthorized, errorBody("Unauthorized"))
		return
	}

	rep := incidents.FailureReport{
		URL:       headerOr(r, "Upstash-Failed-Url", "unknown"),
		Status:    headerOr(r, "Upstash-Failed-Status", "unknown"),
		Message:   r.Header.Get("Upstash-Failed-Message"),
		MessageID: r.Header.Get("Upstash-Message-Id"),
		Retried:   headerOr(r, "Upstash-Retried", "0"),
	}
	log.Error("scheduler failure callback",
		zap.String("failed_url", rep.URL), zap.String("failed_status", rep.Status),
		zap.String("failed_message", rep.Message), zap.String("message_id", rep.MessageID),
		zap.String("retried", rep.Retried))

	if err := s.Failures.RecordSchedulerFailure(r.Context(), rep, now); err != nil {
		log.Warn("failed to log incident", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Failure logged", "requestId": reqID})
}

func (s *Server) handleFailureHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"endpoint":  "failure-callback",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}
