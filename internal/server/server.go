// Package server exposes the HTTP surface: the inbound activity webhook,
// the reverse-index resync trigger, health and metrics.
package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/observability"
	"solana-wallet-notifier/internal/registry"
)

// MaxBodyBytes caps the webhook request body.
const MaxBodyBytes = 10 << 20

// BatchProcessor handles one webhook batch of activity events.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []*domain.ActivityEvent) (int, error)
}

// Resyncer rebuilds the reverse indexes from scratch.
type Resyncer interface {
	FullResync(ctx context.Context) (*registry.ResyncResult, error)
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	secret    string
	processor BatchProcessor
	resyncer  Resyncer
	logger    *log.Logger
}

// New creates a Server. secret gates both the webhook and resync endpoints.
func New(secret string, processor BatchProcessor, resyncer Resyncer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		secret:    secret,
		processor: processor,
		resyncer:  resyncer,
		logger:    logger,
	}
}

// Routes returns the HTTP mux with all endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/resync", s.handleResync)

	return mux
}

// authorized checks the shared secret against the Authorization header.
// Both the raw secret and a "Bearer <secret>" form are accepted.
func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if header == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(s.secret)) == 1 {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+s.secret)) == 1
}

// handleWebhook ingests one webhook delivery: a single activity event or
// an array of them. Only auth failures produce a non-2xx status. Anything
// else that goes wrong is reported as a skip inside a 200 response, since
// a non-2xx here risks the upstream provider disabling the subscription.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"error":   "method not allowed",
		})
		return
	}

	observability.DefaultMetrics.WebhookBatchesReceived.Inc()

	if !s.authorized(r) {
		observability.DefaultMetrics.WebhookAuthFailures.Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "unauthorized",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		s.skip(w, "read body: "+err.Error())
		return
	}

	events, err := parseEvents(body)
	if err != nil {
		s.skip(w, "malformed payload")
		return
	}

	processed, err := s.processor.ProcessBatch(r.Context(), events)
	if err != nil {
		s.skip(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": processed,
	})
}

// skip reports a processing failure as a successful no-op.
func (s *Server) skip(w http.ResponseWriter, reason string) {
	s.logger.Printf("[server] webhook skipped: %s", reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"skipped": reason,
	})
}

// handleResync triggers a full reverse-index rebuild. Unlike the webhook,
// storage failures here are surfaced as hard errors.
func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"error":   "method not allowed",
		})
		return
	}

	if !s.authorized(r) {
		observability.DefaultMetrics.WebhookAuthFailures.Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "unauthorized",
		})
		return
	}

	result, err := s.resyncer.FullResync(r.Context())
	if err != nil {
		s.logger.Printf("[server] resync failed: %v", err)
		observability.RecordResyncRun("error", 0)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	observability.RecordResyncRun("success", result.WalletsMonitored)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"webhookId":        result.WebhookID,
		"walletsMonitored": result.WalletsMonitored,
	})
}

// parseEvents accepts either a single event object or an array of them.
func parseEvents(body []byte) ([]*domain.ActivityEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []*domain.ActivityEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var event domain.ActivityEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return []*domain.ActivityEvent{&event}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
