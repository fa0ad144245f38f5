// Package httpapi is Eidetic's inbound transport: a chi router accepting
// transcript webhooks and exposing a per-project server-sent-events stream,
// grounded on the teacher's cmd/chrc/main.go chi wiring and
// horos47/core/chassis.NewServer's middleware stack.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/eidetic/internal/adapter"
	"github.com/hazyhaar/eidetic/internal/eventbus"
	"github.com/hazyhaar/eidetic/internal/pipeline"
)

// ErrUnknownProject is returned when a route references a project id with
// no subscribable event topic yet — the topic is created lazily on first
// Subscribe, so this only fires for malformed/empty ids.
var ErrUnknownProject = errors.New("httpapi: unknown project")

// Server wires the webhook and event-stream routes onto a chi.Mux.
type Server struct {
	receiver *adapter.WebhookReceiver
	pipeline *pipeline.Pipeline
	events   *eventbus.Bus
	logger   *slog.Logger
	router   *chi.Mux
}

// New builds a Server and registers its routes. receiver, pl, and events
// must all be non-nil.
func New(receiver *adapter.WebhookReceiver, pl *pipeline.Pipeline, events *eventbus.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{receiver: receiver, pipeline: pl, events: events, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhooks/transcripts", s.handleWebhook)
	r.Get("/projects/{id}/events", s.handleEvents)

	s.router = r
	return s
}

// Router returns the underlying http.Handler, ready to pass to http.Server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := s.receiver.Receive(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Ack immediately; ingestion happens in the background (spec.md §6:
	// "validates, enqueues, and returns immediately").
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})

	// The request context is cancelled once this handler returns, so the
	// background ingest keeps its values but not its cancellation.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		_, err := s.pipeline.Ingest(ctx, payload.ProjectID, payload.ConversationID, payload.Transcript, payload.Language)
		if err != nil {
			s.logger.Error("ingest failed", "project_id", payload.ProjectID, "conversation_id", payload.ConversationID, "error", err)
		}
	}()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, ErrUnknownProject)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("httpapi: streaming unsupported"))
		return
	}

	ch, unsubscribe := s.events.Subscribe(projectID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("marshal event", "project_id", projectID, "error", err)
				continue
			}
			if _, err := w.Write([]byte("event: " + string(event.Kind) + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
