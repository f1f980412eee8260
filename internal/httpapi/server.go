// Package httpapi implements the control-plane router (C7): the REST
// surface of §6 plus the /client-ws streaming endpoint that hands
// connections to the session registry (C6).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vtuberd/control-plane/internal/chatplatform"
	"github.com/vtuberd/control-plane/internal/config"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/scheduler"
	"github.com/vtuberd/control-plane/internal/session"
)

// Server binds the session registry, the autonomous scheduler, and the
// webhook chat source to chi routes.
type Server struct {
	cfg       config.Config
	sessions  *session.Manager
	scheduler *scheduler.Scheduler
	webhook   *chatplatform.WebhookSource
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, sched *scheduler.Scheduler, webhook *chatplatform.WebhookSource, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		scheduler: sched,
		webhook:   webhook,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/client-ws", s.handleClientWS)

	r.Post("/api/expression", s.handleExpression)
	r.Post("/api/motion", s.handleMotion)
	r.Post("/api/autonomous/speak", s.handleAutonomousSpeak)
	r.Post("/api/autonomous/generate", s.handleAutonomousGenerate)
	r.Post("/api/autonomous/control", s.handleAutonomousControl)
	r.Get("/api/autonomous/status", s.handleAutonomousStatus)
	r.Get("/api/backend/state", s.handleBackendState)
	r.Get("/api/diagnostics/stages", s.handleStageDiagnostics)
	r.Post("/api/chat/ingest", s.handleChatIngest)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

// handleClientWS upgrades the connection and hands it to the session
// registry; the registry owns the connection for the rest of its life.
func (s *Server) handleClientWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if _, err := s.sessions.OnConnect(context.Background(), conn); err != nil {
		_ = conn.Close()
		return
	}
}

// resolveClientUID implements §6's precedence: body field wins, then the
// X-Client-UID header, then "default".
func resolveClientUID(r *http.Request, bodyValue string) string {
	if v := strings.TrimSpace(bodyValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Client-UID")); v != "" {
		return v
	}
	return "default"
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
