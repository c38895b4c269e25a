// Package webhook implements the inbound HTTP surface of the pipeline:
// signature verification, event classification, and routing into either
// command handling (direct messages) or the fan-out dispatcher (channel
// messages). The platform sees only coarse statuses: 400 on auth failure,
// 500 on anything else unhandled, 200 otherwise.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hermes/internal/domain"
	"hermes/internal/metrics"
)

const maxBodyBytes = 1 << 20 // 1MB max

// Dispatcher fans a channel message out into translation jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.MessageEvent, workspace string) error
}

// Commander executes a preference command and returns the reply text.
type Commander interface {
	Execute(ctx context.Context, workspace, userID, text string) string
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port            int
	Path            string // webhook URL path (default: /events)
	SigningSecret   string
	MaxTimestampAge time.Duration // 0 disables the freshness check
	BotUserID       string        // the bot's own user id, to skip its echoes
	MetricsEndpoint string        // optional, e.g. /metrics

	Dispatcher Dispatcher
	Commander  Commander
	Gateway    domain.ChatGateway
	Logger     *slog.Logger
}

// Server is the webhook HTTP server.
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger
	server *http.Server
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Path == "" {
		cfg.Path = "/events"
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

// Start begins serving until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleEvent)
	if s.cfg.MetricsEndpoint != "" {
		mux.Handle(s.cfg.MetricsEndpoint, metrics.Collector.Handler())
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "port", s.cfg.Port, "path", s.cfg.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (s *Server) handleEvent(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	metrics.RequestsTotal.Inc()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Authentication short-circuits everything: the body is never parsed
	// before the signature checks out.
	if err := Verify(r.Header, body, s.cfg.SigningSecret, s.cfg.MaxTimestampAge); err != nil {
		metrics.SignatureRejects.Inc()
		s.logger.Error("request signature rejected", "remote", r.RemoteAddr)
		http.Error(rw, "Invalid Request", http.StatusBadRequest)
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		s.handleCommandForm(r.Context(), rw, body)
		return
	}

	cls, err := Classify(body)
	if err != nil {
		s.logger.Error("event classification failed", "err", err)
		http.Error(rw, "Internal Error Occurred", http.StatusInternalServerError)
		return
	}

	// Handshake challenge: echo and stop.
	if cls.Challenge != "" {
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(map[string]string{"challenge": cls.Challenge})
		return
	}

	ev := *cls.Event

	// Skip the bot's own echoes and edited/joined subtypes. Without this
	// the bot's ephemeral replies would re-enter the pipeline.
	if ev.UserID == "" || ev.UserID == s.cfg.BotUserID || ev.SubType != "" {
		rw.WriteHeader(http.StatusOK)
		return
	}

	if ev.IsDirect() {
		s.logger.Info("direct message received", "workspace", cls.Workspace, "user", ev.UserID)
		reply := s.cfg.Commander.Execute(r.Context(), cls.Workspace, ev.UserID, ev.Text)
		if err := s.cfg.Gateway.PostEphemeral(r.Context(), ev.ChannelID, ev.UserID, reply); err != nil {
			s.logger.Error("command reply failed",
				"workspace", cls.Workspace, "channel", ev.ChannelID, "user", ev.UserID, "err", err)
			http.Error(rw, "Internal Error Occurred", http.StatusInternalServerError)
			return
		}
		rw.WriteHeader(http.StatusOK)
		return
	}

	s.logger.Info("channel message received",
		"workspace", cls.Workspace,
		"channel", ev.ChannelID,
		"user", ev.UserID,
		"channel_type", string(ev.ChannelType),
	)

	if err := s.cfg.Dispatcher.Dispatch(r.Context(), ev, cls.Workspace); err != nil {
		s.logger.Error("dispatch failed",
			"workspace", cls.Workspace, "channel", ev.ChannelID, "user", ev.UserID, "err", err)
		http.Error(rw, "Internal Error Occurred", http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusOK)
}

// handleCommandForm serves slash-style command requests, whose bodies are
// URL-encoded flat maps rather than event JSON. The reply goes back in the
// response body.
func (s *Server) handleCommandForm(ctx context.Context, rw http.ResponseWriter, body []byte) {
	form, err := parseFlatForm(body)
	if err != nil {
		s.logger.Error("command form parse failed", "err", err)
		http.Error(rw, "Internal Error Occurred", http.StatusInternalServerError)
		return
	}

	workspace := form["team_id"]
	userID := form["user_id"]
	text := form["text"]
	if workspace == "" || userID == "" {
		s.logger.Error("command form missing identity fields")
		http.Error(rw, "Internal Error Occurred", http.StatusInternalServerError)
		return
	}

	reply := s.cfg.Commander.Execute(ctx, workspace, userID, text)
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{
		"response_type": "ephemeral",
		"text":          reply,
	})
}
