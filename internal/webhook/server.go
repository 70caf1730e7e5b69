// ABOUTME: HTTP endpoint receiving Gitea webhooks and dispatching room notifications
// ABOUTME: Validates requests synchronously, then delivers via detached tracked tasks

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"maunium.net/go/mautrix/id"

	"github.com/2389/gitea-matrix/internal/event"
)

// Notifier delivers a formatted notification to a Matrix room.
// Implemented by the bot.
type Notifier interface {
	SendNotification(ctx context.Context, roomID id.RoomID, text string) error
}

// Membership is the read-only room membership check consulted before a
// delivery target is accepted.
type Membership interface {
	Contains(roomID id.RoomID) bool
}

// Config holds the webhook server settings.
type Config struct {
	ListenAddr      string
	Path            string
	Secret          string
	ShutdownTimeout time.Duration
}

// Server is the webhook ingestion endpoint. Requests are validated
// synchronously; accepted bodies are handed to detached tasks so the HTTP
// response never waits on Matrix.
type Server struct {
	cfg        Config
	membership Membership
	notifier   Notifier
	logger     *slog.Logger

	httpServer *http.Server
	tasks      *taskRegistry

	// taskCtx is the parent context for delivery tasks; canceled after the
	// bounded shutdown wait expires.
	taskCtx    context.Context
	taskCancel context.CancelFunc
}

// NewServer creates a webhook server. Path defaults to /webhook and
// ShutdownTimeout to one second.
func NewServer(cfg Config, membership Membership, notifier Notifier, logger *slog.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = time.Second
	}

	s := &Server{
		cfg:        cfg,
		membership: membership,
		notifier:   notifier,
		logger:     logger.With("component", "webhook"),
		tasks:      newTaskRegistry(),
	}
	s.taskCtx, s.taskCancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleWebhook)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the listener and blocks until the context is canceled or the
// server fails. On cancellation it shuts down gracefully, waiting up to
// ShutdownTimeout for in-flight deliveries.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "addr", s.cfg.ListenAddr, "path", s.cfg.Path)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("webhook server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down webhook server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the listener and waits for in-flight delivery tasks until
// the context expires. Outstanding tasks past the deadline are abandoned,
// not treated as fatal.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if waitErr := s.tasks.wait(ctx); waitErr != nil {
		s.logger.Warn("abandoning in-flight webhook tasks", "count", s.tasks.count())
	}
	s.taskCancel()

	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("webhook shutdown: %w", err)
	}
	return nil
}

// handleWebhook validates an inbound hook request and hands the body off to
// a background delivery task, replying 202 immediately.
//
// The status codes follow the historical contract exactly: a missing event
// header is 400 while missing delivery or signature headers are 401, even
// though nothing about them is authentication. Kept as-is so existing hook
// configurations keep seeing the responses they were written against.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	eventType := r.Header.Get("X-Gitea-Event")
	if eventType == "" {
		writeText(w, http.StatusBadRequest, "400: Bad request\nEvent type not specified\n")
		return
	}
	if r.Header.Get("X-Gitea-Delivery") == "" {
		writeText(w, http.StatusUnauthorized, "400: Bad request\nMissing delivery token header\n")
		return
	}
	signature := r.Header.Get("X-Gitea-Signature")
	if signature == "" {
		writeText(w, http.StatusUnauthorized, "400: Bad request\nMissing signature header\n")
		return
	}

	room := r.URL.Query().Get("room")
	if room == "" {
		writeText(w, http.StatusBadRequest, "400: Bad request\nNo room specified. Did you forget the '?room=' query parameter?\n")
		return
	}

	roomID := id.RoomID(room)
	if !s.membership.Contains(roomID) {
		writeText(w, http.StatusForbidden, "403: Forbidden\nThe bot is not in the room. Please invite the bot to the room.\n")
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		w.Header().Set("Accept", "application/json")
		writeText(w, http.StatusNotAcceptable, "406: Not Acceptable\n")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeText(w, http.StatusBadRequest, "400: Bad request\nMissing request body\n")
		return
	}

	taskID := s.tasks.register()
	go s.process(taskID, eventType, signature, roomID, body)

	writeText(w, http.StatusAccepted, "202: Accepted\nWebhook processing started.\n")
}

// process is the detached delivery task. The HTTP response has already been
// sent, so every failure here is terminal for this task only: logged and
// swallowed, never re-raised.
func (s *Server) process(taskID uuid.UUID, eventType, signature string, roomID id.RoomID, body []byte) {
	defer s.tasks.deregister(taskID)

	payload, err := event.Parse(body)
	if err != nil {
		s.logger.Error("failed to parse webhook body", "event", eventType, "error", err)
		return
	}

	if !s.verifySecret(signature, body, payload.Secret) {
		s.logger.Error("failed to handle webhook: secret does not match", "event", eventType, "room", roomID.String())
		return
	}

	msg, err := event.Format(eventType, payload)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrUnhandledEvent):
			s.logger.Error("unhandled hook", "event", eventType)
		case errors.Is(err, event.ErrEmptyPush):
			s.logger.Debug("push with no commits, nothing to send", "room", roomID.String())
		default:
			s.logger.Error("failed to format webhook event", "event", eventType, "error", err)
		}
		return
	}

	if err := s.notifier.SendNotification(s.taskCtx, roomID, msg); err != nil {
		s.logger.Error("failed to deliver webhook notification", "event", eventType, "room", roomID.String(), "error", err)
	}
}

// verifySecret authenticates a webhook payload. When a secret is
// configured, the X-Gitea-Signature header is checked as an HMAC-SHA256 of
// the raw body; payloads from older Gitea versions that only carry the
// `secret` body field are accepted on exact match instead. With no secret
// configured everything passes.
func (s *Server) verifySecret(signature string, body []byte, payloadSecret string) bool {
	if s.cfg.Secret == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if hmac.Equal([]byte(expected), []byte(signature)) {
		return true
	}

	return subtle.ConstantTimeCompare([]byte(payloadSecret), []byte(s.cfg.Secret)) == 1
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
