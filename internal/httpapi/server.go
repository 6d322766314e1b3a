// ABOUTME: HTTP surface: Telegram webhook intake, health check, metrics endpoint
// ABOUTME: Validates the webhook secret and spawns supervised message handling

package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rkartside/docbridge/internal/bot"
	"github.com/rkartside/docbridge/internal/config"
	"github.com/rkartside/docbridge/internal/dedupe"
	"github.com/rkartside/docbridge/internal/observability"
	"github.com/rkartside/docbridge/internal/telegram"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Server exposes the webhook intake and operational endpoints.
type Server struct {
	cfg     *config.Config
	handler *bot.Handler
	updates *dedupe.Cache
	metrics *observability.Metrics
	logger  *slog.Logger

	// baseCtx parents spawned message handling, which must outlive the
	// webhook request that delivered the event.
	baseCtx context.Context
}

func New(cfg *config.Config, handler *bot.Handler, updates *dedupe.Cache, metrics *observability.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		updates: updates,
		metrics: metrics,
		logger:  logger.With("component", "httpapi"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)
	if s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, observability.Handler())
	}

	srv := &http.Server{
		Addr:    s.cfg.Server.HTTPAddr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Server.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook accepts one update delivery. It always acknowledges with
// 200 once the secret checks out, so the platform never retries an event we
// chose to ignore; actual handling runs on its own supervised task.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(secretHeader) != s.cfg.Telegram.WebhookSecret {
		s.metrics.WebhooksRejected.Inc()
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Debug("webhook payload malformed, ignoring", "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	// The platform redelivers updates it considers unacknowledged; an update
	// already seen is acknowledged again but never reprocessed.
	if s.updates != nil && update.UpdateID != 0 && s.updates.Seen(update.UpdateID) {
		s.logger.Debug("duplicate update suppressed", "update_id", update.UpdateID)
		s.metrics.DuplicateUpdates.Inc()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if m := update.Message; m != nil && (m.Text != "" || m.Voice != nil) {
		s.logger.Info("webhook received",
			"chat_id", m.Chat.ID, "message_id", m.MessageID, "voice", m.Voice != nil)
		s.handler.Spawn(s.baseCtx, m.ToChat())
	} else {
		s.logger.Debug("webhook received non-message update, ignoring")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
