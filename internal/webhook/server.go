// Package webhook provides the inbound GitHub webhook HTTP listener.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/brettins/discord-pr-manager/internal/dispatch"
	"github.com/brettins/discord-pr-manager/internal/event"
	"github.com/brettins/discord-pr-manager/internal/guilds"
	"github.com/brettins/discord-pr-manager/internal/relay"
)

// maxBodyBytes caps webhook payload size.
const maxBodyBytes = 1 << 20

// eventHeader selects the GitHub event kind.
const eventHeader = "X-GitHub-Event"

// Server validates webhook requests and schedules their processing. The
// request handler never executes notification logic itself: it hands a job
// to the dispatch queue and acknowledges immediately, keeping well inside
// GitHub's delivery timeout.
type Server struct {
	guilds *guilds.Store
	queue  *dispatch.Queue
	engine *relay.Engine
	logger *slog.Logger
}

// NewServer creates a webhook server.
func NewServer(store *guilds.Store, queue *dispatch.Queue, engine *relay.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		guilds: store,
		queue:  queue,
		engine: engine,
		logger: logger,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(securityHeadersMiddleware)

	router.HandleFunc("/", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/webhook/{guild_id:[0-9]+}/{channel_id:[0-9]+}/{token}", s.handleWebhook).Methods(http.MethodPost)

	return router
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	guildID, err := strconv.ParseInt(vars["guild_id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid guild ID"})
		return
	}
	channelID := vars["channel_id"]
	token := vars["token"]

	eventType := r.Header.Get(eventHeader)

	// Pings acknowledge before token verification so GitHub's webhook
	// creation check succeeds against a guild that has no token yet.
	if eventType == event.TypePing {
		s.logger.Info("received ping event", "guild_id", guildID)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Ping received!"})
		return
	}

	if eventType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing " + eventHeader + " header"})
		return
	}

	if !s.guilds.VerifyToken(guildID, token) {
		s.logger.Warn("invalid webhook token", "guild_id", guildID)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid token"})
		return
	}

	// Payloads are validated even for event kinds nothing consumes, so a
	// broken delivery is reported as 400 rather than acknowledged.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing or invalid JSON payload"})
		return
	}

	if _, handled := event.KindForType(eventType); !handled {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Event " + eventType + " received but not processed"})
		return
	}

	ev, kind, err := event.ParseWebhook(eventType, body)
	if err != nil {
		if errors.Is(err, event.ErrNotPullRequest) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Event " + eventType + " received but not processed"})
			return
		}
		s.logger.Warn("failed to parse webhook payload",
			"guild_id", guildID,
			"event_type", eventType,
			"error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing or invalid JSON payload"})
		return
	}

	// Route to the configured post channel when one is set; the channel
	// embedded in the webhook URL is the fallback.
	_, postChannel := s.guilds.Destination(guildID, channelID)

	job := s.makeJob(ev, kind, postChannel)
	if !s.queue.Enqueue(job) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Processing queue unavailable"})
		return
	}

	s.logger.Info("scheduled webhook event",
		"guild_id", guildID,
		"event_type", eventType,
		"repository", ev.Repository,
		"pr_number", ev.Number,
		"action", ev.Action)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook received, processing in background"})
}

func (s *Server) makeJob(ev event.PREvent, kind event.Kind, channelID string) dispatch.Job {
	return func(ctx context.Context) {
		if kind == event.KindPrimary {
			if _, err := s.engine.HandlePrimary(ctx, ev, channelID); err != nil {
				s.logger.Error("failed to process webhook event",
					"repository", ev.Repository,
					"pr_number", ev.Number,
					"error", err)
			}
			return
		}
		if err := s.engine.HandleSecondary(ctx, ev, kind); err != nil {
			s.logger.Error("failed to process secondary webhook event",
				"repository", ev.Repository,
				"pr_number", ev.Number,
				"kind", kind.String(),
				"error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		slog.Debug("health write error", "error", err)
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}
