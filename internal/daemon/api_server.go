package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"snapseal/internal/asset"
	"snapseal/internal/config"
	"snapseal/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	limiter  *rate.Limiter
	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server
}

type assetView struct {
	ID              string  `json:"id"`
	MIMEType        string  `json:"mime_type"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	CaptureMode     string  `json:"capture_mode,omitempty"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ErrorType       string  `json:"error_type,omitempty"`
	Caption         string  `json:"caption,omitempty"`
	RemoteContentID string  `json:"remote_content_id,omitempty"`
	RemoteNetworkID string  `json:"remote_network_id,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger.With(logging.String(logging.FieldComponent, "api")),
		daemon:  d,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.limited(authMiddleware(token, srv.handleStatus)))
	mux.HandleFunc("/api/queue", srv.limited(authMiddleware(token, srv.handleQueue)))
	mux.HandleFunc("/api/assets", srv.limited(authMiddleware(token, srv.handleAssets)))
	mux.HandleFunc("/api/assets/", srv.limited(authMiddleware(token, srv.handleAsset)))
	mux.HandleFunc("/api/events", authMiddleware(token, srv.handleEvents))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound address once the server is started.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running":     status.Running,
		"pid":         status.PID,
		"queue_state": string(status.QueueState),
		"pending":     status.Pending,
		"drafts":      status.Drafts,
		"failed":      status.Failed,
		"logged_in":   status.LoggedIn,
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"state":   string(s.daemon.engine.State()),
		"pending": s.daemon.engine.PendingIDs(),
	})
}

func (s *apiServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []asset.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			if parsed, ok := asset.ParseStatus(value); ok {
				statuses = append(statuses, parsed)
			}
		}
	}
	assets, err := s.daemon.Assets(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]assetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, toAssetView(a))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"assets": views})
}

func (s *apiServer) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/assets/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	a, err := s.daemon.GetAsset(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toAssetView(a))
}

// handleEvents upgrades to a websocket and streams hub events until the
// client disconnects or the daemon shuts down.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.Hub()
	if hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	sub, cancel := hub.Subscribe()
	defer cancel()

	for event := range sub {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}

func toAssetView(a *asset.Asset) assetView {
	return assetView{
		ID:              a.ID,
		MIMEType:        a.MIMEType,
		Width:           a.Width,
		Height:          a.Height,
		CaptureMode:     a.CaptureMode,
		Status:          string(a.Status),
		Progress:        a.Progress,
		ErrorMessage:    a.ErrorMessage,
		ErrorType:       a.ErrorType,
		Caption:         a.Caption,
		RemoteContentID: a.RemoteContentID,
		RemoteNetworkID: a.RemoteNetworkID,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("write response failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
