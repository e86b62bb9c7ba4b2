package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"snapseal/internal/asset"
	"snapseal/internal/capture"
	"snapseal/internal/daemon"
	"snapseal/internal/logging"
	"snapseal/internal/settings"
)

// Server exposes daemon operations as a JSON-RPC service on a unix socket.
type Server struct {
	path     string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewServer binds the control socket and registers the daemon service.
// A stale socket file from a previous run is removed before binding.
func NewServer(path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if path == "" {
		return nil, errors.New("ipc: socket path is required")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen on %s: %w", path, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &service{daemon: d}); err != nil {
		listener.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ipc: register service: %w", err)
	}
	return &Server{
		path:     path,
		logger:   logger,
		listener: listener,
		rpc:      rpcServer,
	}, nil
}

// Serve accepts connections until the context is cancelled or the listener
// is closed. Each connection is served on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ipc: accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
		}()
	}
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.listener.Close()
	s.wg.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove control socket",
			logging.String(logging.FieldComponent, "ipc"),
			logging.Error(err))
	}
}

// service adapts daemon operations to RPC method signatures.
type service struct {
	daemon *daemon.Daemon
}

func (s *service) Capture(req CaptureRequest, resp *CaptureResponse) error {
	request := capture.Request{
		Mode:    req.Mode,
		Caption: req.Caption,
	}
	if req.SourceURL != "" {
		request.Source = &asset.SourceWebsite{URL: req.SourceURL, Title: req.SourceTitle}
	}
	result := s.daemon.Capture(context.Background(), request)
	resp.Outcome = string(result.Outcome)
	resp.AssetID = result.AssetID
	resp.Reason = result.Reason
	return nil
}

func (s *service) Upload(req UploadRequest, resp *UploadResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("ipc: no asset ids given")
	}
	if err := s.daemon.Upload(context.Background(), req.IDs...); err != nil {
		return err
	}
	resp.Enqueued = len(req.IDs)
	return nil
}

func (s *service) Assets(req AssetListRequest, resp *AssetListResponse) error {
	statuses := make([]asset.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := asset.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("ipc: unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	assets, err := s.daemon.Assets(context.Background(), statuses...)
	if err != nil {
		return err
	}
	resp.Assets = make([]AssetSummary, 0, len(assets))
	for _, a := range assets {
		resp.Assets = append(resp.Assets, summarize(a))
	}
	return nil
}

func (s *service) Queue(_ QueueRequest, resp *QueueResponse) error {
	status := s.daemon.Status(context.Background())
	resp.State = string(status.QueueState)
	resp.Pending = status.Pending
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("ipc: no asset ids given")
	}
	if err := s.daemon.Retry(context.Background(), req.IDs...); err != nil {
		return err
	}
	resp.Retried = len(req.IDs)
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	if req.ID == "" {
		return errors.New("ipc: asset id is required")
	}
	if err := s.daemon.Remove(context.Background(), req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) Pause(req PauseRequest, resp *PauseResponse) error {
	if err := s.daemon.SetPaused(context.Background(), req.Paused); err != nil {
		return err
	}
	resp.State = string(s.daemon.Status(context.Background()).QueueState)
	return nil
}

func (s *service) ClearFailed(_ ClearFailedRequest, resp *ClearFailedResponse) error {
	removed, err := s.daemon.ClearFailed(context.Background())
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(context.Background())
	*resp = StatusResponse{
		Running:       status.Running,
		PID:           status.PID,
		QueueState:    string(status.QueueState),
		Pending:       status.Pending,
		Drafts:        status.Drafts,
		Failed:        status.Failed,
		LoggedIn:      status.LoggedIn,
		RecordsDBPath: status.RecordsDBPath,
		AssetsDBPath:  status.AssetsDBPath,
		LockFilePath:  status.LockFilePath,
		SocketPath:    status.SocketPath,
	}
	return nil
}

func (s *service) SettingsGet(_ SettingsGetRequest, resp *SettingsResponse) error {
	resp.Settings = toPayload(s.daemon.Settings(context.Background()))
	return nil
}

func (s *service) SettingsSet(req SettingsSetRequest, resp *SettingsResponse) error {
	updated := settings.Settings{
		AutoUpload:      req.Settings.AutoUpload,
		TimestampStamp:  req.Settings.TimestampStamp,
		LocationEnabled: req.Settings.LocationEnabled,
		AttachSource:    req.Settings.AttachSource,
		DefaultCaption:  req.Settings.DefaultCaption,
	}
	if err := s.daemon.UpdateSettings(context.Background(), updated); err != nil {
		return err
	}
	resp.Settings = toPayload(s.daemon.Settings(context.Background()))
	return nil
}

func (s *service) Login(req LoginRequest, resp *SessionResponse) error {
	if err := s.daemon.Login(context.Background(), req.Token, req.RecorderID); err != nil {
		return err
	}
	resp.LoggedIn = true
	return nil
}

func (s *service) Logout(_ LogoutRequest, resp *SessionResponse) error {
	if err := s.daemon.Logout(context.Background()); err != nil {
		return err
	}
	resp.LoggedIn = false
	return nil
}

func summarize(a *asset.Asset) AssetSummary {
	return AssetSummary{
		ID:           a.ID,
		Status:       string(a.Status),
		Progress:     a.Progress,
		ErrorMessage: a.ErrorMessage,
		ErrorType:    a.ErrorType,
		Caption:      a.Caption,
		CaptureMode:  a.CaptureMode,
		MIMEType:     a.MIMEType,
		Width:        a.Width,
		Height:       a.Height,
		ContentID:    a.RemoteContentID,
		NetworkID:    a.RemoteNetworkID,
		CreatedAt:    a.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPayload(s settings.Settings) SettingsPayload {
	return SettingsPayload{
		AutoUpload:      s.AutoUpload,
		TimestampStamp:  s.TimestampStamp,
		LocationEnabled: s.LocationEnabled,
		AttachSource:    s.AttachSource,
		DefaultCaption:  s.DefaultCaption,
	}
}
