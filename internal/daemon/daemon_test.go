package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"snapseal/internal/asset"
	"snapseal/internal/auth"
	"snapseal/internal/blobstore"
	"snapseal/internal/capture"
	"snapseal/internal/config"
	"snapseal/internal/daemon"
	"snapseal/internal/events"
	"snapseal/internal/kvstore"
	"snapseal/internal/logging"
	"snapseal/internal/registrar"
	"snapseal/internal/testsupport"
	"snapseal/internal/uploadqueue"
)

type stubSnapshotter struct{}

func (stubSnapshotter) Snapshot(ctx context.Context) (capture.Snapshot, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 32))); err != nil {
		return capture.Snapshot{}, err
	}
	return capture.Snapshot{Payload: buf.Bytes(), MIMEType: "image/png", Width: 32, Height: 32}, nil
}

type stubRegistrar struct{}

func (stubRegistrar) Register(ctx context.Context, a *asset.Asset, manifest []byte) (registrar.Receipt, error) {
	return registrar.Receipt{ContentID: "content-" + a.ID, NetworkID: "net-" + a.ID}, nil
}

type fixture struct {
	cfg     *config.Config
	records *kvstore.Store
	blobs   *blobstore.Store
	daemon  *daemon.Daemon
}

func newDaemon(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenKV(t, cfg)
	blobs := testsupport.MustOpenBlobs(t, cfg)

	hub := events.NewHub()
	t.Cleanup(hub.Close)

	engine := uploadqueue.New(records, blobs, stubRegistrar{}, hub, logging.NewNop(),
		uploadqueue.WithProgressInterval(10*time.Millisecond))
	orch := capture.NewOrchestrator(capture.Deps{
		Snapshotter: stubSnapshotter{},
		Blobs:       blobs,
		Records:     records,
		Queue:       engine,
		Hub:         hub,
		Logger:      logging.NewNop(),
	})

	d, err := daemon.New(cfg, records, blobs, engine, orch, nil, hub, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &fixture{cfg: cfg, records: records, blobs: blobs, daemon: d}
}

func TestSecondInstanceCannotStart(t *testing.T) {
	f := newDaemon(t)

	hub := events.NewHub()
	t.Cleanup(hub.Close)
	engine := uploadqueue.New(f.records, f.blobs, stubRegistrar{}, hub, logging.NewNop())
	orch := capture.NewOrchestrator(capture.Deps{
		Snapshotter: stubSnapshotter{},
		Blobs:       f.blobs,
		Records:     f.records,
		Logger:      logging.NewNop(),
	})
	second, err := daemon.New(f.cfg, f.records, f.blobs, engine, orch, nil, hub, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance start to fail")
	}
}

func TestCaptureThenUploadLifecycle(t *testing.T) {
	f := newDaemon(t)
	ctx := context.Background()

	if err := f.daemon.Login(ctx, "tok-1", "rec-1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	result := f.daemon.Capture(ctx, capture.Request{Mode: asset.ModeVisible})
	if result.Outcome != capture.OutcomeCaptured {
		t.Fatalf("unexpected capture result: %+v", result)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := f.blobs.Get(ctx, result.AssetID); errors.Is(err, blobstore.ErrNotFound) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected captured asset to auto-upload and be deleted")
}

func TestStatusReportsCounts(t *testing.T) {
	f := newDaemon(t)
	ctx := context.Background()

	a := asset.New([]byte("data"), "image/png", 10, 10, asset.ModeVisible)
	a.SetFailed("connection refused", asset.ErrorTypeUploadFailed)
	if err := f.blobs.Put(ctx, a); err != nil {
		t.Fatalf("seed failed asset: %v", err)
	}

	status := f.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.Failed != 1 {
		t.Fatalf("expected 1 failed asset, got %d", status.Failed)
	}
	if status.LoggedIn {
		t.Fatal("expected logged out")
	}

	if err := auth.Save(ctx, f.records, auth.Credentials{Token: "tok"}); err != nil {
		t.Fatalf("save credentials: %v", err)
	}
	if !f.daemon.Status(ctx).LoggedIn {
		t.Fatal("expected logged in after saving credentials")
	}
}

func TestClearFailedRemovesOnlyFailedAssets(t *testing.T) {
	f := newDaemon(t)
	ctx := context.Background()

	failed := asset.New([]byte("a"), "image/png", 1, 1, asset.ModeVisible)
	failed.SetFailed("boom", asset.ErrorTypeUploadFailed)
	draft := asset.New([]byte("b"), "image/png", 1, 1, asset.ModeVisible)
	for _, a := range []*asset.Asset{failed, draft} {
		if err := f.blobs.Put(ctx, a); err != nil {
			t.Fatalf("seed asset: %v", err)
		}
	}

	removed, err := f.daemon.ClearFailed(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("ClearFailed = %d, %v", removed, err)
	}
	if _, err := f.blobs.Get(ctx, draft.ID); err != nil {
		t.Fatalf("expected draft retained, got %v", err)
	}
}

func TestAPIStatusEndpoint(t *testing.T) {
	f := newDaemon(t)

	addr := f.daemon.APIAddr()
	if addr == "" {
		t.Fatal("expected bound api address")
	}
	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", addr))
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code %d", resp.StatusCode)
	}

	var payload struct {
		Running    bool   `json:"running"`
		QueueState string `json:"queue_state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status payload: %v", err)
	}
	if !payload.Running || payload.QueueState == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestEventsStreamCarriesTerminalProgress(t *testing.T) {
	f := newDaemon(t)
	ctx := context.Background()

	conn, resp, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("ws://%s/api/events", f.daemon.APIAddr()), nil)
	if err != nil {
		t.Fatalf("dial events stream: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	if err := f.daemon.Login(ctx, "tok-1", "rec-1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	result := f.daemon.Capture(ctx, capture.Request{Mode: asset.ModeVisible})
	if result.Outcome != capture.OutcomeCaptured {
		t.Fatalf("unexpected capture result: %+v", result)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var event struct {
			Type     string  `json:"type"`
			AssetID  string  `json:"asset_id"`
			Progress float64 `json:"progress"`
		}
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if event.Type != string(events.TypeUploadComplete) {
			continue
		}
		if event.AssetID != result.AssetID {
			t.Fatalf("completion for unexpected asset %q", event.AssetID)
		}
		if event.Progress != 1 {
			t.Fatalf("terminal progress = %v, want 1", event.Progress)
		}
		return
	}
}

func TestAPIRejectsBadBearerToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "secret"
	records := testsupport.MustOpenKV(t, cfg)
	blobs := testsupport.MustOpenBlobs(t, cfg)
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	engine := uploadqueue.New(records, blobs, stubRegistrar{}, hub, logging.NewNop())
	orch := capture.NewOrchestrator(capture.Deps{
		Snapshotter: stubSnapshotter{},
		Blobs:       blobs,
		Records:     records,
		Logger:      logging.NewNop(),
	})
	d, err := daemon.New(cfg, records, blobs, engine, orch, nil, hub, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", d.APIAddr()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://%s/api/status", d.APIAddr()), nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed request failed: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", authed.StatusCode)
	}
}
