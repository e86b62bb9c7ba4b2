package uploadqueue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"snapseal/internal/asset"
	"snapseal/internal/blobstore"
	"snapseal/internal/events"
	"snapseal/internal/kvstore"
	"snapseal/internal/logging"
	"snapseal/internal/registrar"
	"snapseal/internal/uploadqueue"
)

type fakeRegistrar struct {
	mu      sync.Mutex
	results map[string]error
	order   []string
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{results: make(map[string]error)}
}

func (f *fakeRegistrar) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = err
}

func (f *fakeRegistrar) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.results, id)
}

func (f *fakeRegistrar) Register(ctx context.Context, a *asset.Asset, manifest []byte) (registrar.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, a.ID)
	if err, ok := f.results[a.ID]; ok {
		return registrar.Receipt{}, err
	}
	return registrar.Receipt{ContentID: "content-" + a.ID, NetworkID: "network-" + a.ID}, nil
}

func (f *fakeRegistrar) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

type engineFixture struct {
	records *kvstore.Store
	blobs   *blobstore.Store
	client  *fakeRegistrar
	hub     *events.Hub
	engine  *uploadqueue.Engine
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	dir := t.TempDir()

	records, err := kvstore.Open(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	blobs, err := blobstore.Open(filepath.Join(dir, "assets.db"))
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	client := newFakeRegistrar()
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	engine := uploadqueue.New(records, blobs, client, hub, logging.NewNop(),
		uploadqueue.WithProgressInterval(10*time.Millisecond))
	t.Cleanup(engine.Stop)

	return &engineFixture{records: records, blobs: blobs, client: client, hub: hub, engine: engine}
}

func (f *engineFixture) putDraft(t *testing.T) *asset.Asset {
	t.Helper()
	a := asset.New([]byte("payload"), "image/png", 100, 100, asset.ModeVisible)
	if err := f.blobs.Put(context.Background(), a); err != nil {
		t.Fatalf("seed draft asset: %v", err)
	}
	return a
}

func waitFor(t *testing.T, message string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

func TestEnqueueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, true); err != nil {
		t.Fatalf("SetPaused failed: %v", err)
	}

	a := f.putDraft(t)
	if err := f.engine.Enqueue(ctx, a.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := f.engine.Enqueue(ctx, a.ID); err != nil {
		t.Fatalf("duplicate Enqueue failed: %v", err)
	}

	if pending := f.engine.PendingIDs(); len(pending) != 1 {
		t.Fatalf("expected 1 queued id, got %v", pending)
	}
	persisted, err := f.records.QueueIDs(ctx)
	if err != nil {
		t.Fatalf("QueueIDs failed: %v", err)
	}
	if len(persisted) != 1 || persisted[0] != a.ID {
		t.Fatalf("unexpected persisted queue: %v", persisted)
	}
}

func TestDrainIsFIFOAndDeletesUploadedAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, true); err != nil {
		t.Fatalf("SetPaused failed: %v", err)
	}

	first := f.putDraft(t)
	second := f.putDraft(t)
	third := f.putDraft(t)
	if err := f.engine.Enqueue(ctx, first.ID, second.ID, third.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, false); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	waitFor(t, "queue to drain", func() bool {
		return len(f.engine.PendingIDs()) == 0 && f.engine.State() == uploadqueue.StateIdle
	})

	calls := f.client.calls()
	if len(calls) != 3 || calls[0] != first.ID || calls[1] != second.ID || calls[2] != third.ID {
		t.Fatalf("expected FIFO registration order, got %v", calls)
	}
	for _, a := range []*asset.Asset{first, second, third} {
		if _, err := f.blobs.Get(ctx, a.ID); !errors.Is(err, blobstore.ErrNotFound) {
			t.Fatalf("expected uploaded asset %s deleted, got %v", a.ID, err)
		}
	}
	persisted, err := f.records.QueueIDs(ctx)
	if err != nil || len(persisted) != 0 {
		t.Fatalf("expected empty persisted queue, got %v, %v", persisted, err)
	}
}

func TestBalanceExhaustionPausesEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, true); err != nil {
		t.Fatalf("SetPaused failed: %v", err)
	}

	succeeds := f.putDraft(t)
	broke := f.putDraft(t)
	queued := f.putDraft(t)
	f.client.fail(broke.ID, registrar.Wrap(registrar.ErrInsufficientCredits, "register", "balance too low", nil))

	if err := f.records.SetCreditWarningDismissed(ctx, true); err != nil {
		t.Fatalf("seed dismissal flag: %v", err)
	}

	if err := f.engine.Enqueue(ctx, succeeds.ID, broke.ID, queued.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, false); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	waitFor(t, "engine to pause on balance failure", func() bool {
		return f.engine.State() == uploadqueue.StatePaused
	})

	if _, err := f.blobs.Get(ctx, succeeds.ID); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected first asset deleted after upload, got %v", err)
	}

	failed, err := f.blobs.Get(ctx, broke.ID)
	if err != nil {
		t.Fatalf("load failed asset: %v", err)
	}
	if failed.Status != asset.StatusFailed || failed.ErrorType != asset.ErrorTypeInsufficientCredits {
		t.Fatalf("unexpected failed asset state: %+v", failed)
	}

	pending := f.engine.PendingIDs()
	if len(pending) != 1 || pending[0] != queued.ID {
		t.Fatalf("expected remaining asset to stay queued, got %v", pending)
	}
	remaining, err := f.blobs.Get(ctx, queued.ID)
	if err != nil || remaining.Status != asset.StatusDraft {
		t.Fatalf("expected queued asset untouched, got %+v, %v", remaining, err)
	}

	dismissed, err := f.records.CreditWarningDismissed(ctx)
	if err != nil || dismissed {
		t.Fatalf("expected dismissal flag re-armed, got %v, %v", dismissed, err)
	}
	paused, err := f.records.QueuePaused(ctx)
	if err != nil || !paused {
		t.Fatalf("expected pause flag persisted, got %v, %v", paused, err)
	}
}

func TestManualRetryClearsErrorAndUnpauses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	broke := f.putDraft(t)
	f.client.fail(broke.ID, registrar.Wrap(registrar.ErrInsufficientCredits, "register", "balance too low", nil))
	if err := f.engine.Enqueue(ctx, broke.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitFor(t, "engine to pause", func() bool {
		return f.engine.State() == uploadqueue.StatePaused
	})

	f.client.succeed(broke.ID)
	if err := f.engine.Retry(ctx, broke.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	waitFor(t, "retried asset to upload", func() bool {
		_, err := f.blobs.Get(ctx, broke.ID)
		return errors.Is(err, blobstore.ErrNotFound)
	})
	if state := f.engine.State(); state == uploadqueue.StatePaused {
		t.Fatal("expected engine unpaused after manual retry")
	}
}

func TestOrdinaryFailureDoesNotBlockQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, true); err != nil {
		t.Fatalf("SetPaused failed: %v", err)
	}

	flaky := f.putDraft(t)
	healthy := f.putDraft(t)
	f.client.fail(flaky.ID, registrar.Wrap(registrar.ErrTransient, "register", "connection reset", nil))

	if err := f.engine.Enqueue(ctx, flaky.ID, healthy.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, false); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	waitFor(t, "queue to drain past the failure", func() bool {
		return len(f.engine.PendingIDs()) == 0 && f.engine.State() == uploadqueue.StateIdle
	})

	failed, err := f.blobs.Get(ctx, flaky.ID)
	if err != nil {
		t.Fatalf("load failed asset: %v", err)
	}
	if failed.Status != asset.StatusFailed || failed.ErrorType != asset.ErrorTypeUploadFailed {
		t.Fatalf("unexpected failed asset state: %+v", failed)
	}
	if _, err := f.blobs.Get(ctx, healthy.ID); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected later asset uploaded and deleted, got %v", err)
	}
}

func TestRestoreSkipsMissingAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	present := f.putDraft(t)
	if err := f.records.SetQueueIDs(ctx, []string{"vanished", present.ID}); err != nil {
		t.Fatalf("seed queue ids: %v", err)
	}
	if err := f.records.SetQueuePaused(ctx, true); err != nil {
		t.Fatalf("seed pause flag: %v", err)
	}

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	pending := f.engine.PendingIDs()
	if len(pending) != 1 || pending[0] != present.ID {
		t.Fatalf("expected missing id dropped, got %v", pending)
	}
	persisted, err := f.records.QueueIDs(ctx)
	if err != nil || len(persisted) != 1 || persisted[0] != present.ID {
		t.Fatalf("expected pruned persisted queue, got %v, %v", persisted, err)
	}
}

func TestPauseStateSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.engine.SetPaused(ctx, true); err != nil {
		t.Fatalf("SetPaused failed: %v", err)
	}
	queued := f.putDraft(t)
	if err := f.engine.Enqueue(ctx, queued.ID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	f.engine.Stop()

	restarted := uploadqueue.New(f.records, f.blobs, f.client, f.hub, logging.NewNop(),
		uploadqueue.WithProgressInterval(10*time.Millisecond))
	t.Cleanup(restarted.Stop)
	if err := restarted.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if state := restarted.State(); state != uploadqueue.StatePaused {
		t.Fatalf("expected paused after restart, got %q", state)
	}
	if pending := restarted.PendingIDs(); len(pending) != 1 || pending[0] != queued.ID {
		t.Fatalf("expected queued asset retained, got %v", pending)
	}
	if got := f.client.calls(); len(got) != 0 {
		t.Fatalf("expected no registrations while paused, got %v", got)
	}
}

func TestConcurrentEnqueueWhileDraining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	const workers = 4
	const perWorker = 5
	ids := make([][]string, workers)
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			ids[w] = append(ids[w], f.putDraft(t).ID)
		}
	}

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, id := range ids[w] {
				if err := f.engine.Enqueue(ctx, id); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Enqueue failed: %v", err)
	}

	waitFor(t, "queue to drain all concurrent enqueues", func() bool {
		return len(f.engine.PendingIDs()) == 0 && f.engine.State() == uploadqueue.StateIdle
	})

	if got := len(f.client.calls()); got != workers*perWorker {
		t.Fatalf("registered %d assets, want %d", got, workers*perWorker)
	}
	persisted, err := f.records.QueueIDs(ctx)
	if err != nil {
		t.Fatalf("read persisted queue: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("persisted queue not empty after drain: %v", persisted)
	}
}

func TestRetryRejectsInFlightAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	uploading := f.putDraft(t)
	uploading.SetUploading()
	uploading.Progress = 0.5
	if err := f.blobs.Update(ctx, uploading); err != nil {
		t.Fatalf("seed uploading asset: %v", err)
	}

	if err := f.engine.Retry(ctx, uploading.ID); err == nil {
		t.Fatal("expected retry of an uploading asset to be rejected")
	}
	reloaded, err := f.blobs.Get(ctx, uploading.ID)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if reloaded.Status != asset.StatusUploading || reloaded.Progress != 0.5 {
		t.Fatalf("in-flight state clobbered: %+v", reloaded)
	}
	if len(f.engine.PendingIDs()) != 0 {
		t.Fatalf("rejected retry must not enqueue, pending = %v", f.engine.PendingIDs())
	}
}
