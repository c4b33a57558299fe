package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/greatsami/g-drive-clone/metrics"
	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReplicateCopiesAndFlipsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	f := env.upload(t, 1, 0, "a.txt", "alpha")

	if f.Replication != models.ReplicationPending {
		t.Fatalf("expected new upload to be pending, got %q", f.Replication)
	}
	for i := 0; i < 2; i++ {
		if err := env.svc.Replication.Replicate(ctx, f.ID); err != nil {
			t.Fatalf("replicate %d failed: %v", i, err)
		}
	}

	got := env.reload(t, f.ID)
	if !got.IsReplicated() {
		t.Fatalf("expected file to be replicated, got %q", got.Replication)
	}
	if readBlob(t, env.remote, f.StoragePath) != "alpha" {
		t.Fatalf("unexpected remote content")
	}
	if !blobExists(t, env.local, f.StoragePath) {
		t.Fatalf("local copy should be kept")
	}
}

func TestReplicateSkipsFoldersAndMissingFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	docs := env.folder(t, 1, 0, "docs")

	if err := env.svc.Replication.Replicate(ctx, docs.ID); err != nil {
		t.Fatalf("folders should be a no-op, got %v", err)
	}
	if err := env.svc.Replication.Replicate(ctx, 9999); err != nil {
		t.Fatalf("missing files should be a no-op, got %v", err)
	}
	if env.reload(t, docs.ID).Replication != models.ReplicationNone {
		t.Fatalf("folder replication state must not change")
	}
}

func TestReplicateRemoteFailureKeepsPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	f := env.upload(t, 1, 0, "a.txt", "alpha")

	env.tiers.Remote = &failingStore{BlobStore: env.remote, failPut: true}
	env.svc = NewContainer(env.repos, env.tiers, env.notifier)

	err := env.svc.Replication.Replicate(ctx, f.ID)
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if env.reload(t, f.ID).IsReplicated() {
		t.Fatalf("file must stay pending after a failed copy")
	}
	if blobExists(t, env.remote, f.StoragePath) {
		t.Fatalf("no remote blob expected")
	}
}

func TestEnqueuePendingRequeuesOldFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	a := env.upload(t, 1, 0, "a.txt", "a")
	b := env.upload(t, 1, 0, "b.txt", "b")
	if err := env.svc.Replication.Replicate(ctx, b.ID); err != nil {
		t.Fatalf("replicate failed: %v", err)
	}
	// Drop the units pushed by the uploads.
	for env.queue.Len() > 0 {
		if _, _, err := env.queue.Pop(ctx, 0); err != nil {
			t.Fatalf("pop failed: %v", err)
		}
	}

	svc := env.svc.Replication.(*replicationService)
	n, err := svc.EnqueuePending(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("fresh files must not be re-queued, n=%d err=%v", n, err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = svc.EnqueuePending(ctx, time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("expected one stale file, n=%d err=%v", n, err)
	}
	id, ok, err := env.queue.Pop(ctx, time.Second)
	if err != nil || !ok || id != a.ID {
		t.Fatalf("expected file %d queued, got %d ok=%v err=%v", a.ID, id, ok, err)
	}
}

func TestWorkerPoolDrainsQueue(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	ids := []uint{
		env.upload(t, 1, 0, "a.txt", "a").ID,
		env.upload(t, 1, 0, "b.txt", "b").ID,
		env.upload(t, 1, 0, "c.txt", "c").ID,
	}

	pool := NewReplicationWorkerPool(env.queue, env.svc.Replication, ReplicationWorkerOptions{
		Workers: 2,
		PopWait: 20 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		replicated := 0
		for _, id := range ids {
			if env.reload(t, id).IsReplicated() {
				replicated++
			}
		}
		if replicated == len(ids) {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("only %d of %d files replicated", replicated, len(ids))
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker pool did not stop")
	}
}

type flakyReplicator struct {
	mu       sync.Mutex
	attempts int
}

func (f *flakyReplicator) Replicate(context.Context, uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	return errors.New("remote unavailable")
}

func (f *flakyReplicator) EnqueuePending(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func TestWorkerPoolRetriesWithBackoff(t *testing.T) {
	fake := &flakyReplicator{}
	pool := NewReplicationWorkerPool(nil, fake, ReplicationWorkerOptions{
		RetryMax: 3,
		Backoff:  100 * time.Millisecond,
	})
	var waits []time.Duration
	pool.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	pool.process(context.Background(), 7)

	if fake.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.attempts)
	}
	if len(waits) != 2 || waits[0] != 100*time.Millisecond || waits[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff schedule %v", waits)
	}
}

// beforePutStore runs hook once, ahead of the first Put it sees.
type beforePutStore struct {
	storage.BlobStore
	once sync.Once
	hook func()
}

func (s *beforePutStore) Put(ctx context.Context, p string, r io.Reader) error {
	s.once.Do(s.hook)
	return s.BlobStore.Put(ctx, p, r)
}

func TestReplicateDropsRemoteCopyWhenFilePurgedMidCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	f := env.upload(t, 1, 0, "a.txt", "alpha")
	if _, err := env.svc.File.MoveToTrash(ctx, 1, []uint{f.ID}); err != nil {
		t.Fatalf("trash failed: %v", err)
	}

	var purgeErr error
	env.tiers.Remote = &beforePutStore{BlobStore: env.remote, hook: func() {
		_, purgeErr = env.svc.Trash.DeleteForever(ctx, 1, []uint{f.ID})
	}}
	env.svc = NewContainer(env.repos, env.tiers, env.notifier)

	if err := env.svc.Replication.Replicate(ctx, f.ID); err != nil {
		t.Fatalf("replicate failed: %v", err)
	}
	if purgeErr != nil {
		t.Fatalf("purge during copy failed: %v", purgeErr)
	}
	if env.exists(t, f.ID) {
		t.Fatalf("expected row to be purged")
	}
	if blobExists(t, env.remote, f.StoragePath) {
		t.Fatalf("remote copy of a purged file must not survive")
	}
	if blobExists(t, env.local, f.StoragePath) {
		t.Fatalf("local copy of a purged file must not survive")
	}
}

func TestConcurrentReplicateFlipsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	f := env.upload(t, 1, 0, "a.txt", "alpha")

	successes := metrics.ReplicationTotal.WithLabelValues(metrics.OutcomeSuccess)
	before := testutil.ToFloat64(successes)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- env.svc.Replication.Replicate(ctx, f.ID)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent replicate failed: %v", err)
		}
	}
	if got := testutil.ToFloat64(successes) - before; got != 1 {
		t.Fatalf("expected exactly one successful flip, got %v", got)
	}
	if !env.reload(t, f.ID).IsReplicated() {
		t.Fatalf("expected file to be replicated")
	}
	if readBlob(t, env.remote, f.StoragePath) != "alpha" {
		t.Fatalf("unexpected remote content")
	}
}
