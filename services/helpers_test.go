package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/greatsami/g-drive-clone/database"
	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/notify"
	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/storage"

	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.ShareNotification
	err    error
}

func (n *recordingNotifier) NotifyShared(_ context.Context, event notify.ShareNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

// failingStore wraps a BlobStore and fails selected operations.
type failingStore struct {
	storage.BlobStore
	failGet bool
	failPut bool
}

var errInjected = errors.New("injected storage failure")

func (s *failingStore) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	if s.failGet {
		return nil, errInjected
	}
	return s.BlobStore.Get(ctx, p)
}

func (s *failingStore) Put(ctx context.Context, p string, r io.Reader) error {
	if s.failPut {
		_, _ = io.Copy(io.Discard, r)
		return errInjected
	}
	return s.BlobStore.Put(ctx, p, r)
}

type testEnv struct {
	db       *gorm.DB
	repos    repositories.Container
	queue    *repositories.MemoryReplicationQueue
	local    *storage.LocalStore
	remote   *storage.LocalStore
	tiers    storage.Tiers
	notifier *recordingNotifier
	svc      *Container
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	local, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "local"))
	if err != nil {
		t.Fatalf("local store failed: %v", err)
	}
	remote, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "remote"))
	if err != nil {
		t.Fatalf("remote store failed: %v", err)
	}

	queue := repositories.NewMemoryReplicationQueue(1024)
	repos := repositories.NewGormRepositories(db, nil, "").BuildContainer()
	repos.Queue = queue

	env := &testEnv{
		db:       db,
		repos:    repos,
		queue:    queue,
		local:    local,
		remote:   remote,
		tiers:    storage.Tiers{Local: local, Remote: remote},
		notifier: &recordingNotifier{},
	}
	env.svc = NewContainer(repos, env.tiers, env.notifier)
	return env
}

func (e *testEnv) user(t *testing.T, id uint, name string) models.User {
	t.Helper()
	u, err := e.svc.User.EnsureUser(context.Background(), IdentityInput{ID: id, Username: name, Email: name + "@example.com"})
	if err != nil {
		t.Fatalf("ensure user %s failed: %v", name, err)
	}
	return u
}

func (e *testEnv) folder(t *testing.T, userID, parentID uint, name string) models.File {
	t.Helper()
	f, err := e.svc.Folder.CreateFolder(context.Background(), userID, parentID, name)
	if err != nil {
		t.Fatalf("create folder %s failed: %v", name, err)
	}
	return f
}

func (e *testEnv) upload(t *testing.T, userID, parentID uint, name, content string) models.File {
	t.Helper()
	f, err := e.svc.File.UploadFile(context.Background(), userID, parentID, UploadInput{
		Name:    name,
		Size:    int64(len(content)),
		Content: bytes.NewBufferString(content),
	})
	if err != nil {
		t.Fatalf("upload %s failed: %v", name, err)
	}
	return f
}

func (e *testEnv) reload(t *testing.T, id uint) models.File {
	t.Helper()
	var f models.File
	if err := e.db.Unscoped().First(&f, id).Error; err != nil {
		t.Fatalf("reload %d failed: %v", id, err)
	}
	return f
}

func (e *testEnv) exists(t *testing.T, id uint) bool {
	t.Helper()
	var count int64
	e.db.Unscoped().Model(&models.File{}).Where("id = ?", id).Count(&count)
	return count > 0
}

func readBlob(t *testing.T, store storage.BlobStore, p string) string {
	t.Helper()
	rc, err := store.Get(context.Background(), p)
	if err != nil {
		t.Fatalf("get %s failed: %v", p, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s failed: %v", p, err)
	}
	return string(data)
}

func blobExists(t *testing.T, store storage.BlobStore, p string) bool {
	t.Helper()
	ok, err := store.Exists(context.Background(), p)
	if err != nil {
		t.Fatalf("exists %s failed: %v", p, err)
	}
	return ok
}

func assertAppError(t *testing.T, err error, code int, sentinel error) {
	t.Helper()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.HTTPCode != code {
		t.Fatalf("expected HTTP %d, got %d (%v)", code, appErr.HTTPCode, err)
	}
	if sentinel != nil && !errors.Is(err, sentinel) {
		t.Fatalf("expected %v, got %v", sentinel, err)
	}
}
