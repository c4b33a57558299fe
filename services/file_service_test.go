package services

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greatsami/g-drive-clone/config"
	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/storage"
)

func TestUploadFileStoresBlobAndEnqueuesOnce(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")

	f := env.upload(t, 1, 0, "notes.TXT", "hello world")

	if !strings.HasPrefix(f.StoragePath, "files/1/") || !strings.HasSuffix(f.StoragePath, ".txt") {
		t.Fatalf("unexpected storage path %q", f.StoragePath)
	}
	if f.Replication != models.ReplicationPending || f.FileSize != 11 || f.MimeType != "text/plain" {
		t.Fatalf("unexpected file %+v", f)
	}
	if got := readBlob(t, env.local, f.StoragePath); got != "hello world" {
		t.Fatalf("unexpected local content %q", got)
	}
	if env.queue.Len() != 1 {
		t.Fatalf("expected one replication unit, got %d", env.queue.Len())
	}
	id, ok, _ := env.queue.Pop(context.Background(), time.Second)
	if !ok || id != f.ID {
		t.Fatalf("expected unit for file %d, got %d", f.ID, id)
	}
}

func TestUploadFileRemovesBlobWhenInsertFails(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	leaf := env.upload(t, 1, 0, "a.txt", "a")
	_, _, _ = env.queue.Pop(context.Background(), time.Millisecond)

	_, err := env.svc.File.UploadFile(context.Background(), 1, leaf.ID, UploadInput{
		Name:    "b.txt",
		Content: bytes.NewBufferString("b"),
	})
	assertAppError(t, err, http.StatusBadRequest, ErrInvalidParent)

	entries, err := os.ReadDir(filepath.Join(env.local.Root(), "files", "1"))
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the first upload on disk, found %d entries", len(entries))
	}
	if env.queue.Len() != 0 {
		t.Fatalf("expected no replication unit for a failed upload")
	}
}

func TestUploadFileSurfacesStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	env.tiers.Local = &failingStore{BlobStore: env.local, failPut: true}
	env.svc = NewContainer(env.repos, env.tiers, env.notifier)

	_, err := env.svc.File.UploadFile(context.Background(), 1, 0, UploadInput{Name: "a.txt", Content: bytes.NewBufferString("a")})
	assertAppError(t, err, http.StatusBadGateway, ErrStorage)

	var count int64
	env.db.Model(&models.File{}).Where("is_folder = ?", false).Count(&count)
	if count != 0 {
		t.Fatalf("expected no file rows, got %d", count)
	}
}

func TestListFilesOrdersAndFlagsStars(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	leaf := env.upload(t, 1, 0, "a.txt", "a")
	docs := env.folder(t, 1, 0, "docs")
	env.upload(t, 1, docs.ID, "inner.txt", "i")

	if _, err := env.svc.Favourite.Toggle(context.Background(), 1, leaf.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	out, err := env.svc.File.ListFiles(context.Background(), 1, ListFilesInput{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !out.Folder.IsRoot() || len(out.Ancestors) != 0 {
		t.Fatalf("expected listing of the root, got %+v", out.Folder)
	}
	if len(out.Files) != 2 || out.Files[0].ID != docs.ID || out.Files[1].ID != leaf.ID {
		t.Fatalf("expected folder first then leaf, got %+v", out.Files)
	}
	if out.Files[0].Starred || !out.Files[1].Starred {
		t.Fatalf("unexpected starred flags %+v", out.Files)
	}
	if out.Pagination.Total != 2 {
		t.Fatalf("expected total 2, got %d", out.Pagination.Total)
	}

	fav, err := env.svc.File.ListFiles(context.Background(), 1, ListFilesInput{FavouritesOnly: true})
	if err != nil || len(fav.Files) != 1 || fav.Files[0].ID != leaf.ID {
		t.Fatalf("expected only the starred file, got %+v err=%v", fav.Files, err)
	}

	search, err := env.svc.File.ListFiles(context.Background(), 1, ListFilesInput{Search: "inner"})
	if err != nil || len(search.Files) != 1 {
		t.Fatalf("expected search to reach nested files, got %+v err=%v", search.Files, err)
	}
}

func TestMoveToTrashCascadesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	docs := env.folder(t, 1, 0, "docs")
	sub := env.folder(t, 1, docs.ID, "sub")
	leaf := env.upload(t, 1, sub.ID, "a.txt", "a")
	other := env.upload(t, 1, 0, "b.txt", "b")

	n, err := env.svc.File.MoveToTrash(context.Background(), 1, []uint{docs.ID})
	if err != nil {
		t.Fatalf("trash failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows trashed, got %d", n)
	}
	for _, id := range []uint{docs.ID, sub.ID, leaf.ID} {
		if !env.reload(t, id).IsTrashed() {
			t.Fatalf("expected %d to be trashed", id)
		}
	}
	if env.reload(t, other.ID).IsTrashed() {
		t.Fatalf("sibling must not be trashed")
	}

	n, err = env.svc.File.MoveToTrash(context.Background(), 1, []uint{docs.ID})
	if err != nil || n != 0 {
		t.Fatalf("expected re-trash to be a no-op, n=%d err=%v", n, err)
	}

	root, _ := env.svc.Folder.GetOrCreateRoot(context.Background(), 1)
	_, err = env.svc.File.MoveToTrash(context.Background(), 1, []uint{root.ID})
	assertAppError(t, err, http.StatusBadRequest, ErrRootImmutable)
}

func TestTrashAllTrashesChildren(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	env.upload(t, 1, 0, "a.txt", "a")
	env.upload(t, 1, 0, "b.txt", "b")

	n, err := env.svc.File.TrashAll(context.Background(), 1, 0)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 trashed, n=%d err=%v", n, err)
	}
	out, _ := env.svc.File.ListFiles(context.Background(), 1, ListFilesInput{})
	if len(out.Files) != 0 {
		t.Fatalf("expected empty listing, got %d", len(out.Files))
	}
}

func TestRenameAndMove(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	a := env.folder(t, 1, 0, "a")
	b := env.folder(t, 1, 0, "b")
	leaf := env.upload(t, 1, a.ID, "x.txt", "x")

	renamed, err := env.svc.File.Rename(context.Background(), 1, leaf.ID, "y.txt")
	if err != nil || renamed.Name != "y.txt" {
		t.Fatalf("rename failed: %+v err=%v", renamed, err)
	}
	_, err = env.svc.File.Rename(context.Background(), 1, leaf.ID, " ")
	assertAppError(t, err, http.StatusBadRequest, ErrNameRequired)

	moved, err := env.svc.File.Move(context.Background(), 1, a.ID, b.ID)
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != b.ID {
		t.Fatalf("expected a under b, got %+v", moved)
	}
	if !env.reload(t, b.ID).Contains(env.reload(t, leaf.ID)) {
		t.Fatalf("expected leaf to travel with a")
	}

	_, err = env.svc.File.Move(context.Background(), 1, b.ID, a.ID)
	assertAppError(t, err, http.StatusBadRequest, ErrInvalidParent)
}

var _ storage.BlobStore = (*failingStore)(nil)

func treeItems(paths ...string) []UploadInput {
	items := make([]UploadInput, 0, len(paths))
	for _, p := range paths {
		items = append(items, UploadInput{Name: p, Size: int64(len(p)), Content: bytes.NewBufferString(p)})
	}
	return items
}

func TestUploadTreeCreatesFoldersAndNestsBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")

	files, err := env.svc.File.UploadTree(ctx, 1, 0, treeItems(
		"photos/2024/a.jpg",
		"photos/2024/b.jpg",
		"photos/c.jpg",
		"top.txt",
	))
	if err != nil {
		t.Fatalf("upload tree failed: %v", err)
	}
	if len(files) != 4 {
		t.Fatalf("expected 4 files back, got %d", len(files))
	}

	var folders []models.File
	env.db.Where("user_id = ? AND is_folder = ? AND parent_id IS NOT NULL", 1, true).Order("lft").Find(&folders)
	if len(folders) != 2 || folders[0].Name != "photos" || folders[1].Name != "2024" {
		t.Fatalf("expected photos and 2024 folders once each, got %+v", folders)
	}
	photos, y2024 := folders[0], folders[1]

	root, err := env.svc.Folder.GetOrCreateRoot(ctx, 1)
	if err != nil {
		t.Fatalf("root failed: %v", err)
	}
	root = env.reload(t, root.ID)
	if *photos.ParentID != root.ID || *y2024.ParentID != photos.ID {
		t.Fatalf("unexpected folder parents photos=%d 2024=%d", *photos.ParentID, *y2024.ParentID)
	}
	if !(photos.Lft < y2024.Lft && y2024.Rgt < photos.Rgt) {
		t.Fatalf("2024 [%d,%d] not inside photos [%d,%d]", y2024.Lft, y2024.Rgt, photos.Lft, photos.Rgt)
	}

	wantParent := map[string]uint{"a.jpg": y2024.ID, "b.jpg": y2024.ID, "c.jpg": photos.ID, "top.txt": root.ID}
	for _, f := range files {
		got := env.reload(t, f.ID)
		if got.ParentID == nil || *got.ParentID != wantParent[got.Name] {
			t.Fatalf("unexpected parent for %s: %v", got.Name, got.ParentID)
		}
		parent := env.reload(t, *got.ParentID)
		if !(parent.Lft < got.Lft && got.Rgt < parent.Rgt && got.Rgt == got.Lft+1) {
			t.Fatalf("%s [%d,%d] not a leaf inside parent [%d,%d]", got.Name, got.Lft, got.Rgt, parent.Lft, parent.Rgt)
		}
		if readBlob(t, env.local, got.StoragePath) == "" {
			t.Fatalf("expected local content for %s", got.Name)
		}
	}

	// root + 2 folders + 4 files
	if root.Lft != 1 || root.Rgt != 14 {
		t.Fatalf("expected root bounds [1,14], got [%d,%d]", root.Lft, root.Rgt)
	}
	if env.queue.Len() != 4 {
		t.Fatalf("expected one replication unit per file, got %d", env.queue.Len())
	}
}

func TestUploadTreeReusesFolderUnderTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	docs := env.folder(t, 1, 0, "docs")

	files, err := env.svc.File.UploadTree(ctx, 1, docs.ID, treeItems("./notes/../a.txt", "notes\\b.txt"))
	if err != nil {
		t.Fatalf("upload tree failed: %v", err)
	}
	a, b := env.reload(t, files[0].ID), env.reload(t, files[1].ID)
	if *a.ParentID != *b.ParentID {
		t.Fatalf("expected both files in the same notes folder")
	}
	notes := env.reload(t, *a.ParentID)
	if notes.Name != "notes" || *notes.ParentID != docs.ID {
		t.Fatalf("expected notes folder under docs, got %+v", notes)
	}
}

func TestUploadTreeRejectsOversizedFileAtomically(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")

	prev := config.AppConfig
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.MaxFileSize = 4
	config.AppConfig = cfg
	t.Cleanup(func() { config.AppConfig = prev })

	items := []UploadInput{
		{Name: "dir/ok.txt", Size: 2, Content: bytes.NewBufferString("ok")},
		{Name: "dir/big.txt", Size: 10, Content: bytes.NewBufferString("0123456789")},
	}
	_, err := env.svc.File.UploadTree(ctx, 1, 0, items)
	assertAppError(t, err, http.StatusRequestEntityTooLarge, ErrFileTooLarge)

	var count int64
	env.db.Model(&models.File{}).Where("parent_id IS NOT NULL").Count(&count)
	if count != 0 {
		t.Fatalf("expected no rows from a rejected tree, got %d", count)
	}
	if entries, err := os.ReadDir(filepath.Join(env.local.Root(), "files", "1")); err == nil && len(entries) != 0 {
		t.Fatalf("expected staged blobs removed, found %d", len(entries))
	}
	if env.queue.Len() != 0 {
		t.Fatalf("expected no replication units")
	}

	_, err = env.svc.File.UploadTree(ctx, 1, 0, nil)
	assertAppError(t, err, http.StatusBadRequest, ErrEmptySelection)
}
