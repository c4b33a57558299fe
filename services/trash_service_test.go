package services

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/greatsami/g-drive-clone/models"
)

func TestRestoreOnlyRestoresTheNode(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	docs := env.folder(t, 1, 0, "docs")
	leaf := env.upload(t, 1, docs.ID, "a.txt", "a")

	if _, err := env.svc.File.MoveToTrash(context.Background(), 1, []uint{docs.ID}); err != nil {
		t.Fatalf("trash failed: %v", err)
	}
	n, err := env.svc.Trash.Restore(context.Background(), 1, []uint{docs.ID})
	if err != nil || n != 1 {
		t.Fatalf("expected one restored row, n=%d err=%v", n, err)
	}
	if env.reload(t, docs.ID).IsTrashed() {
		t.Fatalf("expected folder restored")
	}
	if !env.reload(t, leaf.ID).IsTrashed() {
		t.Fatalf("expected child to stay in the trash")
	}

	n, err = env.svc.Trash.Restore(context.Background(), 1, []uint{docs.ID, 9999})
	if err != nil || n != 0 {
		t.Fatalf("expected no-op restore, n=%d err=%v", n, err)
	}
}

func TestListTrash(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	a := env.upload(t, 1, 0, "a.txt", "a")
	env.upload(t, 1, 0, "b.txt", "b")
	if _, err := env.svc.File.MoveToTrash(context.Background(), 1, []uint{a.ID}); err != nil {
		t.Fatalf("trash failed: %v", err)
	}

	out, err := env.svc.Trash.ListTrash(context.Background(), 1, TrashListInput{})
	if err != nil {
		t.Fatalf("list trash failed: %v", err)
	}
	if len(out.Files) != 1 || out.Files[0].ID != a.ID || out.Pagination.Total != 1 {
		t.Fatalf("unexpected trash listing %+v", out)
	}
}

func TestDeleteForeverRequiresTrashedState(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, 1, "alice")
	f := env.upload(t, 1, 0, "a.txt", "a")

	_, err := env.svc.Trash.DeleteForever(context.Background(), 1, []uint{f.ID})
	assertAppError(t, err, http.StatusBadRequest, ErrNotTrashed)
	if !env.exists(t, f.ID) {
		t.Fatalf("active file must survive")
	}
}

func TestDeleteForeverRemovesRowsBlobsAndRelations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	env.user(t, 2, "bob")
	docs := env.folder(t, 1, 0, "docs")
	local := env.upload(t, 1, docs.ID, "local.txt", "l")
	replicated := env.upload(t, 1, docs.ID, "remote.txt", "r")
	keep := env.upload(t, 1, 0, "keep.txt", "k")

	if err := env.svc.Replication.Replicate(ctx, replicated.ID); err != nil {
		t.Fatalf("replicate failed: %v", err)
	}
	if _, err := env.svc.Share.ShareWith(ctx, 1, ShareInput{FileIDs: []uint{docs.ID}, Email: "bob@example.com"}); err != nil {
		t.Fatalf("share failed: %v", err)
	}
	if _, err := env.svc.Favourite.Toggle(ctx, 1, local.ID); err != nil {
		t.Fatalf("star failed: %v", err)
	}
	if _, err := env.svc.File.MoveToTrash(ctx, 1, []uint{docs.ID}); err != nil {
		t.Fatalf("trash failed: %v", err)
	}

	n, err := env.svc.Trash.DeleteForever(ctx, 1, []uint{docs.ID})
	if err != nil {
		t.Fatalf("delete forever failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows removed, got %d", n)
	}
	for _, id := range []uint{docs.ID, local.ID, replicated.ID} {
		if env.exists(t, id) {
			t.Fatalf("expected row %d to be gone", id)
		}
	}
	if blobExists(t, env.local, local.StoragePath) || blobExists(t, env.local, replicated.StoragePath) {
		t.Fatalf("expected local blobs removed")
	}
	if blobExists(t, env.remote, replicated.StoragePath) {
		t.Fatalf("expected remote blob removed")
	}

	var shares, stars int64
	env.db.Model(&models.FileShare{}).Count(&shares)
	env.db.Model(&models.StarredFile{}).Count(&stars)
	if shares != 0 || stars != 0 {
		t.Fatalf("expected relations removed, shares=%d stars=%d", shares, stars)
	}

	root, _ := env.svc.Folder.GetOrCreateRoot(ctx, 1)
	root = env.reload(t, root.ID)
	if root.Rgt != 4 {
		t.Fatalf("expected bound space to close around keep.txt, root rgt=%d", root.Rgt)
	}
	if k := env.reload(t, keep.ID); k.Lft != 2 || k.Rgt != 3 {
		t.Fatalf("expected keep.txt at [2,3], got [%d,%d]", k.Lft, k.Rgt)
	}

	n, err = env.svc.Trash.DeleteForever(ctx, 1, []uint{docs.ID})
	if err != nil || n != 0 {
		t.Fatalf("expected second delete to be a no-op, n=%d err=%v", n, err)
	}
}

func TestDeleteForeverToleratesMissingBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	f := env.upload(t, 1, 0, "a.txt", "a")
	if err := env.local.Delete(ctx, f.StoragePath); err != nil {
		t.Fatalf("delete blob failed: %v", err)
	}
	if _, err := env.svc.File.MoveToTrash(ctx, 1, []uint{f.ID}); err != nil {
		t.Fatalf("trash failed: %v", err)
	}

	if _, err := env.svc.Trash.DeleteForever(ctx, 1, []uint{f.ID}); err != nil {
		t.Fatalf("missing blob should count as deleted, got %v", err)
	}
	if env.exists(t, f.ID) {
		t.Fatalf("expected row removed")
	}
}

func TestEmptyTrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	docs := env.folder(t, 1, 0, "docs")
	env.upload(t, 1, docs.ID, "a.txt", "a")
	b := env.upload(t, 1, 0, "b.txt", "b")
	c := env.upload(t, 1, 0, "c.txt", "c")

	if _, err := env.svc.File.MoveToTrash(ctx, 1, []uint{docs.ID, b.ID}); err != nil {
		t.Fatalf("trash failed: %v", err)
	}
	n, err := env.svc.Trash.EmptyTrash(ctx, 1)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 rows purged, n=%d err=%v", n, err)
	}
	if !env.exists(t, c.ID) {
		t.Fatalf("active file must survive empty trash")
	}
	out, _ := env.svc.Trash.ListTrash(ctx, 1, TrashListInput{})
	if len(out.Files) != 0 {
		t.Fatalf("expected empty trash, got %d", len(out.Files))
	}
}

func TestDeleteForeverRemovesRemoteCopyOfPendingFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, "alice")
	f := env.upload(t, 1, 0, "a.txt", "alpha")

	// Copy landed but the state flip has not happened yet.
	if err := env.remote.Put(ctx, f.StoragePath, bytes.NewBufferString("alpha")); err != nil {
		t.Fatalf("seed remote failed: %v", err)
	}
	if env.reload(t, f.ID).IsReplicated() {
		t.Fatalf("file should still be pending")
	}
	if _, err := env.svc.File.MoveToTrash(ctx, 1, []uint{f.ID}); err != nil {
		t.Fatalf("trash failed: %v", err)
	}

	if _, err := env.svc.Trash.DeleteForever(ctx, 1, []uint{f.ID}); err != nil {
		t.Fatalf("delete forever failed: %v", err)
	}
	if blobExists(t, env.remote, f.StoragePath) {
		t.Fatalf("expected remote copy of pending file removed")
	}
}
