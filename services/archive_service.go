package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/metrics"
	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DownloadScope string

const (
	ScopeMyFiles      DownloadScope = "my_files"
	ScopeSharedWithMe DownloadScope = "shared_with_me"
	ScopeSharedByMe   DownloadScope = "shared_by_me"
)

type DownloadInput struct {
	Scope    DownloadScope
	ParentID uint
	All      bool
	FileIDs  []uint
}

// DownloadOutput locates the blob to stream back to the client.
type DownloadOutput struct {
	Path        string `json:"-"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Replicated  bool   `json:"-"`
	// Archive marks a generated zip that the caller may discard after use.
	Archive bool `json:"archive"`
}

type ArchiveService interface {
	Build(ctx context.Context, userID uint, fileIDs []uint, collection string) (DownloadOutput, error)
	Download(ctx context.Context, userID uint, in DownloadInput) (DownloadOutput, error)
	Open(ctx context.Context, out DownloadOutput) (io.ReadCloser, error)
	Discard(ctx context.Context, out DownloadOutput) error
}

type archiveService struct {
	txManager TxManager
	tree      repositories.TreeRepository
	files     repositories.FileRepository
	shares    repositories.ShareRepository
	tiers     storage.Tiers
	folders   FolderService
	now       func() time.Time
}

func NewArchiveService(
	txManager TxManager,
	tree repositories.TreeRepository,
	files repositories.FileRepository,
	shares repositories.ShareRepository,
	tiers storage.Tiers,
	folders FolderService,
) ArchiveService {
	return &archiveService{
		txManager: txManager,
		tree:      tree,
		files:     files,
		shares:    shares,
		tiers:     tiers,
		folders:   folders,
		now:       time.Now,
	}
}

type archiveEntry struct {
	name string
	file models.File
}

func (s *archiveService) Build(ctx context.Context, userID uint, fileIDs []uint, collection string) (DownloadOutput, error) {
	if len(fileIDs) == 0 {
		return DownloadOutput{}, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}

	var (
		items   []models.File
		entries []archiveEntry
	)
	// One read transaction gives a consistent listing of every subtree.
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		items, err = s.files.GetAccessibleByIDs(ctx, tx, userID, fileIDs)
		if err != nil {
			return err
		}
		for _, item := range items {
			if !item.IsFolder {
				entries = append(entries, archiveEntry{name: item.Name, file: item})
				continue
			}
			descendants, err := s.tree.Descendants(ctx, tx, item, false)
			if err != nil {
				return err
			}
			entries = append(entries, walkFolder(item, descendants)...)
		}
		return nil
	})
	if err != nil {
		return DownloadOutput{}, mapRepoError(err, "failed to load files")
	}
	if len(items) == 0 {
		return DownloadOutput{}, newAppError(http.StatusNotFound, "file not found", ErrFileNotFound)
	}
	if len(entries) == 0 {
		metrics.ArchivesTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return DownloadOutput{}, newAppError(http.StatusUnprocessableEntity, "nothing to download", ErrNothingToArchive)
	}

	name := fmt.Sprintf("%s_%d.zip", collection, s.now().Unix())
	if len(items) == 1 && items[0].IsFolder {
		name = items[0].Name + ".zip"
	}

	archivePath := path.Join(currentConfig().Storage.ArchivePrefix, uuid.NewString()+".zip")
	if err := s.writeArchive(ctx, archivePath, entries); err != nil {
		metrics.ArchivesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.L().Error("archive build failed", zap.Uint("user_id", userID), zap.Error(err))
		return DownloadOutput{}, storageError("failed to build archive", err)
	}

	metrics.ArchivesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return DownloadOutput{
		Path:        archivePath,
		Name:        name,
		ContentType: "application/zip",
		Archive:     true,
	}, nil
}

// walkFolder lists folder's leaves with paths relative to the archive root.
// Descendants under a trashed folder are unreachable since only active
// children are followed.
func walkFolder(folder models.File, descendants []models.File) []archiveEntry {
	children := make(map[uint][]models.File)
	for _, d := range descendants {
		if d.ParentID != nil {
			children[*d.ParentID] = append(children[*d.ParentID], d)
		}
	}

	var entries []archiveEntry
	var walk func(id uint, prefix string)
	walk = func(id uint, prefix string) {
		for _, child := range children[id] {
			if child.IsFolder {
				walk(child.ID, prefix+child.Name+"/")
				continue
			}
			entries = append(entries, archiveEntry{name: prefix + child.Name, file: child})
		}
	}
	walk(folder.ID, folder.Name+"/")
	return entries
}

// writeArchive streams the zip into the local tier one blob at a time. Any
// read failure aborts the Put, so no partial archive is stored.
func (s *archiveService) writeArchive(ctx context.Context, archivePath string, entries []archiveEntry) error {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		err := s.writeEntries(ctx, pw, entries)
		pw.CloseWithError(err)
		done <- err
	}()

	putErr := s.tiers.Local.Put(ctx, archivePath, pr)
	// Unblocks the writer if Put stopped reading early.
	pr.CloseWithError(errors.New("archive upload stopped"))
	writeErr := <-done

	if writeErr != nil {
		_ = s.tiers.Local.Delete(context.WithoutCancel(ctx), archivePath)
		return writeErr
	}
	return putErr
}

func (s *archiveService) writeEntries(ctx context.Context, w io.Writer, entries []archiveEntry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := s.copyEntry(ctx, zw, e); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (s *archiveService) copyEntry(ctx context.Context, zw *zip.Writer, e archiveEntry) error {
	rc, err := s.tiers.For(e.file.IsReplicated()).Get(ctx, e.file.StoragePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", e.name, err)
	}
	defer rc.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     e.name,
		Method:   zip.Deflate,
		Modified: e.file.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy %s: %w", e.name, err)
	}
	return nil
}

func (s *archiveService) Download(ctx context.Context, userID uint, in DownloadInput) (DownloadOutput, error) {
	if !in.All && len(in.FileIDs) == 0 {
		return DownloadOutput{}, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}

	files, collection, err := s.selectFiles(ctx, userID, in)
	if err != nil {
		return DownloadOutput{}, err
	}
	if len(files) == 0 {
		if in.All {
			return DownloadOutput{}, newAppError(http.StatusUnprocessableEntity, "nothing to download", ErrNothingToArchive)
		}
		return DownloadOutput{}, newAppError(http.StatusNotFound, "file not found", ErrFileNotFound)
	}

	if len(files) == 1 && !files[0].IsFolder {
		f := files[0]
		return DownloadOutput{
			Path:        f.StoragePath,
			Name:        f.Name,
			ContentType: f.MimeType,
			Replicated:  f.IsReplicated(),
		}, nil
	}

	ids := make([]uint, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return s.Build(ctx, userID, ids, collection)
}

func (s *archiveService) selectFiles(ctx context.Context, userID uint, in DownloadInput) ([]models.File, string, error) {
	scope := in.Scope
	if scope == "" {
		scope = ScopeMyFiles
	}

	var (
		files []models.File
		err   error
	)
	switch scope {
	case ScopeMyFiles:
		parent, perr := s.folders.GetFolder(ctx, userID, in.ParentID)
		if perr != nil {
			return nil, "", perr
		}
		if in.All {
			files, err = s.files.ListChildren(ctx, nil, userID, parent.ID)
		} else {
			files, err = s.files.GetByIDsAndUser(ctx, nil, userID, in.FileIDs, false)
		}
		return files, parent.Name, mapRepoError(err, "failed to load files")
	case ScopeSharedWithMe:
		if in.All {
			files, err = s.shares.ListSharedWith(ctx, nil, repositories.SharedListInput{UserID: userID})
		} else {
			files, err = s.files.GetAccessibleByIDs(ctx, nil, userID, in.FileIDs)
		}
		return files, string(scope), mapRepoError(err, "failed to load shared files")
	case ScopeSharedByMe:
		if in.All {
			files, err = s.shares.ListSharedBy(ctx, nil, repositories.SharedListInput{UserID: userID})
		} else {
			files, err = s.files.GetByIDsAndUser(ctx, nil, userID, in.FileIDs, false)
		}
		return files, string(scope), mapRepoError(err, "failed to load shared files")
	default:
		return nil, "", newAppError(http.StatusBadRequest, "unknown download scope", nil)
	}
}

func (s *archiveService) Open(ctx context.Context, out DownloadOutput) (io.ReadCloser, error) {
	rc, err := s.tiers.For(out.Replicated).Get(ctx, out.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newAppError(http.StatusNotFound, "file content not found", ErrFileNotFound)
	}
	if err != nil {
		return nil, storageError("failed to open file", err)
	}
	return rc, nil
}

func (s *archiveService) Discard(ctx context.Context, out DownloadOutput) error {
	if !out.Archive {
		return nil
	}
	return s.tiers.Local.Delete(ctx, out.Path)
}
