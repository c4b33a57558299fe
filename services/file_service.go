package services

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/metrics"
	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/storage"
	"github.com/greatsami/g-drive-clone/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FileEntry struct {
	models.File
	Starred bool `json:"starred"`
}

type FileListOutput struct {
	Folder     models.File          `json:"folder"`
	Ancestors  []models.File        `json:"ancestors"`
	Files      []FileEntry          `json:"files"`
	Pagination utils.PaginationData `json:"pagination"`
}

type ListFilesInput struct {
	ParentID       uint
	Search         string
	FavouritesOnly bool
	Page           int
	PageSize       int
}

type UploadInput struct {
	Name     string
	MimeType string
	// Size is the declared size; the stored size is what Content yields.
	Size    int64
	Content io.Reader
}

type FileService interface {
	ListFiles(ctx context.Context, userID uint, in ListFilesInput) (FileListOutput, error)
	UploadFile(ctx context.Context, userID uint, parentID uint, in UploadInput) (models.File, error)
	UploadTree(ctx context.Context, userID uint, parentID uint, items []UploadInput) ([]models.File, error)
	MoveToTrash(ctx context.Context, userID uint, fileIDs []uint) (int64, error)
	TrashAll(ctx context.Context, userID uint, parentID uint) (int64, error)
	Rename(ctx context.Context, userID uint, fileID uint, name string) (models.File, error)
	Move(ctx context.Context, userID uint, fileID uint, parentID uint) (models.File, error)
}

type fileService struct {
	txManager TxManager
	tree      repositories.TreeRepository
	files     repositories.FileRepository
	stars     repositories.StarRepository
	queue     repositories.ReplicationQueue
	tiers     storage.Tiers
	locks     *treeMutex
	folders   FolderService
	resolver  folderResolver
}

func NewFileService(
	txManager TxManager,
	tree repositories.TreeRepository,
	files repositories.FileRepository,
	stars repositories.StarRepository,
	queue repositories.ReplicationQueue,
	tiers storage.Tiers,
	locks *treeMutex,
	folders FolderService,
) FileService {
	return &fileService{
		txManager: txManager,
		tree:      tree,
		files:     files,
		stars:     stars,
		queue:     queue,
		tiers:     tiers,
		locks:     locks,
		folders:   folders,
		resolver:  folderResolver{tree: tree, files: files},
	}
}

func (s *fileService) ListFiles(ctx context.Context, userID uint, in ListFilesInput) (FileListOutput, error) {
	cfg := currentConfig()
	page, pageSize := utils.NormalizePage(in.Page, in.PageSize, cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)

	crumbs, err := s.folders.Ancestors(ctx, userID, in.ParentID)
	if err != nil {
		return FileListOutput{}, err
	}
	folder := crumbs[len(crumbs)-1]

	query := repositories.ListFilesInput{
		UserID:         userID,
		ParentID:       folder.ID,
		Search:         strings.TrimSpace(in.Search),
		FavouritesOnly: in.FavouritesOnly,
		Offset:         utils.Offset(page, pageSize),
		Limit:          pageSize,
	}
	total, err := s.files.CountByParent(ctx, nil, query)
	if err != nil {
		return FileListOutput{}, mapRepoError(err, "failed to count files")
	}
	files, err := s.files.ListByParent(ctx, nil, query)
	if err != nil {
		return FileListOutput{}, mapRepoError(err, "failed to list files")
	}

	ids := make([]uint, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	starredIDs, err := s.stars.ListStarredFileIDs(ctx, nil, userID, ids)
	if err != nil {
		return FileListOutput{}, mapRepoError(err, "failed to load favourites")
	}
	starred := make(map[uint]bool, len(starredIDs))
	for _, id := range starredIDs {
		starred[id] = true
	}

	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, FileEntry{File: f, Starred: starred[f.ID]})
	}

	return FileListOutput{
		Folder:     folder,
		Ancestors:  crumbs[:len(crumbs)-1],
		Files:      entries,
		Pagination: utils.NewPagination(page, pageSize, total),
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *fileService) UploadFile(ctx context.Context, userID uint, parentID uint, in UploadInput) (models.File, error) {
	staged, err := s.stage(ctx, userID, nil, in)
	if err != nil {
		return models.File{}, err
	}
	files, err := s.commitUploads(ctx, userID, parentID, []stagedUpload{staged})
	if err != nil {
		return models.File{}, err
	}
	return files[0], nil
}

// UploadTree stores several files in one request. A Name may be a relative
// path such as "photos/2024/a.jpg"; its folders are created under parentID,
// once per distinct path, and every row is inserted in one transaction.
func (s *fileService) UploadTree(ctx context.Context, userID uint, parentID uint, items []UploadInput) ([]models.File, error) {
	if len(items) == 0 {
		return nil, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}

	staged := make([]stagedUpload, 0, len(items))
	for _, in := range items {
		dirs, name := splitUploadPath(in.Name)
		in.Name = name
		st, err := s.stage(ctx, userID, dirs, in)
		if err != nil {
			s.discard(ctx, staged)
			return nil, err
		}
		staged = append(staged, st)
	}
	return s.commitUploads(ctx, userID, parentID, staged)
}

type stagedUpload struct {
	dirs []string
	file models.File
}

// splitUploadPath separates the folder segments of a relative upload path
// from the file name. Empty and dot segments are dropped.
func splitUploadPath(p string) ([]string, string) {
	parts := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	var dirs []string
	for _, d := range parts[:len(parts)-1] {
		d = strings.TrimSpace(d)
		if d == "" || d == "." || d == ".." {
			continue
		}
		dirs = append(dirs, sanitizeFilename(d))
	}
	return dirs, parts[len(parts)-1]
}

// stage validates one upload and writes its bytes to the local tier.
func (s *fileService) stage(ctx context.Context, userID uint, dirs []string, in UploadInput) (stagedUpload, error) {
	name := sanitizeFilename(in.Name)
	if name == "" {
		return stagedUpload{}, newAppError(http.StatusBadRequest, "file name is required", ErrNameRequired)
	}
	if in.Content == nil {
		return stagedUpload{}, newAppError(http.StatusBadRequest, "file content is required", nil)
	}
	maxSize := currentConfig().Storage.MaxFileSize
	if maxSize > 0 && in.Size > maxSize {
		return stagedUpload{}, newAppErrorWithData(http.StatusRequestEntityTooLarge, "file is too large", map[string]interface{}{
			"name":          name,
			"max_file_size": maxSize,
		}, ErrFileTooLarge)
	}

	mimeType := in.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = getMimeType(filepath.Ext(name))
	}

	blobPath := blobPathFor(userID, name)
	counter := &countingReader{r: in.Content}
	if err := s.tiers.Local.Put(ctx, blobPath, counter); err != nil {
		return stagedUpload{}, storageError("failed to store file", err)
	}

	return stagedUpload{
		dirs: dirs,
		file: models.File{
			Name:        name,
			StoragePath: blobPath,
			MimeType:    mimeType,
			FileSize:    counter.n,
			Replication: models.ReplicationPending,
		},
	}, nil
}

func (s *fileService) discard(ctx context.Context, staged []stagedUpload) {
	for _, st := range staged {
		if err := s.tiers.Local.Delete(context.WithoutCancel(ctx), st.file.StoragePath); err != nil {
			logger.L().Warn("failed to remove orphaned upload", zap.String("path", st.file.StoragePath), zap.Error(err))
		}
	}
}

// commitUploads inserts staged uploads and their folders under one tree
// lock, then enqueues one replication unit per file.
func (s *fileService) commitUploads(ctx context.Context, userID uint, parentID uint, staged []stagedUpload) ([]models.File, error) {
	unlock := s.locks.Lock(userID)
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		parent, err := s.resolver.resolveFolder(ctx, tx, userID, parentID)
		if err != nil {
			return err
		}
		folders := map[string]uint{"": parent.ID}
		for i := range staged {
			folderID, err := s.ensureFolders(ctx, tx, folders, staged[i].dirs)
			if err != nil {
				return err
			}
			if err := s.tree.InsertUnder(ctx, tx, folderID, &staged[i].file); err != nil {
				return err
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		s.discard(ctx, staged)
		return nil, mapRepoError(err, "failed to save file")
	}

	files := make([]models.File, 0, len(staged))
	for _, st := range staged {
		metrics.UploadsTotal.Inc()
		metrics.UploadedBytes.Add(float64(st.file.FileSize))
		if err := s.queue.Push(ctx, st.file.ID); err != nil {
			// The pending sweep picks the file up later.
			logger.L().Warn("failed to enqueue replication", zap.Uint("file_id", st.file.ID), zap.Error(err))
		}
		files = append(files, st.file)
	}
	return files, nil
}

// ensureFolders walks dirs below known[""], creating folders not seen yet in
// this upload, and returns the innermost folder id.
func (s *fileService) ensureFolders(ctx context.Context, tx *gorm.DB, known map[string]uint, dirs []string) (uint, error) {
	key := ""
	parentID := known[""]
	for _, d := range dirs {
		key += "/" + d
		if id, ok := known[key]; ok {
			parentID = id
			continue
		}
		folder := models.File{
			Name:        d,
			IsFolder:    true,
			Replication: models.ReplicationNone,
		}
		if err := s.tree.InsertUnder(ctx, tx, parentID, &folder); err != nil {
			return 0, err
		}
		known[key] = folder.ID
		parentID = folder.ID
	}
	return parentID, nil
}

func (s *fileService) MoveToTrash(ctx context.Context, userID uint, fileIDs []uint) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var trashed int64
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.tree.GetRoot(ctx, tx, userID, true); err != nil {
			return err
		}
		files, err := s.files.GetByIDsAndUser(ctx, tx, userID, fileIDs, false)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, f := range files {
			if f.IsRoot() {
				return repositories.ErrRootImmutable
			}
			n, err := s.tree.TrashSubtree(ctx, tx, f, now)
			if err != nil {
				return err
			}
			trashed += n
		}
		return nil
	})
	if err != nil {
		return 0, mapRepoError(err, "failed to move files to trash")
	}
	return trashed, nil
}

func (s *fileService) TrashAll(ctx context.Context, userID uint, parentID uint) (int64, error) {
	folder, err := s.folders.GetFolder(ctx, userID, parentID)
	if err != nil {
		return 0, err
	}
	children, err := s.files.ListChildren(ctx, nil, userID, folder.ID)
	if err != nil {
		return 0, mapRepoError(err, "failed to list files")
	}
	if len(children) == 0 {
		return 0, nil
	}
	ids := make([]uint, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return s.MoveToTrash(ctx, userID, ids)
}

func (s *fileService) Rename(ctx context.Context, userID uint, fileID uint, name string) (models.File, error) {
	name = sanitizeFilename(name)
	if name == "" {
		return models.File{}, newAppError(http.StatusBadRequest, "name is required", ErrNameRequired)
	}

	var file models.File
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		current, err := s.files.GetByIDAndUser(ctx, tx, fileID, userID, false)
		if err != nil {
			return err
		}
		if current.IsRoot() {
			return repositories.ErrRootImmutable
		}
		if err := s.files.Rename(ctx, tx, fileID, userID, name); err != nil {
			return err
		}
		file, err = s.files.GetByIDAndUser(ctx, tx, fileID, userID, false)
		return err
	})
	if err != nil {
		return models.File{}, mapRepoError(err, "failed to rename file")
	}
	return file, nil
}

func (s *fileService) Move(ctx context.Context, userID uint, fileID uint, parentID uint) (models.File, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var file models.File
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.files.GetByIDAndUser(ctx, tx, fileID, userID, false); err != nil {
			return err
		}
		parent, err := s.resolver.resolveFolder(ctx, tx, userID, parentID)
		if err != nil {
			return err
		}
		if err := s.tree.RelocateSubtree(ctx, tx, fileID, parent.ID); err != nil {
			return err
		}
		file, err = s.files.GetByIDAndUser(ctx, tx, fileID, userID, false)
		return err
	})
	if err != nil {
		return models.File{}, mapRepoError(err, "failed to move file")
	}
	return file, nil
}
