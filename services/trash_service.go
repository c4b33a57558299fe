package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/metrics"
	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/storage"
	"github.com/greatsami/g-drive-clone/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TrashListInput struct {
	Search   string
	Page     int
	PageSize int
}

type TrashListOutput struct {
	Files      []models.File        `json:"files"`
	Pagination utils.PaginationData `json:"pagination"`
}

type TrashService interface {
	ListTrash(ctx context.Context, userID uint, in TrashListInput) (TrashListOutput, error)
	Restore(ctx context.Context, userID uint, fileIDs []uint) (int64, error)
	DeleteForever(ctx context.Context, userID uint, fileIDs []uint) (int64, error)
	EmptyTrash(ctx context.Context, userID uint) (int64, error)
}

type trashService struct {
	txManager TxManager
	files     repositories.FileRepository
	purger    *purger
}

func NewTrashService(txManager TxManager, files repositories.FileRepository, purger *purger) TrashService {
	return &trashService{
		txManager: txManager,
		files:     files,
		purger:    purger,
	}
}

func (s *trashService) ListTrash(ctx context.Context, userID uint, in TrashListInput) (TrashListOutput, error) {
	cfg := currentConfig()
	page, pageSize := utils.NormalizePage(in.Page, in.PageSize, cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)

	query := repositories.TrashListInput{
		UserID: userID,
		Search: strings.TrimSpace(in.Search),
		Offset: utils.Offset(page, pageSize),
		Limit:  pageSize,
	}
	total, err := s.files.CountTrashed(ctx, nil, query)
	if err != nil {
		return TrashListOutput{}, mapRepoError(err, "failed to count trash")
	}
	files, err := s.files.ListTrashed(ctx, nil, query)
	if err != nil {
		return TrashListOutput{}, mapRepoError(err, "failed to list trash")
	}
	return TrashListOutput{
		Files:      files,
		Pagination: utils.NewPagination(page, pageSize, total),
	}, nil
}

// Restore clears the trash mark on each given file only. Descendants trashed
// together with it stay trashed and can be restored one by one.
func (s *trashService) Restore(ctx context.Context, userID uint, fileIDs []uint) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}
	var restored int64
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, id := range fileIDs {
			n, err := s.files.Restore(ctx, tx, id, userID)
			if err != nil {
				return err
			}
			restored += n
		}
		return nil
	})
	if err != nil {
		return 0, mapRepoError(err, "failed to restore files")
	}
	return restored, nil
}

func (s *trashService) DeleteForever(ctx context.Context, userID uint, fileIDs []uint) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}

	files, err := s.files.GetByIDsAndUser(ctx, nil, userID, fileIDs, true)
	if err != nil {
		return 0, mapRepoError(err, "failed to load files")
	}
	for _, f := range files {
		if !f.IsTrashed() {
			return 0, newAppErrorWithData(http.StatusBadRequest, "only trashed files can be deleted forever", map[string]uint{
				"file_id": f.ID,
			}, ErrNotTrashed)
		}
	}

	var removed int64
	for _, f := range files {
		n, err := s.purger.purge(ctx, userID, f.ID)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (s *trashService) EmptyTrash(ctx context.Context, userID uint) (int64, error) {
	files, err := s.files.ListTrashed(ctx, nil, repositories.TrashListInput{UserID: userID, Limit: -1})
	if err != nil {
		return 0, mapRepoError(err, "failed to list trash")
	}
	var removed int64
	for _, f := range files {
		n, err := s.purger.purge(ctx, userID, f.ID)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// purger permanently removes a subtree: blobs first, then rows. Blob
// deletion treats a missing blob as done, so a purge interrupted between the
// two steps can simply be repeated.
type purger struct {
	txManager TxManager
	tree      repositories.TreeRepository
	files     repositories.FileRepository
	stars     repositories.StarRepository
	shares    repositories.ShareRepository
	tiers     storage.Tiers
	locks     *treeMutex
}

// purge returns the number of rows removed; an id that no longer exists is a no-op.
func (p *purger) purge(ctx context.Context, userID uint, fileID uint) (int64, error) {
	unlock := p.locks.Lock(userID)
	defer unlock()

	node, err := p.files.GetByIDAndUser(ctx, nil, fileID, userID, true)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, mapRepoError(err, "failed to load file")
	}
	if node.IsRoot() {
		return 0, newAppError(http.StatusBadRequest, "the root folder cannot be deleted", ErrRootImmutable)
	}

	descendants, err := p.tree.Descendants(ctx, nil, node, true)
	if err != nil {
		return 0, mapRepoError(err, "failed to load subtree")
	}
	subtree := append([]models.File{node}, descendants...)

	for _, f := range subtree {
		if f.IsFolder || f.StoragePath == "" {
			continue
		}
		if err := p.tiers.Local.Delete(ctx, f.StoragePath); err != nil {
			return 0, storageError("failed to delete local content", err)
		}
		// A pending file may already have a remote copy mid-replication.
		if err := p.tiers.Remote.Delete(ctx, f.StoragePath); err != nil {
			return 0, storageError("failed to delete remote content", err)
		}
	}

	ids := make([]uint, 0, len(subtree))
	for _, f := range subtree {
		ids = append(ids, f.ID)
	}

	var removed int64
	err = p.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := p.shares.DeleteByFileIDs(ctx, tx, ids); err != nil {
			return err
		}
		if err := p.stars.DeleteByFileIDs(ctx, tx, ids); err != nil {
			return err
		}
		n, err := p.tree.RemoveSubtree(ctx, tx, node.ID)
		removed = n
		return err
	})
	if err != nil {
		return 0, mapRepoError(err, "failed to delete files")
	}

	// A replication that finished its copy after the first pass but before
	// the rows went away left a remote blob behind. Later copies find the row
	// gone and clean up after themselves.
	for _, f := range subtree {
		if f.IsFolder || f.StoragePath == "" {
			continue
		}
		if err := p.tiers.Remote.Delete(context.WithoutCancel(ctx), f.StoragePath); err != nil {
			logger.L().Warn("failed to delete remote content after purge",
				zap.String("path", f.StoragePath), zap.Error(err))
		}
	}

	metrics.PurgedFilesTotal.Add(float64(removed))
	logger.L().Info("files deleted forever",
		zap.Uint("user_id", userID),
		zap.Uint("file_id", node.ID),
		zap.Int64("rows", removed))
	return removed, nil
}
