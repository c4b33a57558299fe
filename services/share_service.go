package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/metrics"
	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/notify"
	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ShareNotifier tells a recipient that files were shared with them.
type ShareNotifier interface {
	NotifyShared(ctx context.Context, event notify.ShareNotification) error
}

type ShareInput struct {
	ParentID uint
	All      bool
	FileIDs  []uint
	Email    string
}

type SharedListInput struct {
	Search   string
	Page     int
	PageSize int
}

type SharedListOutput struct {
	Files      []models.File        `json:"files"`
	Pagination utils.PaginationData `json:"pagination"`
}

type ShareService interface {
	ShareWith(ctx context.Context, ownerID uint, in ShareInput) ([]models.File, error)
	SharedWithMe(ctx context.Context, userID uint, in SharedListInput) (SharedListOutput, error)
	SharedByMe(ctx context.Context, userID uint, in SharedListInput) (SharedListOutput, error)
}

type shareService struct {
	txManager TxManager
	users     repositories.UserRepository
	files     repositories.FileRepository
	shares    repositories.ShareRepository
	folders   FolderService
	notifier  ShareNotifier
}

func NewShareService(
	txManager TxManager,
	users repositories.UserRepository,
	files repositories.FileRepository,
	shares repositories.ShareRepository,
	folders FolderService,
	notifier ShareNotifier,
) ShareService {
	if notifier == nil {
		notifier = notify.LogShareNotifier{}
	}
	return &shareService{
		txManager: txManager,
		users:     users,
		files:     files,
		shares:    shares,
		folders:   folders,
		notifier:  notifier,
	}
}

func (s *shareService) ShareWith(ctx context.Context, ownerID uint, in ShareInput) ([]models.File, error) {
	if !in.All && len(in.FileIDs) == 0 {
		return nil, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, newAppError(http.StatusBadRequest, "recipient e-mail is required", ErrEmailRequired)
	}

	recipient, err := s.users.GetByEmail(ctx, nil, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newAppError(http.StatusNotFound, "no user with this e-mail", ErrRecipientNotFound)
	}
	if err != nil {
		return nil, mapRepoError(err, "failed to look up recipient")
	}
	if recipient.ID == ownerID {
		return nil, newAppError(http.StatusBadRequest, "files cannot be shared with their owner", ErrShareWithSelf)
	}

	files, err := s.selectOwned(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, newAppError(http.StatusBadRequest, "no files selected", ErrEmptySelection)
	}

	ids := make([]uint, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		existing, err := s.shares.ListSharedFileIDs(ctx, tx, recipient.ID, ids)
		if err != nil {
			return err
		}
		already := make(map[uint]bool, len(existing))
		for _, id := range existing {
			already[id] = true
		}
		batch := make([]models.FileShare, 0, len(ids))
		for _, id := range ids {
			if !already[id] {
				batch = append(batch, models.FileShare{FileID: id, UserID: recipient.ID})
			}
		}
		return s.shares.CreateBatch(ctx, tx, batch)
	})
	if err != nil {
		return nil, mapRepoError(err, "failed to share files")
	}

	s.notify(ctx, ownerID, recipient, files)
	return files, nil
}

func (s *shareService) selectOwned(ctx context.Context, ownerID uint, in ShareInput) ([]models.File, error) {
	if in.All {
		parent, err := s.folders.GetFolder(ctx, ownerID, in.ParentID)
		if err != nil {
			return nil, err
		}
		files, err := s.files.ListChildren(ctx, nil, ownerID, parent.ID)
		if err != nil {
			return nil, mapRepoError(err, "failed to list files")
		}
		return files, nil
	}
	files, err := s.files.GetByIDsAndUser(ctx, nil, ownerID, in.FileIDs, false)
	if err != nil {
		return nil, mapRepoError(err, "failed to load files")
	}
	if len(files) == 0 {
		return nil, newAppError(http.StatusNotFound, "file not found", ErrFileNotFound)
	}
	for _, f := range files {
		if f.IsRoot() {
			return nil, newAppError(http.StatusBadRequest, "the root folder cannot be shared", ErrRootImmutable)
		}
	}
	return files, nil
}

// notify runs after commit; a failed notification never undoes the share.
func (s *shareService) notify(ctx context.Context, ownerID uint, recipient models.User, files []models.File) {
	event := notify.ShareNotification{
		OwnerID:        ownerID,
		RecipientID:    recipient.ID,
		RecipientEmail: recipient.Email,
		SharedAt:       time.Now(),
	}
	if owner, err := s.users.GetByID(ctx, nil, ownerID); err == nil {
		event.OwnerName = owner.Username
	}
	for _, f := range files {
		event.FileIDs = append(event.FileIDs, f.ID)
		event.FileNames = append(event.FileNames, f.Name)
	}

	if err := s.notifier.NotifyShared(ctx, event); err != nil {
		metrics.ShareNotificationsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.L().Warn("share notification failed",
			zap.Uint("owner_id", ownerID),
			zap.Uint("recipient_id", recipient.ID),
			zap.Error(err))
		return
	}
	metrics.ShareNotificationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
}

func (s *shareService) SharedWithMe(ctx context.Context, userID uint, in SharedListInput) (SharedListOutput, error) {
	return s.list(ctx, userID, in, s.shares.CountSharedWith, s.shares.ListSharedWith)
}

func (s *shareService) SharedByMe(ctx context.Context, userID uint, in SharedListInput) (SharedListOutput, error) {
	return s.list(ctx, userID, in, s.shares.CountSharedBy, s.shares.ListSharedBy)
}

func (s *shareService) list(
	ctx context.Context,
	userID uint,
	in SharedListInput,
	count func(context.Context, *gorm.DB, repositories.SharedListInput) (int64, error),
	list func(context.Context, *gorm.DB, repositories.SharedListInput) ([]models.File, error),
) (SharedListOutput, error) {
	cfg := currentConfig()
	page, pageSize := utils.NormalizePage(in.Page, in.PageSize, cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)

	query := repositories.SharedListInput{
		UserID: userID,
		Search: strings.TrimSpace(in.Search),
		Offset: utils.Offset(page, pageSize),
		Limit:  pageSize,
	}
	total, err := count(ctx, nil, query)
	if err != nil {
		return SharedListOutput{}, mapRepoError(err, "failed to count shared files")
	}
	files, err := list(ctx, nil, query)
	if err != nil {
		return SharedListOutput{}, mapRepoError(err, "failed to list shared files")
	}
	return SharedListOutput{
		Files:      files,
		Pagination: utils.NewPagination(page, pageSize, total),
	}, nil
}
