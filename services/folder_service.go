package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/repositories"

	"gorm.io/gorm"
)

type FolderService interface {
	GetOrCreateRoot(ctx context.Context, userID uint) (models.File, error)
	GetFolder(ctx context.Context, userID uint, folderID uint) (models.File, error)
	CreateFolder(ctx context.Context, userID uint, parentID uint, name string) (models.File, error)
	// Ancestors returns the breadcrumb trail from the root down to folderID inclusive.
	Ancestors(ctx context.Context, userID uint, folderID uint) ([]models.File, error)
}

type folderService struct {
	txManager TxManager
	tree      repositories.TreeRepository
	files     repositories.FileRepository
	locks     *treeMutex
	resolver  folderResolver
}

func NewFolderService(
	txManager TxManager,
	tree repositories.TreeRepository,
	files repositories.FileRepository,
	locks *treeMutex,
) FolderService {
	return &folderService{
		txManager: txManager,
		tree:      tree,
		files:     files,
		locks:     locks,
		resolver:  folderResolver{tree: tree, files: files},
	}
}

func (s *folderService) GetOrCreateRoot(ctx context.Context, userID uint) (models.File, error) {
	if root, err := s.tree.GetRoot(ctx, nil, userID, false); err == nil {
		return root, nil
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var root models.File
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		root, err = s.resolver.getOrCreateUserRoot(ctx, tx, userID, "")
		return err
	})
	if err != nil {
		return models.File{}, newAppError(http.StatusInternalServerError, "failed to load root folder", err)
	}
	return root, nil
}

func (s *folderService) GetFolder(ctx context.Context, userID uint, folderID uint) (models.File, error) {
	if folderID == 0 {
		return s.GetOrCreateRoot(ctx, userID)
	}
	folder, err := s.resolver.resolveFolder(ctx, nil, userID, folderID)
	if err != nil {
		return models.File{}, mapRepoError(err, "failed to load folder")
	}
	return folder, nil
}

func (s *folderService) CreateFolder(ctx context.Context, userID uint, parentID uint, name string) (models.File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.File{}, newAppError(http.StatusBadRequest, "folder name is required", ErrNameRequired)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	folder := models.File{
		Name:        name,
		IsFolder:    true,
		Replication: models.ReplicationNone,
	}
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		parent, err := s.resolver.resolveFolder(ctx, tx, userID, parentID)
		if err != nil {
			return err
		}
		return s.tree.InsertUnder(ctx, tx, parent.ID, &folder)
	})
	if err != nil {
		return models.File{}, mapRepoError(err, "failed to create folder")
	}
	return folder, nil
}

func (s *folderService) Ancestors(ctx context.Context, userID uint, folderID uint) ([]models.File, error) {
	folder, err := s.GetFolder(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.tree.Ancestors(ctx, nil, folder, false)
	if err != nil {
		return nil, mapRepoError(err, "failed to load breadcrumbs")
	}
	return append(ancestors, folder), nil
}
