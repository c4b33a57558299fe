package services

import (
	"context"
	"errors"

	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/repositories"

	"gorm.io/gorm"
)

const defaultRootName = "My Files"

type folderResolver struct {
	tree  repositories.TreeRepository
	files repositories.FileRepository
}

// getOrCreateUserRoot returns the owner's root, creating it on first use.
// Callers hold the owner's treeMutex.
func (r folderResolver) getOrCreateUserRoot(ctx context.Context, tx *gorm.DB, userID uint, name string) (models.File, error) {
	root, err := r.tree.GetRoot(ctx, tx, userID, false)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.File{}, err
	}
	if name == "" {
		name = defaultRootName
	}
	return r.tree.CreateRoot(ctx, tx, userID, name)
}

// resolveFolder maps folderID to an active folder owned by userID; 0 is the root.
func (r folderResolver) resolveFolder(ctx context.Context, tx *gorm.DB, userID uint, folderID uint) (models.File, error) {
	if folderID == 0 {
		return r.getOrCreateUserRoot(ctx, tx, userID, "")
	}
	folder, err := r.files.GetByIDAndUser(ctx, tx, folderID, userID, false)
	if err != nil {
		return models.File{}, err
	}
	if !folder.IsFolder {
		return models.File{}, repositories.ErrInvalidParent
	}
	return folder, nil
}
