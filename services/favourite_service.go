package services

import (
	"context"
	"errors"

	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/repositories"

	"gorm.io/gorm"
)

type FavouriteService interface {
	// Toggle stars fileID for userID if it is not starred, else unstars it,
	// and reports the resulting state.
	Toggle(ctx context.Context, userID uint, fileID uint) (bool, error)
}

type favouriteService struct {
	txManager TxManager
	files     repositories.FileRepository
	stars     repositories.StarRepository
}

func NewFavouriteService(txManager TxManager, files repositories.FileRepository, stars repositories.StarRepository) FavouriteService {
	return &favouriteService{txManager: txManager, files: files, stars: stars}
}

func (s *favouriteService) Toggle(ctx context.Context, userID uint, fileID uint) (bool, error) {
	var starred bool
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		accessible, err := s.files.GetAccessibleByIDs(ctx, tx, userID, []uint{fileID})
		if err != nil {
			return err
		}
		if len(accessible) == 0 {
			return gorm.ErrRecordNotFound
		}

		star, err := s.stars.Get(ctx, tx, fileID, userID)
		switch {
		case err == nil:
			starred = false
			return s.stars.DeleteByID(ctx, tx, star.ID)
		case errors.Is(err, gorm.ErrRecordNotFound):
			starred = true
			return s.stars.Create(ctx, tx, &models.StarredFile{FileID: fileID, UserID: userID})
		default:
			return err
		}
	})
	if err != nil {
		return false, mapRepoError(err, "failed to update favourites")
	}
	return starred, nil
}
