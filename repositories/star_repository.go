package repositories

import (
	"context"

	"github.com/greatsami/g-drive-clone/models"

	"gorm.io/gorm"
)

type GormStarRepository struct {
	db *gorm.DB
}

func NewGormStarRepository(db *gorm.DB) *GormStarRepository {
	return &GormStarRepository{db: db}
}

func (r *GormStarRepository) Get(_ context.Context, tx *gorm.DB, fileID uint, userID uint) (models.StarredFile, error) {
	var star models.StarredFile
	err := useTx(r.db, tx).Where("file_id = ? AND user_id = ?", fileID, userID).First(&star).Error
	return star, err
}

func (r *GormStarRepository) Create(_ context.Context, tx *gorm.DB, star *models.StarredFile) error {
	return useTx(r.db, tx).Create(star).Error
}

func (r *GormStarRepository) DeleteByID(_ context.Context, tx *gorm.DB, starID uint) error {
	return useTx(r.db, tx).Delete(&models.StarredFile{}, starID).Error
}

func (r *GormStarRepository) ListStarredFileIDs(_ context.Context, tx *gorm.DB, userID uint, fileIDs []uint) ([]uint, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := useTx(r.db, tx).Model(&models.StarredFile{}).
		Where("user_id = ? AND file_id IN ?", userID, fileIDs).
		Pluck("file_id", &ids).Error
	return ids, err
}

func (r *GormStarRepository) DeleteByFileIDs(_ context.Context, tx *gorm.DB, fileIDs []uint) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("file_id IN ?", fileIDs).Delete(&models.StarredFile{}).Error
}
