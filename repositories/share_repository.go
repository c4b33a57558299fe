package repositories

import (
	"context"

	"github.com/greatsami/g-drive-clone/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormShareRepository struct {
	db *gorm.DB
}

func NewGormShareRepository(db *gorm.DB) *GormShareRepository {
	return &GormShareRepository{db: db}
}

func (r *GormShareRepository) ListSharedFileIDs(_ context.Context, tx *gorm.DB, recipientID uint, fileIDs []uint) ([]uint, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := useTx(r.db, tx).Model(&models.FileShare{}).
		Where("user_id = ? AND file_id IN ?", recipientID, fileIDs).
		Pluck("file_id", &ids).Error
	return ids, err
}

// CreateBatch inserts share rows, skipping pairs that already exist.
func (r *GormShareRepository) CreateBatch(_ context.Context, tx *gorm.DB, shares []models.FileShare) error {
	if len(shares) == 0 {
		return nil
	}
	return useTx(r.db, tx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&shares).Error
}

func (r *GormShareRepository) sharedWithQuery(db *gorm.DB, in SharedListInput) *gorm.DB {
	query := db.Model(&models.File{}).
		Joins("JOIN file_shares ON file_shares.file_id = files.id").
		Where("file_shares.user_id = ?", in.UserID)
	if in.Search != "" {
		query = query.Where("files.name LIKE ?", likePattern(in.Search))
	}
	return query
}

func (r *GormShareRepository) CountSharedWith(_ context.Context, tx *gorm.DB, in SharedListInput) (int64, error) {
	var total int64
	err := r.sharedWithQuery(useTx(r.db, tx), in).Count(&total).Error
	return total, err
}

func (r *GormShareRepository) ListSharedWith(_ context.Context, tx *gorm.DB, in SharedListInput) ([]models.File, error) {
	query := r.sharedWithQuery(useTx(r.db, tx), in).
		Select("files.*").
		Order("file_shares.created_at DESC").
		Order("files.id DESC")
	if in.Limit > 0 {
		query = query.Offset(in.Offset).Limit(in.Limit)
	}
	var files []models.File
	err := query.Find(&files).Error
	return files, err
}

func (r *GormShareRepository) sharedByQuery(db *gorm.DB, in SharedListInput) *gorm.DB {
	shared := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.FileShare{}).
		Select("file_id")
	query := db.Model(&models.File{}).
		Where("files.user_id = ? AND files.id IN (?)", in.UserID, shared)
	if in.Search != "" {
		query = query.Where("files.name LIKE ?", likePattern(in.Search))
	}
	return query
}

func (r *GormShareRepository) CountSharedBy(_ context.Context, tx *gorm.DB, in SharedListInput) (int64, error) {
	var total int64
	err := r.sharedByQuery(useTx(r.db, tx), in).Count(&total).Error
	return total, err
}

func (r *GormShareRepository) ListSharedBy(_ context.Context, tx *gorm.DB, in SharedListInput) ([]models.File, error) {
	query := r.sharedByQuery(useTx(r.db, tx), in).
		Order("files.created_at DESC").
		Order("files.id DESC")
	if in.Limit > 0 {
		query = query.Offset(in.Offset).Limit(in.Limit)
	}
	var files []models.File
	err := query.Find(&files).Error
	return files, err
}

func (r *GormShareRepository) DeleteByFileIDs(_ context.Context, tx *gorm.DB, fileIDs []uint) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("file_id IN ?", fileIDs).Delete(&models.FileShare{}).Error
}
