package repositories

import (
	"context"
	"time"

	"github.com/greatsami/g-drive-clone/models"

	"gorm.io/gorm"
)

type GormFileRepository struct {
	db *gorm.DB
}

func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) GetByID(_ context.Context, tx *gorm.DB, fileID uint, unscoped bool) (models.File, error) {
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var file models.File
	err := db.First(&file, fileID).Error
	return file, err
}

func (r *GormFileRepository) GetByIDAndUser(_ context.Context, tx *gorm.DB, fileID uint, userID uint, unscoped bool) (models.File, error) {
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var file models.File
	err := db.Where("id = ? AND user_id = ?", fileID, userID).First(&file).Error
	return file, err
}

func (r *GormFileRepository) GetByIDsAndUser(_ context.Context, tx *gorm.DB, userID uint, fileIDs []uint, unscoped bool) ([]models.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var files []models.File
	err := db.Where("user_id = ? AND id IN ?", userID, fileIDs).Order("lft ASC").Find(&files).Error
	return files, err
}

// GetAccessibleByIDs returns the active files among fileIDs that userID owns
// or that were shared with userID.
func (r *GormFileRepository) GetAccessibleByIDs(_ context.Context, tx *gorm.DB, userID uint, fileIDs []uint) ([]models.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	db := useTx(r.db, tx)
	shared := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.FileShare{}).
		Select("file_id").
		Where("user_id = ?", userID)

	var files []models.File
	err := db.Where("id IN ?", fileIDs).
		Where(db.Session(&gorm.Session{NewDB: true}).Where("user_id = ?", userID).Or("id IN (?)", shared)).
		Order("id ASC").
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) listQuery(db *gorm.DB, in ListFilesInput) *gorm.DB {
	query := db.Model(&models.File{}).
		Where("files.user_id = ? AND files.lft <> 1", in.UserID)
	if in.Search != "" {
		query = query.Where("files.name LIKE ?", likePattern(in.Search))
	} else {
		query = query.Where("files.parent_id = ?", in.ParentID)
	}
	if in.FavouritesOnly {
		query = query.Joins("JOIN starred_files ON starred_files.file_id = files.id").
			Where("starred_files.user_id = ?", in.UserID)
	}
	return query
}

func (r *GormFileRepository) CountByParent(_ context.Context, tx *gorm.DB, in ListFilesInput) (int64, error) {
	var total int64
	err := r.listQuery(useTx(r.db, tx), in).Count(&total).Error
	return total, err
}

func (r *GormFileRepository) ListByParent(_ context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error) {
	var files []models.File
	err := r.listQuery(useTx(r.db, tx), in).
		Select("files.*").
		Order("files.is_folder DESC").
		Order("files.created_at DESC").
		Order("files.id DESC").
		Offset(in.Offset).
		Limit(in.Limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) ListChildren(_ context.Context, tx *gorm.DB, userID uint, parentID uint) ([]models.File, error) {
	var files []models.File
	err := useTx(r.db, tx).
		Where("user_id = ? AND parent_id = ?", userID, parentID).
		Order("lft ASC").
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) trashQuery(db *gorm.DB, in TrashListInput) *gorm.DB {
	query := db.Unscoped().Model(&models.File{}).
		Where("user_id = ? AND deleted_at IS NOT NULL", in.UserID)
	if in.Search != "" {
		query = query.Where("name LIKE ?", likePattern(in.Search))
	}
	return query
}

func (r *GormFileRepository) CountTrashed(_ context.Context, tx *gorm.DB, in TrashListInput) (int64, error) {
	var total int64
	err := r.trashQuery(useTx(r.db, tx), in).Count(&total).Error
	return total, err
}

func (r *GormFileRepository) ListTrashed(_ context.Context, tx *gorm.DB, in TrashListInput) ([]models.File, error) {
	var files []models.File
	err := r.trashQuery(useTx(r.db, tx), in).
		Order("is_folder DESC").
		Order("deleted_at DESC").
		Order("id DESC").
		Offset(in.Offset).
		Limit(in.Limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) ListTrashedBefore(_ context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]models.File, error) {
	var files []models.File
	err := useTx(r.db, tx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Order("lft ASC").
		Limit(limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) ListPendingReplication(_ context.Context, tx *gorm.DB, createdBefore time.Time, limit int) ([]models.File, error) {
	var files []models.File
	err := useTx(r.db, tx).
		Where("replication = ? AND created_at < ?", models.ReplicationPending, createdBefore).
		Order("id ASC").
		Limit(limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) Rename(_ context.Context, tx *gorm.DB, fileID uint, userID uint, name string) error {
	res := useTx(r.db, tx).Model(&models.File{}).
		Where("id = ? AND user_id = ?", fileID, userID).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Restore clears deleted_at on the file itself only; descendants trashed
// with it stay in the trash.
func (r *GormFileRepository) Restore(_ context.Context, tx *gorm.DB, fileID uint, userID uint) (int64, error) {
	res := useTx(r.db, tx).Unscoped().Model(&models.File{}).
		Where("id = ? AND user_id = ? AND deleted_at IS NOT NULL", fileID, userID).
		UpdateColumn("deleted_at", nil)
	return res.RowsAffected, res.Error
}

// MarkReplicated flips pending to replicated without hooks or timestamps.
// It reports whether this call performed the flip.
func (r *GormFileRepository) MarkReplicated(_ context.Context, tx *gorm.DB, fileID uint) (bool, error) {
	res := useTx(r.db, tx).Unscoped().Model(&models.File{}).
		Where("id = ? AND replication = ?", fileID, models.ReplicationPending).
		UpdateColumn("replication", models.ReplicationReplicated)
	return res.RowsAffected > 0, res.Error
}

func (r *GormFileRepository) UsageByUser(_ context.Context, tx *gorm.DB, userID uint) (int64, int64, error) {
	var usage struct {
		Files int64
		Bytes int64
	}
	err := useTx(r.db, tx).Unscoped().Model(&models.File{}).
		Select("COUNT(*) AS files, COALESCE(SUM(file_size), 0) AS bytes").
		Where("user_id = ? AND is_folder = ?", userID, false).
		Scan(&usage).Error
	return usage.Files, usage.Bytes, err
}
