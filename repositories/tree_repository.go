package repositories

import (
	"context"
	"time"

	"github.com/greatsami/g-drive-clone/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormTreeRepository struct {
	db *gorm.DB
}

func NewGormTreeRepository(db *gorm.DB) *GormTreeRepository {
	return &GormTreeRepository{db: db}
}

// bounds addresses every row of one owner's tree, trashed rows included:
// soft-deleted nodes keep their position and must be renumbered with the rest.
func bounds(db *gorm.DB, userID uint) *gorm.DB {
	return db.Unscoped().Model(&models.File{}).Where("user_id = ?", userID)
}

func (r *GormTreeRepository) CreateRoot(_ context.Context, tx *gorm.DB, userID uint, name string) (models.File, error) {
	root := models.File{
		Name:        name,
		IsFolder:    true,
		UserID:      userID,
		Lft:         1,
		Rgt:         2,
		Replication: models.ReplicationNone,
	}
	err := useTx(r.db, tx).Create(&root).Error
	return root, err
}

func (r *GormTreeRepository) GetRoot(_ context.Context, tx *gorm.DB, userID uint, lock bool) (models.File, error) {
	db := useTx(r.db, tx)
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var root models.File
	err := db.Where("user_id = ? AND parent_id IS NULL AND lft = 1", userID).First(&root).Error
	return root, err
}

func (r *GormTreeRepository) InsertUnder(ctx context.Context, tx *gorm.DB, parentID uint, node *models.File) error {
	db := useTx(r.db, tx)

	var parent models.File
	if err := db.First(&parent, parentID).Error; err != nil {
		return err
	}
	if !parent.IsFolder {
		return ErrInvalidParent
	}
	if _, err := r.GetRoot(ctx, db, parent.UserID, true); err != nil {
		return err
	}
	// Bounds may have moved while we waited for the lock.
	var locked models.File
	if err := db.First(&locked, parentID).Error; err != nil {
		return err
	}

	at := locked.Rgt
	if err := bounds(db, locked.UserID).Where("rgt >= ?", at).UpdateColumn("rgt", gorm.Expr("rgt + 2")).Error; err != nil {
		return err
	}
	if err := bounds(db, locked.UserID).Where("lft > ?", at).UpdateColumn("lft", gorm.Expr("lft + 2")).Error; err != nil {
		return err
	}

	node.UserID = locked.UserID
	node.ParentID = &locked.ID
	node.Lft = at
	node.Rgt = at + 1
	return db.Create(node).Error
}

func (r *GormTreeRepository) Descendants(_ context.Context, tx *gorm.DB, node models.File, unscoped bool) ([]models.File, error) {
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var out []models.File
	err := db.Where("user_id = ? AND lft > ? AND rgt < ?", node.UserID, node.Lft, node.Rgt).
		Order("lft ASC").
		Find(&out).Error
	return out, err
}

func (r *GormTreeRepository) Ancestors(_ context.Context, tx *gorm.DB, node models.File, unscoped bool) ([]models.File, error) {
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var out []models.File
	err := db.Where("user_id = ? AND lft < ? AND rgt > ?", node.UserID, node.Lft, node.Rgt).
		Order("lft ASC").
		Find(&out).Error
	return out, err
}

func (r *GormTreeRepository) RelocateSubtree(ctx context.Context, tx *gorm.DB, nodeID uint, newParentID uint) error {
	db := useTx(r.db, tx)

	var node models.File
	if err := db.Unscoped().First(&node, nodeID).Error; err != nil {
		return err
	}
	if node.IsRoot() {
		return ErrRootImmutable
	}
	if _, err := r.GetRoot(ctx, db, node.UserID, true); err != nil {
		return err
	}
	if err := db.Unscoped().First(&node, nodeID).Error; err != nil {
		return err
	}

	var parent models.File
	if err := db.First(&parent, newParentID).Error; err != nil {
		return err
	}
	if parent.UserID != node.UserID || !parent.IsFolder || parent.ID == node.ID || node.Contains(parent) {
		return ErrInvalidParent
	}
	if node.ParentID != nil && *node.ParentID == parent.ID {
		return nil
	}

	width := node.SubtreeSize()

	// Park the subtree on negative bounds so the shifts below skip it.
	if err := bounds(db, node.UserID).
		Where("lft >= ? AND rgt <= ?", node.Lft, node.Rgt).
		UpdateColumns(map[string]interface{}{
			"lft": gorm.Expr("0 - lft"),
			"rgt": gorm.Expr("0 - rgt"),
		}).Error; err != nil {
		return err
	}
	if err := closeGap(db, node.UserID, node.Rgt, width); err != nil {
		return err
	}

	at := parent.Rgt
	if at > node.Rgt {
		at -= width
	}
	if err := bounds(db, node.UserID).Where("rgt >= ?", at).UpdateColumn("rgt", gorm.Expr("rgt + ?", width)).Error; err != nil {
		return err
	}
	if err := bounds(db, node.UserID).Where("lft > ?", at).UpdateColumn("lft", gorm.Expr("lft + ?", width)).Error; err != nil {
		return err
	}

	offset := at - node.Lft
	if err := bounds(db, node.UserID).
		Where("lft < 0").
		UpdateColumns(map[string]interface{}{
			"lft": gorm.Expr("? - lft", offset),
			"rgt": gorm.Expr("? - rgt", offset),
		}).Error; err != nil {
		return err
	}

	return db.Unscoped().Model(&models.File{}).Where("id = ?", node.ID).UpdateColumn("parent_id", parent.ID).Error
}

func (r *GormTreeRepository) RemoveSubtree(ctx context.Context, tx *gorm.DB, nodeID uint) (int64, error) {
	db := useTx(r.db, tx)

	var node models.File
	if err := db.Unscoped().First(&node, nodeID).Error; err != nil {
		return 0, err
	}
	if node.IsRoot() {
		return 0, ErrRootImmutable
	}
	if _, err := r.GetRoot(ctx, db, node.UserID, true); err != nil {
		return 0, err
	}
	if err := db.Unscoped().First(&node, nodeID).Error; err != nil {
		return 0, err
	}

	res := db.Unscoped().
		Where("user_id = ? AND lft >= ? AND rgt <= ?", node.UserID, node.Lft, node.Rgt).
		Delete(&models.File{})
	if res.Error != nil {
		return 0, res.Error
	}
	if err := closeGap(db, node.UserID, node.Rgt, node.SubtreeSize()); err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// TrashSubtree stamps node and every still-active descendant in one statement.
func (r *GormTreeRepository) TrashSubtree(_ context.Context, tx *gorm.DB, node models.File, at time.Time) (int64, error) {
	res := bounds(useTx(r.db, tx), node.UserID).
		Where("lft >= ? AND rgt <= ? AND deleted_at IS NULL", node.Lft, node.Rgt).
		UpdateColumn("deleted_at", at)
	return res.RowsAffected, res.Error
}

func closeGap(db *gorm.DB, userID uint, after int, width int) error {
	if err := bounds(db, userID).Where("lft > ?", after).UpdateColumn("lft", gorm.Expr("lft - ?", width)).Error; err != nil {
		return err
	}
	return bounds(db, userID).Where("rgt > ?", after).UpdateColumn("rgt", gorm.Expr("rgt - ?", width)).Error
}
