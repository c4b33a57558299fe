package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/greatsami/g-drive-clone/models"

	"gorm.io/gorm"
)

var (
	// ErrInvalidParent is returned when a node would be placed under a leaf
	// file, under itself, or under one of its own descendants.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrRootImmutable is returned for structural changes to a user's root.
	ErrRootImmutable = errors.New("root folder cannot be modified")
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, userID uint) (models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (models.User, error)
}

// TreeRepository maintains the nested-set bounds of File rows. Every method
// that renumbers bounds locks the owner's root row first and must run inside
// a transaction so readers never observe a half-renumbered tree.
type TreeRepository interface {
	CreateRoot(ctx context.Context, tx *gorm.DB, userID uint, name string) (models.File, error)
	GetRoot(ctx context.Context, tx *gorm.DB, userID uint, lock bool) (models.File, error)
	InsertUnder(ctx context.Context, tx *gorm.DB, parentID uint, node *models.File) error
	Descendants(ctx context.Context, tx *gorm.DB, node models.File, unscoped bool) ([]models.File, error)
	Ancestors(ctx context.Context, tx *gorm.DB, node models.File, unscoped bool) ([]models.File, error)
	RelocateSubtree(ctx context.Context, tx *gorm.DB, nodeID uint, newParentID uint) error
	RemoveSubtree(ctx context.Context, tx *gorm.DB, nodeID uint) (int64, error)
	TrashSubtree(ctx context.Context, tx *gorm.DB, node models.File, at time.Time) (int64, error)
}

type ListFilesInput struct {
	UserID         uint
	ParentID       uint
	Search         string
	FavouritesOnly bool
	Offset         int
	Limit          int
}

type TrashListInput struct {
	UserID uint
	Search string
	Offset int
	Limit  int
}

type FileRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, fileID uint, unscoped bool) (models.File, error)
	GetByIDAndUser(ctx context.Context, tx *gorm.DB, fileID uint, userID uint, unscoped bool) (models.File, error)
	GetByIDsAndUser(ctx context.Context, tx *gorm.DB, userID uint, fileIDs []uint, unscoped bool) ([]models.File, error)
	GetAccessibleByIDs(ctx context.Context, tx *gorm.DB, userID uint, fileIDs []uint) ([]models.File, error)
	CountByParent(ctx context.Context, tx *gorm.DB, in ListFilesInput) (int64, error)
	ListByParent(ctx context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error)
	ListChildren(ctx context.Context, tx *gorm.DB, userID uint, parentID uint) ([]models.File, error)
	CountTrashed(ctx context.Context, tx *gorm.DB, in TrashListInput) (int64, error)
	ListTrashed(ctx context.Context, tx *gorm.DB, in TrashListInput) ([]models.File, error)
	ListTrashedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]models.File, error)
	ListPendingReplication(ctx context.Context, tx *gorm.DB, createdBefore time.Time, limit int) ([]models.File, error)
	Rename(ctx context.Context, tx *gorm.DB, fileID uint, userID uint, name string) error
	Restore(ctx context.Context, tx *gorm.DB, fileID uint, userID uint) (int64, error)
	MarkReplicated(ctx context.Context, tx *gorm.DB, fileID uint) (bool, error)
	// UsageByUser counts leaves and their bytes, trashed ones included.
	UsageByUser(ctx context.Context, tx *gorm.DB, userID uint) (int64, int64, error)
}

type StarRepository interface {
	Get(ctx context.Context, tx *gorm.DB, fileID uint, userID uint) (models.StarredFile, error)
	Create(ctx context.Context, tx *gorm.DB, star *models.StarredFile) error
	DeleteByID(ctx context.Context, tx *gorm.DB, starID uint) error
	ListStarredFileIDs(ctx context.Context, tx *gorm.DB, userID uint, fileIDs []uint) ([]uint, error)
	DeleteByFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []uint) error
}

type SharedListInput struct {
	UserID uint
	Search string
	Offset int
	// Limit <= 0 lists everything.
	Limit int
}

type ShareRepository interface {
	ListSharedFileIDs(ctx context.Context, tx *gorm.DB, recipientID uint, fileIDs []uint) ([]uint, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, shares []models.FileShare) error
	CountSharedWith(ctx context.Context, tx *gorm.DB, in SharedListInput) (int64, error)
	ListSharedWith(ctx context.Context, tx *gorm.DB, in SharedListInput) ([]models.File, error)
	CountSharedBy(ctx context.Context, tx *gorm.DB, in SharedListInput) (int64, error)
	ListSharedBy(ctx context.Context, tx *gorm.DB, in SharedListInput) ([]models.File, error)
	DeleteByFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []uint) error
}

// ReplicationQueue carries replication units (file ids). Delivery is
// at-least-once; consumers must be idempotent.
type ReplicationQueue interface {
	Push(ctx context.Context, fileID uint) error
	// Pop waits up to wait for a unit; ok is false when none arrived.
	Pop(ctx context.Context, wait time.Duration) (fileID uint, ok bool, err error)
}

type Container struct {
	TxManager TxManager
	Users     UserRepository
	Tree      TreeRepository
	Files     FileRepository
	Stars     StarRepository
	Shares    ShareRepository
	Queue     ReplicationQueue
}
