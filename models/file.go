package models

import (
	"time"

	"gorm.io/gorm"
)

type ReplicationState string

const (
	// ReplicationNone applies to folders, which have no content to replicate.
	ReplicationNone       ReplicationState = "none"
	ReplicationPending    ReplicationState = "pending"
	ReplicationReplicated ReplicationState = "replicated"
)

// File is a node of a per-user nested-set tree. Lft/Rgt bound the node's
// subtree; a node's interval strictly contains the intervals of all of its
// descendants and none of anything else.
type File struct {
	ID          uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string           `gorm:"type:varchar(1024);not null" json:"name"`
	IsFolder    bool             `gorm:"not null;default:false" json:"is_folder"`
	ParentID    *uint            `gorm:"index" json:"parent_id"`
	UserID      uint             `gorm:"not null;index:idx_files_tree,priority:1" json:"user_id"`
	Lft         int              `gorm:"column:lft;not null;index:idx_files_tree,priority:2" json:"-"`
	Rgt         int              `gorm:"column:rgt;not null;index:idx_files_tree,priority:3" json:"-"`
	StoragePath string           `gorm:"type:varchar(1024)" json:"-"`
	MimeType    string           `gorm:"type:varchar(255)" json:"mime_type"`
	FileSize    int64            `gorm:"not null;default:0" json:"file_size"`
	Replication ReplicationState `gorm:"type:varchar(16);not null;index" json:"replication"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (f File) IsRoot() bool {
	return f.ParentID == nil && f.Lft == 1
}

func (f File) IsTrashed() bool {
	return f.DeletedAt.Valid
}

func (f File) IsReplicated() bool {
	return f.Replication == ReplicationReplicated
}

// Contains reports whether other lies strictly inside f's subtree.
func (f File) Contains(other File) bool {
	return f.UserID == other.UserID && f.Lft < other.Lft && other.Rgt < f.Rgt
}

// SubtreeSize is the number of bound slots the node and its descendants occupy.
func (f File) SubtreeSize() int {
	return f.Rgt - f.Lft + 1
}
