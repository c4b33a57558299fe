package models

import "time"

// FileShare grants UserID visibility of FileID. The pair is unique; sharing
// again is a no-op and rows disappear only with the file.
type FileShare struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID    uint      `gorm:"not null;uniqueIndex:idx_file_shares_file_user,priority:1" json:"file_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_file_shares_file_user,priority:2;index" json:"user_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FileShare) TableName() string {
	return "file_shares"
}
