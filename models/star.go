package models

import "time"

type StarredFile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID    uint      `gorm:"not null;uniqueIndex:idx_starred_files_file_user,priority:1" json:"file_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_starred_files_file_user,priority:2;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (StarredFile) TableName() string {
	return "starred_files"
}
