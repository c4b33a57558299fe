package models

import "time"

// User mirrors an identity issued by the upstream gateway.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname  string    `gorm:"type:varchar(100)" json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func All() []interface{} {
	return []interface{}{
		&User{},
		&File{},
		&StarredFile{},
		&FileShare{},
	}
}
