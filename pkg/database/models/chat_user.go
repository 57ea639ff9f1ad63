package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatUser links an external chat identity to a User account. A chat
// identity may be linked to at most one user and a user may have at most one
// linked chat identity; both are enforced by the unique UserID column.
type ChatUser struct {
	ChatID    int64          `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	Username  string         `gorm:"size:50;index" json:"username"`
	FullName  string         `gorm:"size:100" json:"full_name"`
	IsAdmin   bool           `gorm:"default:false;not null" json:"is_admin"`
	Meta      JSONMap        `gorm:"type:text" json:"meta"`
	UserID    *uuid.UUID     `gorm:"type:uuid;uniqueIndex" json:"user_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
