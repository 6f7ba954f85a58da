package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message shown to a guest.
type Notification struct {
	ID        int64          `json:"id" gorm:"primaryKey"`
	UserID    int64          `json:"user_id" gorm:"not null;index"`
	Type      string         `json:"type" gorm:"size:64;not null"`
	Title     string         `json:"title" gorm:"size:255"`
	Message   string         `json:"message,omitempty" gorm:"type:text"`
	IsRead    bool           `json:"is_read" gorm:"not null;default:false"`
	Data      datatypes.JSON `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
