package storage

import (
	"time"
)

// GenerationRecord is one finished generation attempt sequence, successful or not.
type GenerationRecord struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     int64  `gorm:"not null;index:idx_generation_user_created,priority:1"`
	ChatID     int64  `gorm:"not null"`
	StyleID    string `gorm:"size:32;not null"`
	Prompt     string `gorm:"not null"`
	Attempts   int    `gorm:"not null"`
	Success    bool   `gorm:"not null"`
	ErrorClass string `gorm:"size:64"` // 成功时为空
	DurationMs int64
	CreatedAt  time.Time `gorm:"index:idx_generation_user_created,priority:2"`
}

// UserPreference stores per-user settings that outlive sessions.
type UserPreference struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"` // Telegram User ID
	Language  string `gorm:"size:16;not null;default:''"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
