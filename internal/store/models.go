package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type QueueItemModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	BatchID     string `gorm:"not null;index"`
	UserID      string `gorm:"not null;index"`
	Prompt      string `gorm:"type:text;not null"`
	ContentType string `gorm:"not null"`
	SEOEnabled  bool
	Model       string
	Temperature float64
	MaxTokens   int
	Priority    int            `gorm:"not null;index"`
	Status      string         `gorm:"not null;index"`
	Attempts    int            `gorm:"not null"`
	MaxAttempts int            `gorm:"not null"`
	Result      datatypes.JSON `gorm:"type:jsonb"`
	Error       string
	CreatedAt   time.Time `gorm:"not null;index"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type CacheEntryModel struct {
	Key         string `gorm:"primaryKey;size:64"`
	ContentType string `gorm:"not null;index"`
	Payload     string `gorm:"type:text;not null"`
	Compressed  bool
	HitCount    int64     `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

type TemplateModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"not null;uniqueIndex"`
	Prompt      string `gorm:"type:text;not null"`
	ContentType string `gorm:"not null"`
	SEOEnabled  bool
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type TemplateVersionModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	TemplateID    int64  `gorm:"not null;index"`
	VersionNumber int    `gorm:"not null"`
	Name          string `gorm:"not null"`
	Prompt        string `gorm:"type:text;not null"`
	ContentType   string `gorm:"not null"`
	SEOEnabled    bool
	Variables     datatypes.JSON `gorm:"type:jsonb"`
	ChangeLog     string
	IsActive      bool      `gorm:"not null;index"`
	CreatedBy     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

type UsageRecordModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"not null;index"`
	TokensUsed int    `gorm:"not null"`
	Cost       float64
	Model      string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

type SettingModel struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}
