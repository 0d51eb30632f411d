package models

import (
	"time"
)

// ScheduledRetry is a durable, first-class retry record. A failed attempt
// writes one row and frees its worker; the scan loop re-enqueues the job
// once NotBefore has passed.
type ScheduledRetry struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	JobID string `gorm:"type:varchar(36);not null;index"`

	Attempt   int       `gorm:"not null"`
	NotBefore time.Time `gorm:"type:timestamptz;not null;index"`
	LastError string    `gorm:"type:varchar(500)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (ScheduledRetry) TableName() string {
	return "scheduled_retries"
}
