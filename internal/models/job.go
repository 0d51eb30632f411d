package models

import (
	"time"
)

// Job tracks one async generation attempt. Transitions go exclusively
// through the tracker; terminal states are final.
type Job struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	MasterSlipID uint64 `gorm:"not null;index"`

	Queue string `gorm:"type:varchar(50);not null;index"`
	Kind  string `gorm:"type:varchar(50);not null"`

	Status     string `gorm:"type:varchar(20);not null;default:'pending';index"`
	Progress   int    `gorm:"not null;default:0"`
	RetryCount int    `gorm:"not null;default:0"`

	ErrorMessage string `gorm:"type:varchar(500)"`

	StartedAt   *time.Time `gorm:"type:timestamptz"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`
	FailedAt    *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

const (
	JobPending       = "pending"
	JobRunning       = "running"
	JobCompleted     = "completed"
	JobFailed        = "failed"
	JobFallback      = "fallback"
	JobStorageFailed = "storage_failed"
	JobJobFailed     = "job_failed"
)

// JobTerminal reports whether a status accepts no further transitions.
func JobTerminal(status string) bool {
	switch status {
	case JobCompleted, JobFailed, JobFallback, JobStorageFailed, JobJobFailed:
		return true
	}
	return false
}
