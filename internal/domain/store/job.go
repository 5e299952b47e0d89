package store

import (
	"time"

	"gorm.io/datatypes"
)

// Job statuses for the jobs row lifecycle.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobAborted   = "aborted"
)

// Job is one processing job submission.
type Job struct {
	Token                   string         `gorm:"column:token;type:uuid;primaryKey" json:"token"`
	Status                  string         `gorm:"column:status;not null;index" json:"status"`
	JobConfigID             string         `gorm:"column:job_config_id;index" json:"job_config_id"`
	UserTriggered           string         `gorm:"column:user_triggered" json:"user_triggered,omitempty"`
	DatetimeTriggered       *time.Time     `gorm:"column:datetime_triggered" json:"datetime_triggered,omitempty"`
	TriggerType             string         `gorm:"column:trigger_type" json:"trigger_type,omitempty"`
	Success                 *bool          `gorm:"column:success" json:"success,omitempty"`
	DatetimeStarted         *time.Time     `gorm:"column:datetime_started" json:"datetime_started,omitempty"`
	DatetimeEnded           *time.Time     `gorm:"column:datetime_ended" json:"datetime_ended,omitempty"`
	DatetimeArtifactsExpire *time.Time     `gorm:"column:datetime_artifacts_expire" json:"datetime_artifacts_expire,omitempty"`
	Report                  datatypes.JSON `gorm:"column:report;type:jsonb" json:"report,omitempty"`
}

func (Job) TableName() string { return "jobs" }
