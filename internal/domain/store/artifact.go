package store

import (
	"time"

	"github.com/google/uuid"
)

// Artifact records the location of a stage product together with its
// expiry; expired artifacts make the owning records unresumable.
type Artifact struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Path            string     `gorm:"column:path;not null" json:"path"`
	RecordID        string     `gorm:"column:record_id;index" json:"record_id"`
	Stage           string     `gorm:"column:stage;not null" json:"stage"`
	DatetimeExpires *time.Time `gorm:"column:datetime_expires;index" json:"datetime_expires,omitempty"`
}

func (Artifact) TableName() string { return "artifacts" }
