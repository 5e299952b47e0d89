package store

import (
	"github.com/google/uuid"
)

// IE is the deduplication anchor for one intellectual entity.
// (job_config_id, origin_system_id, external_id, archive_id) is unique.
type IE struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	JobConfigID        string    `gorm:"column:job_config_id;uniqueIndex:idx_ies_identity" json:"job_config_id"`
	SourceOrganization string    `gorm:"column:source_organization" json:"source_organization,omitempty"`
	OriginSystemID     string    `gorm:"column:origin_system_id;uniqueIndex:idx_ies_identity" json:"origin_system_id"`
	ExternalID         string    `gorm:"column:external_id;uniqueIndex:idx_ies_identity" json:"external_id"`
	ArchiveID          string    `gorm:"column:archive_id;uniqueIndex:idx_ies_identity" json:"archive_id"`
}

func (IE) TableName() string { return "ies" }
