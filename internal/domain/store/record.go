package store

import (
	"time"
)

// Record is the durable projection of one pipeline record.
type Record struct {
	ID                    string     `gorm:"column:id;primaryKey" json:"id"`
	JobConfigID           string     `gorm:"column:job_config_id;index" json:"job_config_id"`
	JobToken              string     `gorm:"column:job_token;type:uuid;index" json:"job_token"`
	Status                string     `gorm:"column:status;not null;index" json:"status"`
	DatetimeChanged       *time.Time `gorm:"column:datetime_changed" json:"datetime_changed,omitempty"`
	ImportType            string     `gorm:"column:import_type" json:"import_type,omitempty"`
	OAIIdentifier         string     `gorm:"column:oai_identifier" json:"oai_identifier,omitempty"`
	OAIDatestamp          string     `gorm:"column:oai_datestamp" json:"oai_datestamp,omitempty"`
	HotfolderOriginalPath string     `gorm:"column:hotfolder_original_path" json:"hotfolder_original_path,omitempty"`
	ArchiveIEID           string     `gorm:"column:archive_ie_id" json:"archive_ie_id,omitempty"`
	ArchiveSIPID          string     `gorm:"column:archive_sip_id" json:"archive_sip_id,omitempty"`
	IEID                  *string    `gorm:"column:ie_id;type:uuid;index" json:"ie_id,omitempty"`
	Bitstream             bool       `gorm:"column:bitstream;not null;default:false" json:"bitstream"`
	SkipObjectValidation  bool       `gorm:"column:skip_object_validation;not null;default:false" json:"skip_object_validation"`
	ReportID              string     `gorm:"column:report_id" json:"report_id,omitempty"`
}

func (Record) TableName() string { return "records" }
