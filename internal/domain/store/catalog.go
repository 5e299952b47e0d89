package store

import (
	"gorm.io/datatypes"
)

// Catalog rows are read-only from the processor's perspective; they
// are maintained by the configuration backend.

type Template struct {
	ID                    string         `gorm:"column:id;primaryKey" json:"id"`
	Type                  string         `gorm:"column:type;not null" json:"type"`
	AdditionalInformation datatypes.JSON `gorm:"column:additional_information;type:jsonb" json:"additional_information,omitempty"`
	TargetArchiveID       string         `gorm:"column:target_archive_id" json:"target_archive_id,omitempty"`
}

func (Template) TableName() string { return "templates" }

type JobConfig struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	TemplateID     string         `gorm:"column:template_id;index" json:"template_id"`
	DataSelection  datatypes.JSON `gorm:"column:data_selection;type:jsonb" json:"data_selection,omitempty"`
	DataProcessing datatypes.JSON `gorm:"column:data_processing;type:jsonb" json:"data_processing,omitempty"`
}

func (JobConfig) TableName() string { return "job_configs" }

type UserConfig struct {
	ID     string         `gorm:"column:id;primaryKey" json:"id"`
	Config datatypes.JSON `gorm:"column:config;type:jsonb" json:"config,omitempty"`
}

func (UserConfig) TableName() string { return "user_configs" }

// Deployment tracks schema bootstrap state.
type Deployment struct {
	ID            uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SchemaLoaded  *bool  `gorm:"column:schema_loaded" json:"schema_loaded,omitempty"`
	SchemaVersion string `gorm:"column:schema_version" json:"schema_version,omitempty"`
}

func (Deployment) TableName() string { return "deployment" }
