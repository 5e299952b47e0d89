package pipeline

import (
	"time"
)

/*
JobConfig is the fully resolved configuration for one job execution.
Only ID, TestMode and Resume arrive with the submission; the remaining
fields are populated at worker entry from the stored job_configs and
templates rows plus process-level configuration.
*/
type JobConfig struct {
	ID       string `json:"id"`
	TestMode bool   `json:"testMode,omitempty"`
	Resume   bool   `json:"resume,omitempty"`

	Template               *Template                        `json:"-"`
	DataSelection          map[string]any                   `json:"-"`
	DataProcessing         map[string]any                   `json:"-"`
	Archives               map[string]ArchiveConfiguration  `json:"-"`
	DefaultTargetArchiveID string                           `json:"-"`
	ExecutionContext       *JobContext                      `json:"-"`
}

// Template describes how records enter the pipeline.
type Template struct {
	Type                  string         `json:"type"`
	AdditionalInformation map[string]any `json:"additionalInformation,omitempty"`
	TargetArchiveID       string         `json:"targetArchiveId,omitempty"`
}

// JobContext carries submission-level execution context.
type JobContext struct {
	UserTriggered     string      `json:"userTriggered,omitempty"`
	DatetimeTriggered string      `json:"datetimeTriggered,omitempty"`
	TriggerType       TriggerType `json:"triggerType,omitempty"`
	ArtifactsTTL      *int        `json:"artifactsTTL,omitempty"`
}

// SuppressRecordRows reports whether durable record creation is disabled.
func (c *JobContext) SuppressRecordRows() bool {
	return c != nil && c.TriggerType == TriggerTest
}

// ArtifactsExpiry returns now+TTL, or nil when no TTL is configured.
func (c *JobContext) ArtifactsExpiry(now time.Time) *time.Time {
	if c == nil || c.ArtifactsTTL == nil {
		return nil
	}
	t := now.Add(time.Duration(*c.ArtifactsTTL) * time.Second)
	return &t
}

// ArchiveConfiguration identifies one target archive.
type ArchiveConfiguration struct {
	ID                    string     `json:"id" yaml:"id"`
	Type                  ArchiveAPI `json:"type" yaml:"type"`
	TransferDestinationID string     `json:"transferDestinationId" yaml:"transferDestinationId"`
}

// TargetArchiveID resolves the archive id from the template, falling
// back to the processor-wide default. Empty when neither is set.
func (c *JobConfig) TargetArchiveID() string {
	if c.Template != nil && c.Template.TargetArchiveID != "" {
		return c.Template.TargetArchiveID
	}
	return c.DefaultTargetArchiveID
}

// TemplateType returns the template type, empty when unresolved.
func (c *JobConfig) TemplateType() string {
	if c.Template == nil {
		return ""
	}
	return c.Template.Type
}

// MappingSection returns data_processing.mapping as a map.
func (c *JobConfig) MappingSection() map[string]any {
	return subMap(c.DataProcessing, "mapping")
}

// PreparationSection returns data_processing.preparation as a map.
func (c *JobConfig) PreparationSection() map[string]any {
	return subMap(c.DataProcessing, "preparation")
}

func subMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return nil
}
