package pipeline

import (
	"time"
)

/*
Report is the mutable job-level state object. It is both returned to
clients via GET /report and persisted as JSON into the jobs row on
every push. All runners mutate it through the job-scoped context,
never directly.
*/
type Report struct {
	Host     string                    `json:"host,omitempty"`
	Token    string                    `json:"token"`
	Args     map[string]any            `json:"args,omitempty"`
	Progress Progress                  `json:"progress"`
	Log      Log                       `json:"log,omitempty"`
	Data     JobResult                 `json:"data"`
	Children map[string]map[string]any `json:"children,omitempty"`
}

// Progress statuses mirror the downstream service contract.
const (
	ProgressQueued    = "queued"
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
	ProgressAborted   = "aborted"
)

type Progress struct {
	Status  string `json:"status"`
	Verbose string `json:"verbose,omitempty"`
	Numeric int    `json:"numeric"`
}

// Log levels used in the structured job log.
const (
	LogEvent = "EVENT"
	LogInfo  = "INFO"
	LogError = "ERROR"
)

type LogEntry struct {
	Datetime string `json:"datetime"`
	Origin   string `json:"origin"`
	Body     string `json:"body"`
}

// Log groups entries by level.
type Log map[string][]LogEntry

func (l Log) Add(level, origin, body string) {
	l[level] = append(l[level], LogEntry{
		Datetime: time.Now().UTC().Format(time.RFC3339),
		Origin:   origin,
		Body:     body,
	})
}

// JobResult aggregates all record outcomes for one job.
type JobResult struct {
	Success *bool              `json:"success,omitempty"`
	Issues  int                `json:"issues"`
	Records map[string]*Record `json:"records"`
}

/*
Record is the unit of work passed through the pipeline. It lives
inside Report.Data.Records and is projected into the records table by
the post-stage persistence layer; the two never hold back-pointers to
each other.
*/
type Record struct {
	ID              string       `json:"id"`
	Started         bool         `json:"started"`
	Completed       bool         `json:"completed"`
	Status          RecordStatus `json:"status"`
	DatetimeChanged string       `json:"datetimeChanged,omitempty"`

	Bitstream            bool `json:"bitstream,omitempty"`
	SkipObjectValidation bool `json:"skipObjectValidation,omitempty"`

	SourceOrganization    string `json:"sourceOrganization,omitempty"`
	ExternalID            string `json:"externalId,omitempty"`
	OriginSystemID        string `json:"originSystemId,omitempty"`
	ImportType            string `json:"importType,omitempty"`
	OAIIdentifier         string `json:"oaiIdentifier,omitempty"`
	OAIDatestamp          string `json:"oaiDatestamp,omitempty"`
	HotfolderOriginalPath string `json:"hotfolderOriginalPath,omitempty"`

	ArchiveSIPID string `json:"archiveSipId,omitempty"`
	ArchiveIEID  string `json:"archiveIeId,omitempty"`
	IEID         string `json:"ieId,omitempty"`

	Stages map[Stage]*RecordStageInfo `json:"stages"`
}

// RecordStageInfo is the per-stage execution fact for one record.
type RecordStageInfo struct {
	Completed bool   `json:"completed"`
	Success   *bool  `json:"success,omitempty"`
	Token     string `json:"token,omitempty"`
	LogID     string `json:"logId,omitempty"`
	Artifact  string `json:"artifact,omitempty"`
}

// Succeeded reports completed-and-successful.
func (i *RecordStageInfo) Succeeded() bool {
	return i != nil && i.Completed && i.Success != nil && *i.Success
}

func NewRecord(id string) *Record {
	return &Record{
		ID:     id,
		Status: StatusInProcess,
		Stages: map[Stage]*RecordStageInfo{},
	}
}

func NewReport(token string, args map[string]any) *Report {
	return &Report{
		Token:    token,
		Args:     args,
		Progress: Progress{Status: ProgressQueued},
		Log:      Log{},
		Data:     JobResult{Records: map[string]*Record{}},
		Children: map[string]map[string]any{},
	}
}

// StageInfo returns the stage info for stage, or nil.
func (r *Record) StageInfo(stage Stage) *RecordStageInfo {
	if r.Stages == nil {
		return nil
	}
	return r.Stages[stage]
}

// FirstArtifact returns the artifact of the first listed stage present
// on the record with a non-empty artifact.
func (r *Record) FirstArtifact(stages ...Stage) (string, bool) {
	for _, stage := range stages {
		if info := r.StageInfo(stage); info != nil && info.Artifact != "" {
			return info.Artifact, true
		}
	}
	return "", false
}

// Touch refreshes the record's change timestamp.
func (r *Record) Touch() {
	r.DatetimeChanged = time.Now().UTC().Format(time.RFC3339)
}

func BoolPtr(v bool) *bool { return &v }
