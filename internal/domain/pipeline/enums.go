package pipeline

// Stage identifies one step of the processing pipeline.
type Stage string

const (
	StageImportIEs          Stage = "import_ies"
	StageImportIPs          Stage = "import_ips"
	StageBuildIP            Stage = "build_ip"
	StageValidationMetadata Stage = "validation_metadata"
	StageValidationPayload  Stage = "validation_payload"
	StagePrepareIP          Stage = "prepare_ip"
	StageBuildSIP           Stage = "build_sip"
	StageTransfer           Stage = "transfer"
	StageIngest             Stage = "ingest"
)

// AllStages lists every stage in pipeline order.
var AllStages = []Stage{
	StageImportIEs,
	StageImportIPs,
	StageBuildIP,
	StageValidationMetadata,
	StageValidationPayload,
	StagePrepareIP,
	StageBuildSIP,
	StageTransfer,
	StageIngest,
}

func StageFromString(s string) (Stage, bool) {
	for _, stage := range AllStages {
		if string(stage) == s {
			return stage, true
		}
	}
	return "", false
}

// ProducesArtifact reports whether a stage emits an artifact that
// downstream stages (and the artifacts table) consume.
func (s Stage) ProducesArtifact() bool {
	switch s {
	case StageImportIEs, StageImportIPs, StageBuildIP, StagePrepareIP, StageBuildSIP:
		return true
	}
	return false
}

// RecordStatus is the lifecycle status of a single record.
type RecordStatus string

const (
	StatusInProcess      RecordStatus = "in-process"
	StatusComplete       RecordStatus = "complete"
	StatusProcessError   RecordStatus = "process-error"
	StatusImportError    RecordStatus = "import-error"
	StatusObjValError    RecordStatus = "obj-val-error"
	StatusIPValError     RecordStatus = "ip-val-error"
	StatusBuildIPError   RecordStatus = "build-ip-error"
	StatusPrepareIPError RecordStatus = "prepare-ip-error"
	StatusBuildSIPError  RecordStatus = "build-sip-error"
	StatusTransferError  RecordStatus = "transfer-error"
	StatusIngestError    RecordStatus = "ingest-error"
)

// Terminal reports whether the status ends processing for a record.
func (s RecordStatus) Terminal() bool {
	return s != StatusInProcess && s != ""
}

// ErrorStatusForStage maps a failed stage to the record status it implies.
func ErrorStatusForStage(stage Stage) RecordStatus {
	switch stage {
	case StageImportIEs, StageImportIPs:
		return StatusImportError
	case StageBuildIP:
		return StatusBuildIPError
	case StageValidationMetadata:
		return StatusIPValError
	case StageValidationPayload:
		return StatusObjValError
	case StagePrepareIP:
		return StatusPrepareIPError
	case StageBuildSIP:
		return StatusBuildSIPError
	case StageTransfer:
		return StatusTransferError
	case StageIngest:
		return StatusIngestError
	}
	return StatusProcessError
}

// TriggerType describes what caused a job submission.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerOnetime   TriggerType = "onetime"
	TriggerTest      TriggerType = "test"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerOnetime, TriggerTest:
		return true
	}
	return false
}

// ArchiveAPI enumerates supported archive backend APIs.
type ArchiveAPI string

const ArchiveRosettaRESTV0 ArchiveAPI = "rosetta-rest-api-v0"

// Template types accepted for a job configuration.
const (
	TemplatePlugin    = "plugin"
	TemplateOAI       = "oai"
	TemplateHotfolder = "hotfolder"
)
