package process

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

/*
NextStages decides which stage(s) to dispatch next for a record, or
none when the record is done. Pure over the record's stage map and the
job configuration; rules are ordered from most- to least-advanced and
the first match wins. A rule matches when its guard stage completed
successfully.
*/
func NextStages(rec *pipeline.Record, cfg *pipeline.JobConfig) []pipeline.Stage {
	succeeded := func(s pipeline.Stage) bool {
		return rec.StageInfo(s).Succeeded()
	}
	skipPayload := rec.Bitstream || rec.SkipObjectValidation
	hotfolder := cfg.TemplateType() == pipeline.TemplateHotfolder

	switch {
	case succeeded(pipeline.StageIngest):
		return nil
	case succeeded(pipeline.StageTransfer):
		return []pipeline.Stage{pipeline.StageIngest}
	case succeeded(pipeline.StageBuildSIP):
		if cfg.TestMode {
			return nil
		}
		return []pipeline.Stage{pipeline.StageTransfer}
	case succeeded(pipeline.StagePrepareIP):
		return []pipeline.Stage{pipeline.StageBuildSIP}
	case succeeded(pipeline.StageValidationMetadata):
		payload := rec.StageInfo(pipeline.StageValidationPayload)
		if (payload != nil && payload.Completed) || skipPayload {
			return []pipeline.Stage{pipeline.StagePrepareIP}
		}
		// Payload validation still pending; the record runner waits for
		// the full step tuple, so this branch only fires on resume.
		return []pipeline.Stage{pipeline.StageValidationPayload}
	}

	if hotfolder {
		if succeeded(pipeline.StageImportIPs) {
			if skipPayload {
				return []pipeline.Stage{pipeline.StageValidationMetadata}
			}
			return []pipeline.Stage{pipeline.StageValidationMetadata, pipeline.StageValidationPayload}
		}
		return []pipeline.Stage{pipeline.StageImportIPs}
	}

	if succeeded(pipeline.StageBuildIP) {
		if skipPayload {
			return []pipeline.Stage{pipeline.StageValidationMetadata}
		}
		return []pipeline.Stage{pipeline.StageValidationMetadata, pipeline.StageValidationPayload}
	}
	if succeeded(pipeline.StageImportIEs) {
		return []pipeline.Stage{pipeline.StageBuildIP}
	}
	return []pipeline.Stage{pipeline.StageImportIEs}
}

// StatusForStage derives the record status after a stage has run.
// Monotonic: a record that already left the in-process status keeps
// its terminal status.
func StatusForStage(stage pipeline.Stage, rec *pipeline.Record) pipeline.RecordStatus {
	if rec.Status != pipeline.StatusInProcess && rec.Status != "" {
		return rec.Status
	}
	info := rec.StageInfo(stage)
	if info != nil && info.Completed && (info.Success == nil || !*info.Success) {
		return pipeline.ErrorStatusForStage(stage)
	}
	return pipeline.StatusInProcess
}
