package process

import (
	"testing"

	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

func pluginConfig() *pipeline.JobConfig {
	return &pipeline.JobConfig{
		ID:       "jc-1",
		Template: &pipeline.Template{Type: pipeline.TemplatePlugin},
	}
}

func hotfolderConfig() *pipeline.JobConfig {
	return &pipeline.JobConfig{
		ID:       "jc-1",
		Template: &pipeline.Template{Type: pipeline.TemplateHotfolder},
	}
}

func markSucceeded(rec *pipeline.Record, stages ...pipeline.Stage) {
	for _, s := range stages {
		rec.Stages[s] = &pipeline.RecordStageInfo{
			Completed: true,
			Success:   pipeline.BoolPtr(true),
		}
	}
}

func assertStages(t *testing.T, got, want []pipeline.Stage) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected stages %v, got %v", want, got)
		}
	}
}

func TestNextStagesAfterImport(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	markSucceeded(rec, pipeline.StageImportIEs)
	assertStages(t, NextStages(rec, pluginConfig()), []pipeline.Stage{pipeline.StageBuildIP})
}

func TestNextStagesAfterBuildIPRunsBothValidations(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	markSucceeded(rec, pipeline.StageImportIEs, pipeline.StageBuildIP)
	assertStages(t, NextStages(rec, pluginConfig()), []pipeline.Stage{
		pipeline.StageValidationMetadata,
		pipeline.StageValidationPayload,
	})
}

func TestNextStagesBitstreamSkipsPayloadValidation(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	rec.Bitstream = true
	markSucceeded(rec, pipeline.StageImportIEs, pipeline.StageBuildIP)
	assertStages(t, NextStages(rec, pluginConfig()), []pipeline.Stage{pipeline.StageValidationMetadata})

	markSucceeded(rec, pipeline.StageValidationMetadata)
	assertStages(t, NextStages(rec, pluginConfig()), []pipeline.Stage{pipeline.StagePrepareIP})
}

func TestNextStagesAfterValidations(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	markSucceeded(rec,
		pipeline.StageImportIEs,
		pipeline.StageBuildIP,
		pipeline.StageValidationMetadata,
		pipeline.StageValidationPayload,
	)
	assertStages(t, NextStages(rec, pluginConfig()), []pipeline.Stage{pipeline.StagePrepareIP})
}

func TestNextStagesResumedRecordFinishesPayloadValidation(t *testing.T) {
	// A resumed record may carry a successful metadata validation but no
	// payload validation at all; the missing half runs alone.
	rec := pipeline.NewRecord("r1")
	markSucceeded(rec,
		pipeline.StageImportIEs,
		pipeline.StageBuildIP,
		pipeline.StageValidationMetadata,
	)
	assertStages(t, NextStages(rec, pluginConfig()), []pipeline.Stage{pipeline.StageValidationPayload})
}

func TestNextStagesTestModeEndsAfterBuildSIP(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	markSucceeded(rec,
		pipeline.StageImportIEs,
		pipeline.StageBuildIP,
		pipeline.StageValidationMetadata,
		pipeline.StageValidationPayload,
		pipeline.StagePrepareIP,
		pipeline.StageBuildSIP,
	)
	cfg := pluginConfig()
	cfg.TestMode = true
	if next := NextStages(rec, cfg); next != nil {
		t.Fatalf("expected no further stages in test mode, got %v", next)
	}

	cfg.TestMode = false
	assertStages(t, NextStages(rec, cfg), []pipeline.Stage{pipeline.StageTransfer})
}

func TestNextStagesTransferAndIngest(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	markSucceeded(rec,
		pipeline.StageImportIEs,
		pipeline.StageBuildIP,
		pipeline.StageValidationMetadata,
		pipeline.StageValidationPayload,
		pipeline.StagePrepareIP,
		pipeline.StageBuildSIP,
		pipeline.StageTransfer,
	)
	assertStages(t, NextStages(rec, pluginConfig()), []pipeline.Stage{pipeline.StageIngest})

	markSucceeded(rec, pipeline.StageIngest)
	if next := NextStages(rec, pluginConfig()); next != nil {
		t.Fatalf("expected pipeline to end after ingest, got %v", next)
	}
}

func TestNextStagesHotfolderSkipsBuildIP(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	assertStages(t, NextStages(rec, hotfolderConfig()), []pipeline.Stage{pipeline.StageImportIPs})

	markSucceeded(rec, pipeline.StageImportIPs)
	assertStages(t, NextStages(rec, hotfolderConfig()), []pipeline.Stage{
		pipeline.StageValidationMetadata,
		pipeline.StageValidationPayload,
	})
}

func TestStatusForStageMapsValidationFailures(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	rec.Stages[pipeline.StageValidationMetadata] = &pipeline.RecordStageInfo{
		Completed: true,
		Success:   pipeline.BoolPtr(false),
	}
	if got := StatusForStage(pipeline.StageValidationMetadata, rec); got != pipeline.StatusIPValError {
		t.Fatalf("expected %s, got %s", pipeline.StatusIPValError, got)
	}

	rec = pipeline.NewRecord("r2")
	rec.Stages[pipeline.StageValidationPayload] = &pipeline.RecordStageInfo{
		Completed: true,
		Success:   pipeline.BoolPtr(false),
	}
	if got := StatusForStage(pipeline.StageValidationPayload, rec); got != pipeline.StatusObjValError {
		t.Fatalf("expected %s, got %s", pipeline.StatusObjValError, got)
	}
}

func TestStatusForStageIsMonotonic(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	rec.Status = pipeline.StatusObjValError
	rec.Stages[pipeline.StageValidationMetadata] = &pipeline.RecordStageInfo{
		Completed: true,
		Success:   pipeline.BoolPtr(true),
	}
	if got := StatusForStage(pipeline.StageValidationMetadata, rec); got != pipeline.StatusObjValError {
		t.Fatalf("terminal status must stick, got %s", got)
	}
}

func TestStatusForStageSuccessfulStageKeepsInProcess(t *testing.T) {
	rec := pipeline.NewRecord("r1")
	rec.Stages[pipeline.StageBuildIP] = &pipeline.RecordStageInfo{
		Completed: true,
		Success:   pipeline.BoolPtr(true),
	}
	if got := StatusForStage(pipeline.StageBuildIP, rec); got != pipeline.StatusInProcess {
		t.Fatalf("expected in-process, got %s", got)
	}
}
