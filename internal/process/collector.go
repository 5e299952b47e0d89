package process

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yungbote/archivebridge-backend/internal/adapters"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/jobs"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/records"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

// importRecordID names the synthetic record that carries the one-off
// import stage; it never appears in report.data.records.
const importRecordID = "import"

/*
Collector assembles the initial record set of a job run in two phases:
resumable in-process records from prior runs, then fresh records via
the import stage.
*/
type Collector struct {
	stages    *StageRunner
	post      *PostStage
	jobRepo   jobs.JobRepo
	records   records.RecordRepo
	artifacts records.ArtifactRepo
	log       *logger.Logger
}

func NewCollector(stages *StageRunner, post *PostStage, jobRepo jobs.JobRepo, recordRepo records.RecordRepo, artifactRepo records.ArtifactRepo, logg *logger.Logger) *Collector {
	return &Collector{
		stages:    stages,
		post:      post,
		jobRepo:   jobRepo,
		records:   recordRepo,
		artifacts: artifactRepo,
		log:       logg.With("component", "Collector"),
	}
}

func (c *Collector) Collect(ctx context.Context, jc *Context, cfg *pipeline.JobConfig) []*pipeline.Record {
	var out []*pipeline.Record
	if cfg.Resume && !cfg.TestMode {
		out = c.resume(ctx, jc, cfg)
	}
	out = append(out, c.freshImport(ctx, jc, cfg)...)
	return out
}

/*
resume returns the records of this job configuration that a prior run
left in process and whose artifacts are still available. Their stage
maps are rehydrated from the owning job's stored report, keeping only
successful stages.
*/
func (c *Collector) resume(ctx context.Context, jc *Context, cfg *pipeline.JobConfig) []*pipeline.Record {
	dbc := dbctx.Context{Ctx: ctx}
	now := time.Now().UTC()

	rows, err := c.records.ListInProcessByJobConfig(dbc, cfg.ID)
	if err != nil {
		jc.Update(func(r *pipeline.Report) {
			r.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
				"Failed to load resumable records: %s", err))
		})
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	// Keep the artifacts of resumable work alive for another TTL
	// window, but never revive rows that already expired.
	if cfg.ExecutionContext != nil && cfg.ExecutionContext.ArtifactsTTL != nil {
		until := cfg.ExecutionContext.ArtifactsExpiry(now)
		tokens := make([]string, 0, len(rows))
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			tokens = append(tokens, row.JobToken)
			ids = append(ids, row.ID)
		}
		if err := c.jobRepo.ExtendArtifactsExpiry(dbc, tokens, until, now); err != nil {
			c.log.Error("Failed to extend job artifact expiry", "error", err)
		}
		if err := c.artifacts.ExtendExpiry(dbc, ids, until, now); err != nil {
			c.log.Error("Failed to extend artifact expiry", "error", err)
		}
	}

	var out []*pipeline.Record
	for _, row := range rows {
		rec, ok := c.rehydrate(ctx, jc, row, now)
		if !ok {
			c.markUnresumable(ctx, jc, row.ID)
			continue
		}
		if err := c.records.UpdateFields(dbc, row.ID, map[string]interface{}{
			"job_token":        jc.Token(),
			"datetime_changed": now,
		}); err != nil {
			c.log.Error("Failed to repoint resumed record", "record", row.ID, "error", err)
		}
		jc.Update(func(r *pipeline.Report) {
			r.Data.Records[rec.ID] = rec
		})
		out = append(out, rec)
	}
	return out
}

// rehydrate rebuilds the in-memory record from its row and the owning
// job's stored report. Returns false when the record cannot resume.
func (c *Collector) rehydrate(ctx context.Context, jc *Context, row *store.Record, now time.Time) (*pipeline.Record, bool) {
	job, err := c.jobRepo.Get(dbctx.Context{Ctx: ctx}, row.JobToken)
	if err != nil || job == nil {
		return nil, false
	}
	if job.DatetimeArtifactsExpire == nil || !job.DatetimeArtifactsExpire.After(now) {
		return nil, false
	}

	// Row-level expiry can run ahead of the owning job's; a record with
	// no live artifacts left has nothing to resume from.
	live, err := c.artifacts.ListLiveByRecord(dbctx.Context{Ctx: ctx}, row.ID, now)
	if err != nil || len(live) == 0 {
		return nil, false
	}

	var stored pipeline.Report
	if err := json.Unmarshal(job.Report, &stored); err != nil {
		return nil, false
	}
	prior, ok := stored.Data.Records[row.ID]
	if !ok {
		return nil, false
	}

	rec := pipeline.NewRecord(row.ID)
	rec.ImportType = row.ImportType
	rec.OAIIdentifier = row.OAIIdentifier
	rec.OAIDatestamp = row.OAIDatestamp
	rec.HotfolderOriginalPath = row.HotfolderOriginalPath
	rec.Bitstream = row.Bitstream
	rec.SkipObjectValidation = row.SkipObjectValidation
	if row.IEID != nil {
		rec.IEID = *row.IEID
	}
	rec.SourceOrganization = prior.SourceOrganization
	rec.OriginSystemID = prior.OriginSystemID
	rec.ExternalID = prior.ExternalID

	for stage, info := range prior.Stages {
		if !info.Succeeded() {
			continue
		}
		rec.Stages[stage] = info
		if info.LogID != "" {
			if child, ok := stored.Children[info.LogID]; ok {
				jc.Update(func(r *pipeline.Report) {
					r.Children[info.LogID] = child
				})
			}
		}
	}

	// A record without its import stage has no provenance to resume
	// from.
	if rec.StageInfo(pipeline.StageImportIEs) == nil && rec.StageInfo(pipeline.StageImportIPs) == nil {
		return nil, false
	}
	return rec, true
}

func (c *Collector) markUnresumable(ctx context.Context, jc *Context, recordID string) {
	jc.Update(func(r *pipeline.Report) {
		r.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
			"Record '%s' cannot be resumed, its artifacts are no longer available.", recordID))
	})
	err := c.records.UpdateFields(dbctx.Context{Ctx: ctx}, recordID, map[string]interface{}{
		"status":           string(pipeline.StatusProcessError),
		"datetime_changed": time.Now().UTC(),
	})
	if err != nil {
		c.log.Error("Failed to mark record unresumable", "record", recordID, "error", err)
	}
}

/*
freshImport runs the import stage once via a synthetic record and fans
the returned batch out into initialized records. Failed imports become
terminal IMPORT_ERROR records and count as issues.
*/
func (c *Collector) freshImport(ctx context.Context, jc *Context, cfg *pipeline.JobConfig) []*pipeline.Record {
	stage := pipeline.StageImportIEs
	if cfg.TemplateType() == pipeline.TemplateHotfolder {
		stage = pipeline.StageImportIPs
	}

	bootstrap := pipeline.NewRecord(importRecordID)
	c.stages.RunStage(ctx, jc, cfg, bootstrap, stage, StageOpts{SkipEval: true, SkipPostStage: true})

	info := bootstrap.StageInfo(stage)
	if info == nil {
		return nil
	}

	var childReport map[string]any
	jc.Update(func(r *pipeline.Report) {
		childReport = r.Children[info.LogID]
	})

	if !info.Succeeded() {
		c.mirrorImportErrors(jc, childReport)
		return nil
	}

	imported := adapters.ImportedRecords(stage, childReport)
	out := make([]*pipeline.Record, 0, len(imported))
	for _, rec := range imported {
		// A record already rehydrated by the resume phase keeps its
		// richer stage history.
		skip := false
		jc.Update(func(r *pipeline.Report) {
			_, skip = r.Data.Records[rec.ID]
		})
		if skip {
			continue
		}
		stageInfo := rec.StageInfo(stage)
		stageInfo.LogID = info.LogID
		if !stageInfo.Succeeded() {
			rec.Status = pipeline.StatusImportError
			rec.Completed = true
		}
		rec.Touch()

		jc.Update(func(r *pipeline.Report) {
			r.Data.Records[rec.ID] = rec
			if rec.Completed {
				r.Data.Issues++
			}
		})
		c.post.Run(ctx, jc, cfg, rec, stage)
		out = append(out, rec)
	}
	jc.Push(ctx)
	return out
}

func (c *Collector) mirrorImportErrors(jc *Context, childReport map[string]any) {
	jc.Update(func(r *pipeline.Report) {
		r.Log.Add(pipeline.LogError, logOrigin, "Import failed, no records to process.")
		if childReport == nil {
			return
		}
		log, ok := childReport["log"].(map[string]any)
		if !ok {
			return
		}
		entries, _ := log[pipeline.LogError].([]any)
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			body, _ := entry["body"].(string)
			origin, _ := entry["origin"].(string)
			if origin == "" {
				origin = logOrigin
			}
			r.Log.Add(pipeline.LogError, origin, body)
		}
	})
}
