package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/archivebridge-backend/internal/adapters"
	"github.com/yungbote/archivebridge-backend/internal/config"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/catalog"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/jobs"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/records"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/archivebridge-backend/internal/pkg/errors"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
	"github.com/yungbote/archivebridge-backend/internal/pkg/pointers"
	"github.com/yungbote/archivebridge-backend/internal/process"
	"github.com/yungbote/archivebridge-backend/internal/services"
)

/*
Pool claims queued jobs and executes them. Each worker goroutine runs
an independent claim loop; the claim itself is serialized by the
database through row locking, so multiple processor instances can
share one queue.
*/
type Pool struct {
	cfg        *config.Config
	jobRepo    jobs.JobRepo
	recordRepo records.RecordRepo
	ieRepo     records.IERepo
	artifacts  records.ArtifactRepo
	catalog    catalog.CatalogRepo
	jobService *services.JobService
	log        *logger.Logger
}

func NewPool(
	cfg *config.Config,
	jobRepo jobs.JobRepo,
	recordRepo records.RecordRepo,
	ieRepo records.IERepo,
	artifactRepo records.ArtifactRepo,
	catalogRepo catalog.CatalogRepo,
	jobService *services.JobService,
	logg *logger.Logger,
) *Pool {
	return &Pool{
		cfg:        cfg,
		jobRepo:    jobRepo,
		recordRepo: recordRepo,
		ieRepo:     ieRepo,
		artifacts:  artifactRepo,
		catalog:    catalogRepo,
		jobService: jobService,
		log:        logg.With("component", "WorkerPool"),
	}
}

// Run blocks until ctx is cancelled and all in-flight jobs returned.
func (p *Pool) Run(ctx context.Context) {
	size := p.cfg.WorkerPoolSize
	if size < 1 {
		size = 1
	}
	p.log.Info("Starting worker pool", "size", size)

	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.claimLoop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) claimLoop(ctx context.Context, id int) {
	log := p.log.With("worker", id)
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.jobRepo.ClaimNextQueued(dbctx.Context{Ctx: ctx})
		if err != nil {
			log.Error("Claim failed", "error", err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}
		p.execute(ctx, log, job)
	}
}

func (p *Pool) execute(ctx context.Context, log *logger.Logger, job *store.Job) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Worker panicked", "job_token", job.Token, "panic", rec)
		}
	}()
	log.Info("Claimed job", "job_token", job.Token, "job_config", job.JobConfigID)

	report := p.loadReport(job)
	jc := process.NewContext(job.Token, report, p.jobRepo, log)
	p.jobService.Register(job.Token, jc)
	defer p.jobService.Deregister(job.Token)

	args := parseArgs(report.Args)
	jobCfg, err := p.resolve(ctx, job, args)
	if err != nil {
		p.failResolution(ctx, jc, err)
		return
	}

	registry := adapters.NewRegistry(p.cfg, log)
	post := process.NewPostStage(job.Token, p.recordRepo, p.ieRepo, p.artifacts, log)
	stages := process.NewStageRunner(registry, post, log)
	recordRunner := process.NewRecordRunner(stages, post, log)
	collector := process.NewCollector(stages, post, p.jobRepo, p.recordRepo, p.artifacts, log)
	runner := process.NewJobRunner(p.cfg, collector, recordRunner, p.jobRepo, log)

	runner.Run(ctx, jc, jobCfg, args.callbackURL)
	log.Info("Job finished", "job_token", job.Token)
}

// loadReport restores the stored report, falling back to a fresh one
// when the row holds nothing usable.
func (p *Pool) loadReport(job *store.Job) *pipeline.Report {
	if len(job.Report) > 0 {
		var report pipeline.Report
		if err := json.Unmarshal(job.Report, &report); err == nil && report.Token != "" {
			if report.Log == nil {
				report.Log = pipeline.Log{}
			}
			if report.Data.Records == nil {
				report.Data.Records = map[string]*pipeline.Record{}
			}
			if report.Children == nil {
				report.Children = map[string]map[string]any{}
			}
			return &report
		}
	}
	return pipeline.NewReport(job.Token, nil)
}

type submissionArgs struct {
	testMode     bool
	resume       bool
	callbackURL  string
	artifactsTTL *int
}

// parseArgs extracts the submission options stored in report.args.
func parseArgs(args map[string]any) submissionArgs {
	var out submissionArgs
	if args == nil {
		return out
	}
	if proc, ok := args["process"].(map[string]any); ok {
		out.testMode, _ = proc["testMode"].(bool)
		out.resume, _ = proc["resume"].(bool)
	}
	out.callbackURL, _ = args["callbackUrl"].(string)
	if jobCtx, ok := args["context"].(map[string]any); ok {
		switch v := jobCtx["artifactsTTL"].(type) {
		case float64:
			out.artifactsTTL = pointers.Int(int(v))
		case int:
			out.artifactsTTL = pointers.Int(v)
		}
	}
	return out
}

// resolve loads the job configuration and its template into the fully
// populated execution config.
func (p *Pool) resolve(ctx context.Context, job *store.Job, args submissionArgs) (*pipeline.JobConfig, error) {
	dbc := dbctx.Context{Ctx: ctx}

	row, err := p.catalog.GetJobConfig(dbc, job.JobConfigID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, fmt.Errorf("unknown job configuration '%s'", job.JobConfigID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job configuration '%s': %w", job.JobConfigID, err)
	}

	tplRow, err := p.catalog.GetTemplate(dbc, row.TemplateID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, fmt.Errorf("unknown template '%s' for job configuration '%s'", row.TemplateID, job.JobConfigID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading template '%s': %w", row.TemplateID, err)
	}

	tpl := &pipeline.Template{
		Type:            tplRow.Type,
		TargetArchiveID: tplRow.TargetArchiveID,
	}
	if len(tplRow.AdditionalInformation) > 0 {
		if err := json.Unmarshal(tplRow.AdditionalInformation, &tpl.AdditionalInformation); err != nil {
			return nil, fmt.Errorf("decoding template '%s': %w", row.TemplateID, err)
		}
	}

	cfg := &pipeline.JobConfig{
		ID:                     row.ID,
		TestMode:               args.testMode,
		Resume:                 args.resume,
		Template:               tpl,
		Archives:               p.cfg.Archives,
		DefaultTargetArchiveID: p.cfg.DefaultTargetArchiveID,
		ExecutionContext: &pipeline.JobContext{
			UserTriggered: job.UserTriggered,
			TriggerType:   pipeline.TriggerType(job.TriggerType),
			ArtifactsTTL:  args.artifactsTTL,
		},
	}
	if job.DatetimeTriggered != nil {
		cfg.ExecutionContext.DatetimeTriggered = job.DatetimeTriggered.UTC().Format(time.RFC3339)
	}
	if len(row.DataSelection) > 0 {
		if err := json.Unmarshal(row.DataSelection, &cfg.DataSelection); err != nil {
			return nil, fmt.Errorf("decoding data selection: %w", err)
		}
	}
	if len(row.DataProcessing) > 0 {
		if err := json.Unmarshal(row.DataProcessing, &cfg.DataProcessing); err != nil {
			return nil, fmt.Errorf("decoding data processing: %w", err)
		}
	}
	return cfg, nil
}

// failResolution finalizes a job that could not even start.
func (p *Pool) failResolution(ctx context.Context, jc *process.Context, cause error) {
	jc.Update(func(r *pipeline.Report) {
		r.Log.Add(pipeline.LogError, "Job Processor", fmt.Sprintf(
			"Job could not be started: %s", cause))
		r.Data.Success = pipeline.BoolPtr(false)
		r.Progress.Status = pipeline.ProgressCompleted
		r.Progress.Verbose = "failed to start"
		r.Progress.Numeric = 100
	})

	var raw []byte
	var err error
	jc.Update(func(r *pipeline.Report) {
		raw, err = json.Marshal(r)
	})
	updates := map[string]interface{}{
		"status":         store.JobCompleted,
		"success":        false,
		"datetime_ended": time.Now().UTC(),
	}
	if err == nil {
		updates["report"] = datatypes.JSON(raw)
	}
	if _, uErr := p.jobRepo.UpdateFieldsUnlessStatus(
		dbctx.Context{Ctx: ctx}, jc.Token(), []string{store.JobAborted}, updates,
	); uErr != nil {
		p.log.Error("Failed to finalize unstartable job", "job_token", jc.Token(), "error", uErr)
	}
}
