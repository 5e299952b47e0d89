package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/archivebridge-backend/internal/config"
	"github.com/yungbote/archivebridge-backend/internal/data/repos/jobs"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

/*
JobRunner owns one full job execution: collect the record set, fan the
records out over a bounded pool, aggregate the outcome, finalize the
jobs row, and notify the caller. It never returns an error; every
failure mode ends in a finalized row.
*/
type JobRunner struct {
	cfg       *config.Config
	collector *Collector
	records   *RecordRunner
	jobRepo   jobs.JobRepo
	log       *logger.Logger
}

func NewJobRunner(cfg *config.Config, collector *Collector, recordRunner *RecordRunner, jobRepo jobs.JobRepo, logg *logger.Logger) *JobRunner {
	return &JobRunner{
		cfg:       cfg,
		collector: collector,
		records:   recordRunner,
		jobRepo:   jobRepo,
		log:       logg.With("component", "JobRunner"),
	}
}

func (j *JobRunner) Run(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, callbackURL string) {
	log := j.log.With("job_token", jc.Token())
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Job execution panicked", "panic", rec)
			jc.Update(func(r *pipeline.Report) {
				body := fmt.Sprintf("Job processing failed: %v", rec)
				if j.cfg.LogErrorTracebacks {
					body += "\n" + string(debug.Stack())
				}
				r.Log.Add(pipeline.LogError, logOrigin, body)
				r.Data.Success = pipeline.BoolPtr(false)
				r.Progress.Status = pipeline.ProgressCompleted
				r.Progress.Numeric = 100
			})
			j.finalize(ctx, jc, cfg, false)
			j.notify(ctx, jc.Token(), callbackURL)
		}
	}()

	jc.Update(func(r *pipeline.Report) {
		r.Progress.Status = pipeline.ProgressRunning
		r.Progress.Verbose = "collecting records"
		r.Log.Add(pipeline.LogEvent, logOrigin, fmt.Sprintf(
			"Starting processor for job '%s'.", jc.Token()))
	})
	jc.Push(ctx)

	stopPusher := j.startPusher(ctx, jc)

	recs := j.collector.Collect(ctx, jc, cfg)

	jc.Update(func(r *pipeline.Report) {
		r.Progress.Verbose = fmt.Sprintf("processing %d record(s)", len(recs))
	})

	pool, poolCtx := errgroup.WithContext(ctx)
	pool.SetLimit(j.cfg.RecordConcurrency)
	for _, rec := range recs {
		if rec.Completed {
			continue
		}
		rec := rec
		pool.Go(func() error {
			j.records.Run(poolCtx, jc, cfg, rec)
			return nil
		})
	}
	pool.Wait()
	stopPusher()

	success := j.aggregate(jc)
	if jc.Aborted() {
		// The abort path owns the row's final state.
		jc.Push(ctx)
		j.notify(ctx, jc.Token(), callbackURL)
		return
	}
	j.finalize(ctx, jc, cfg, success)
	j.notify(ctx, jc.Token(), callbackURL)
}

// startPusher snapshots the report into the jobs row on a fixed
// interval while records are in flight.
func (j *JobRunner) startPusher(ctx context.Context, jc *Context) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(j.cfg.PushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				jc.Push(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(stop) }
}

// aggregate computes the job outcome from the record set and writes
// the closing log lines and progress.
func (j *JobRunner) aggregate(jc *Context) bool {
	success := false
	jc.Update(func(r *pipeline.Report) {
		total := 0
		failed := 0
		for _, rec := range r.Data.Records {
			total++
			if rec.Status != pipeline.StatusComplete {
				failed++
			}
		}
		r.Data.Issues = failed
		success = failed == 0
		r.Data.Success = pipeline.BoolPtr(success)

		r.Log.Add(pipeline.LogInfo, logOrigin, fmt.Sprintf(
			"Processed %d record(s) (%d successful, %d failed).", total, total-failed, failed))
		if success {
			r.Log.Add(pipeline.LogInfo, logOrigin, "Job has been successful.")
		} else {
			r.Log.Add(pipeline.LogInfo, logOrigin, "Job has been unsuccessful.")
		}
		if !jc.aborted {
			r.Progress.Status = pipeline.ProgressCompleted
			r.Progress.Verbose = "done"
			r.Progress.Numeric = 100
		}
	})
	return success
}

// finalize writes the terminal jobs row unless an abort got there
// first.
func (j *JobRunner) finalize(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, success bool) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":         store.JobCompleted,
		"success":        success,
		"datetime_ended": now,
	}
	if cfg.ExecutionContext != nil {
		if expiry := cfg.ExecutionContext.ArtifactsExpiry(now); expiry != nil {
			updates["datetime_artifacts_expire"] = expiry
		}
	}

	var raw []byte
	var err error
	jc.Update(func(r *pipeline.Report) {
		raw, err = json.Marshal(r)
	})
	if err != nil {
		j.log.Error("Failed to serialize final report", "job_token", jc.Token(), "error", err)
	} else {
		updates["report"] = datatypes.JSON(raw)
	}

	_, err = j.jobRepo.UpdateFieldsUnlessStatus(
		dbctx.Context{Ctx: ctx},
		jc.Token(),
		[]string{store.JobAborted},
		updates,
	)
	if err != nil {
		j.log.Error("Failed to finalize job", "job_token", jc.Token(), "error", err)
	}
}

// notify POSTs the job token to the submitter's callback URL, if one
// was given.
func (j *JobRunner) notify(ctx context.Context, token, callbackURL string) {
	if callbackURL == "" {
		return
	}
	payload, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		j.log.Error("Failed to build callback request", "url", callbackURL, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: j.cfg.RequestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		j.log.Error("Callback notification failed", "url", callbackURL, "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		j.log.Error("Callback notification rejected", "url", callbackURL, "status", resp.StatusCode)
	}
}
