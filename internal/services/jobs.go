package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/archivebridge-backend/internal/data/repos/jobs"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/archivebridge-backend/internal/pkg/errors"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
	"github.com/yungbote/archivebridge-backend/internal/process"
)

// ErrUnknownJob is returned when a token does not resolve to a job.
var ErrUnknownJob = errors.New("unknown job token")

// SubmitParams is a validated job submission.
type SubmitParams struct {
	// Token allows idempotent resubmission; empty means mint a new one.
	Token       string
	JobConfigID string
	TestMode    bool
	Resume      bool
	CallbackURL string
	Context     pipeline.JobContext
}

// ReportResult pairs a report with whether it is final.
type ReportResult struct {
	Report map[string]any
	Final  bool
}

/*
JobService is the submission-side surface of the processor: it accepts
jobs into the queue, serves status reports, and aborts queued or
running jobs. Running jobs are abortable through their live execution
context, which the worker registers for the duration of the run.
*/
type JobService struct {
	jobRepo     jobs.JobRepo
	backendHost string
	log         *logger.Logger

	mu   sync.Mutex
	live map[string]*process.Context
}

func NewJobService(jobRepo jobs.JobRepo, backendHost string, logg *logger.Logger) *JobService {
	return &JobService{
		jobRepo:     jobRepo,
		backendHost: backendHost,
		log:         logg.With("service", "JobService"),
		live:        map[string]*process.Context{},
	}
}

// Submit enqueues a job and returns its token. Resubmitting a known
// token acknowledges without creating a second row.
func (s *JobService) Submit(ctx context.Context, params SubmitParams) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}

	token := params.Token
	if token != "" {
		exists, err := s.jobRepo.Exists(dbc, token)
		if err != nil {
			return "", fmt.Errorf("checking token: %w", err)
		}
		if exists {
			return token, nil
		}
	} else {
		token = uuid.NewString()
	}
	if _, err := uuid.Parse(token); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	args := map[string]any{
		"process": map[string]any{
			"id":       params.JobConfigID,
			"testMode": params.TestMode,
			"resume":   params.Resume,
		},
	}
	if params.CallbackURL != "" {
		args["callbackUrl"] = params.CallbackURL
	}
	jobContext := map[string]any{}
	if params.Context.UserTriggered != "" {
		jobContext["userTriggered"] = params.Context.UserTriggered
	}
	if params.Context.DatetimeTriggered != "" {
		jobContext["datetimeTriggered"] = params.Context.DatetimeTriggered
	}
	if params.Context.TriggerType != "" {
		jobContext["triggerType"] = string(params.Context.TriggerType)
	}
	if params.Context.ArtifactsTTL != nil {
		jobContext["artifactsTTL"] = *params.Context.ArtifactsTTL
	}
	if len(jobContext) > 0 {
		args["context"] = jobContext
	}

	report := pipeline.NewReport(token, args)
	report.Host = s.backendHost
	raw, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("serializing initial report: %w", err)
	}

	triggered := time.Now().UTC()
	if params.Context.DatetimeTriggered != "" {
		if t, pErr := time.Parse(time.RFC3339, params.Context.DatetimeTriggered); pErr == nil {
			triggered = t.UTC()
		}
	}
	triggerType := params.Context.TriggerType
	if triggerType == "" {
		triggerType = pipeline.TriggerManual
	}

	job := &store.Job{
		Token:             token,
		Status:            store.JobQueued,
		JobConfigID:       params.JobConfigID,
		UserTriggered:     params.Context.UserTriggered,
		DatetimeTriggered: &triggered,
		TriggerType:       string(triggerType),
		Report:            datatypes.JSON(raw),
	}
	if err := s.jobRepo.Create(dbc, job); err != nil {
		return "", fmt.Errorf("enqueueing job: %w", err)
	}
	s.log.Info("Job enqueued", "token", token, "job_config", params.JobConfigID)
	return token, nil
}

// Report returns the job's current report. Final is false while the
// job is still queued or running.
func (s *JobService) Report(ctx context.Context, token string) (*ReportResult, error) {
	job, err := s.jobRepo.Get(dbctx.Context{Ctx: ctx}, token)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, ErrUnknownJob
	}
	if err != nil {
		return nil, err
	}

	report := map[string]any{}
	if len(job.Report) > 0 {
		if err := json.Unmarshal(job.Report, &report); err != nil {
			return nil, fmt.Errorf("decoding stored report: %w", err)
		}
	}
	final := job.Status == store.JobCompleted || job.Status == store.JobAborted
	return &ReportResult{Report: report, Final: final}, nil
}

/*
Abort cancels a job. Running jobs broadcast the abort to their children
through the live execution context; queued jobs get their report
rewritten in place. Aborting a finished job is a no-op.
*/
func (s *JobService) Abort(ctx context.Context, token, origin, reason string) error {
	dbc := dbctx.Context{Ctx: ctx}
	job, err := s.jobRepo.Get(dbc, token)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return ErrUnknownJob
	}
	if err != nil {
		return err
	}
	if job.Status == store.JobCompleted || job.Status == store.JobAborted {
		return nil
	}
	if origin == "" {
		origin = "unknown"
	}

	s.mu.Lock()
	jc := s.live[token]
	s.mu.Unlock()

	if jc != nil {
		jc.Abort(ctx, origin, reason)
		s.finalizeAborted(ctx, jc, token)
		return nil
	}

	// Queued, or a running job whose worker is gone; rewrite the stored
	// report to its aborted shape.
	report := map[string]any{}
	if len(job.Report) > 0 {
		_ = json.Unmarshal(job.Report, &report)
	}
	report["progress"] = map[string]any{
		"status":  pipeline.ProgressAborted,
		"verbose": "aborted: " + reason + " (" + origin + ")",
		"numeric": 0,
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("serializing aborted report: %w", err)
	}
	now := time.Now().UTC()
	return s.jobRepo.UpdateFields(dbc, token, map[string]interface{}{
		"status":         store.JobAborted,
		"success":        false,
		"datetime_ended": now,
		"report":         datatypes.JSON(raw),
	})
}

func (s *JobService) finalizeAborted(ctx context.Context, jc *process.Context, token string) {
	var raw []byte
	var err error
	jc.Update(func(r *pipeline.Report) {
		raw, err = json.Marshal(r)
	})
	if err != nil {
		s.log.Error("Failed to serialize aborted report", "token", token, "error", err)
		return
	}
	now := time.Now().UTC()
	uErr := s.jobRepo.UpdateFields(dbctx.Context{Ctx: ctx}, token, map[string]interface{}{
		"status":         store.JobAborted,
		"success":        false,
		"datetime_ended": now,
		"report":         datatypes.JSON(raw),
	})
	if uErr != nil {
		s.log.Error("Failed to finalize aborted job", "token", token, "error", uErr)
	}
}

// Register exposes a running job's execution context for aborts.
func (s *JobService) Register(token string, jc *process.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[token] = jc
}

func (s *JobService) Deregister(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, token)
}
