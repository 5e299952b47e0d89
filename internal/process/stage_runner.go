package process

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/archivebridge-backend/internal/adapters"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

// StageOpts tune a single stage invocation. The collector skips eval
// and post-stage when bootstrapping the import.
type StageOpts struct {
	SkipEval      bool
	SkipPostStage bool
}

/*
StageRunner executes one (record, stage) pair end to end: child token
and report placeholder, abort handle, request construction, submit and
poll, evaluation, and the post-stage side effects. Errors never escape;
they convert the stage to a failure and the record to the matching
terminal status.
*/
type StageRunner struct {
	registry *adapters.Registry
	post     *PostStage
	log      *logger.Logger
}

func NewStageRunner(registry *adapters.Registry, post *PostStage, logg *logger.Logger) *StageRunner {
	return &StageRunner{
		registry: registry,
		post:     post,
		log:      logg.With("component", "StageRunner"),
	}
}

func (r *StageRunner) RunStage(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, rec *pipeline.Record, stage pipeline.Stage, opts StageOpts) {
	adapter, err := r.registry.Get(stage)
	if err != nil {
		r.failStage(jc, rec, stage, pipeline.StatusProcessError, err)
		return
	}

	// Reuse the downstream token a resumed record already holds so the
	// service can pick up its own prior work.
	token := ""
	jc.Update(func(rep *pipeline.Report) {
		if prior := rec.StageInfo(stage); prior != nil && prior.Token != "" {
			token = prior.Token
		} else {
			token = uuid.NewString()
		}
	})
	logID := token + "@" + string(stage)

	jc.Update(func(rep *pipeline.Report) {
		rec.Stages[stage] = &pipeline.RecordStageInfo{Token: token, LogID: logID}
		rep.Children[logID] = map[string]any{}
	})

	jc.AddChild(token, r.abortHandle(jc, adapter, token, logID))
	jc.Push(ctx)

	var body map[string]any
	jc.Update(func(rep *pipeline.Report) {
		body, err = adapter.BuildRequestBody(cfg, rec)
	})
	if err != nil {
		jc.RemoveChild(token)
		r.failStage(jc, rec, stage, pipeline.StatusProcessError, err)
		jc.Push(ctx)
		return
	}
	body["token"] = token

	client := adapter.Client()
	if _, err = client.Submit(ctx, adapter.Path(), body); err != nil {
		jc.RemoveChild(token)
		r.failStage(jc, rec, stage, "", err)
		jc.Push(ctx)
		return
	}

	childReport, err := client.Poll(ctx, token, func(intermediate map[string]any) {
		jc.Update(func(rep *pipeline.Report) {
			rep.Children[logID] = intermediate
		})
	})
	jc.RemoveChild(token)
	if err != nil {
		r.failStage(jc, rec, stage, "", err)
		jc.Push(ctx)
		return
	}

	success := adapter.Success(childReport)
	jc.Update(func(rep *pipeline.Report) {
		rep.Children[logID] = childReport
		info := rec.Stages[stage]
		info.Completed = true
		info.Success = pipeline.BoolPtr(success)

		if !opts.SkipEval {
			adapter.Eval(rec, info, childReport)
			r.mirrorChildErrors(rep, rec, stage, childReport)
		}
		rec.Status = StatusForStage(stage, rec)
		rec.Touch()
	})

	if !opts.SkipPostStage && success {
		r.post.Run(ctx, jc, cfg, rec, stage)
	}
	jc.Push(ctx)
}

/*
abortHandle builds the cancellation callback for one child job. The
callback captures the adapter's client configuration by value and
builds a fresh client on invocation, so it stays valid after the stage
task that registered it has unwound.
*/
func (r *StageRunner) abortHandle(jc *Context, adapter adapters.StageAdapter, token, logID string) AbortFunc {
	cc := adapter.Client().Config()
	abortPath := adapter.AbortPath()
	log := r.log

	return func(ctx context.Context, origin, reason string) {
		client := adapters.NewClient(cc, log)
		if err := client.Abort(ctx, abortPath, token, origin, reason); err != nil {
			jc.Update(func(rep *pipeline.Report) {
				rep.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
					"Failed to abort child '%s' at '%s': %s", logID, cc.Host, err))
			})
			return
		}
		report, _, err := client.FetchReport(ctx, token)
		if err != nil || report == nil {
			jc.Update(func(rep *pipeline.Report) {
				rep.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
					"Failed to fetch latest results from child '%s' at '%s': %v", logID, cc.Host, err))
			})
			return
		}
		jc.Update(func(rep *pipeline.Report) {
			rep.Children[logID] = report
		})
	}
}

// failStage converts an error into stage and record state. An empty
// status means derive the stage-specific error status.
func (r *StageRunner) failStage(jc *Context, rec *pipeline.Record, stage pipeline.Stage, status pipeline.RecordStatus, err error) {
	r.log.Error("Stage execution failed", "stage", string(stage), "record", rec.ID, "error", err)
	jc.Update(func(rep *pipeline.Report) {
		info := rec.StageInfo(stage)
		if info == nil {
			info = &pipeline.RecordStageInfo{}
			rec.Stages[stage] = info
		}
		info.Completed = true
		info.Success = pipeline.BoolPtr(false)

		rep.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
			"Running stage '%s' for record '%s' caused an error: %s", stage, rec.ID, err))

		if status != "" {
			rec.Status = status
		} else {
			rec.Status = StatusForStage(stage, rec)
		}
		rec.Touch()
	})
}

// mirrorChildErrors copies the downstream service's ERROR entries into
// the job log so operators can triage without opening child reports.
func (r *StageRunner) mirrorChildErrors(rep *pipeline.Report, rec *pipeline.Record, stage pipeline.Stage, childReport map[string]any) {
	log, ok := childReport["log"].(map[string]any)
	if !ok {
		return
	}
	entries, ok := log[pipeline.LogError].([]any)
	if !ok {
		return
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		body, _ := entry["body"].(string)
		rep.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
			"Running stage '%s' for record '%s' caused an error: %s", stage, rec.ID, body))
	}
}
