package process

import (
	"context"
	"sync"

	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

/*
RecordRunner drives one record through its state machine: select the
next step tuple, dispatch its stages in parallel, repeat until the
record reaches a terminal status. Stages inside one tuple run
concurrently; tuples stay strictly ordered.
*/
type RecordRunner struct {
	stages *StageRunner
	post   *PostStage
	log    *logger.Logger
}

func NewRecordRunner(stages *StageRunner, post *PostStage, logg *logger.Logger) *RecordRunner {
	return &RecordRunner{
		stages: stages,
		post:   post,
		log:    logg.With("component", "RecordRunner"),
	}
}

func (r *RecordRunner) Run(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, rec *pipeline.Record) {
	jc.Update(func(rep *pipeline.Report) {
		rec.Started = true
	})

	for {
		if ctx.Err() != nil || jc.Aborted() {
			return
		}

		var next []pipeline.Stage
		var terminal bool
		jc.Update(func(rep *pipeline.Report) {
			terminal = rec.Status.Terminal()
			if terminal {
				return
			}
			next = NextStages(rec, cfg)
		})

		if terminal {
			r.finish(ctx, jc, cfg, rec)
			return
		}
		if len(next) == 0 {
			jc.Update(func(rep *pipeline.Report) {
				rec.Status = pipeline.StatusComplete
				rec.Touch()
			})
			r.finish(ctx, jc, cfg, rec)
			return
		}

		var wg sync.WaitGroup
		for _, stage := range next {
			wg.Add(1)
			go func(stage pipeline.Stage) {
				defer wg.Done()
				r.stages.RunStage(ctx, jc, cfg, rec, stage, StageOpts{})
			}(stage)
		}
		wg.Wait()
	}
}

func (r *RecordRunner) finish(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, rec *pipeline.Record) {
	jc.Update(func(rep *pipeline.Report) {
		rec.Completed = true
		rec.Touch()
	})
	r.post.FinalizeRecord(ctx, jc, cfg, rec)
	jc.Push(ctx)
}
