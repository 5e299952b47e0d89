package process

import (
	"context"
	"encoding/json"
	"sync"

	"gorm.io/datatypes"

	"github.com/yungbote/archivebridge-backend/internal/data/repos/jobs"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

// AbortFunc cancels one downstream child job. Implementations must be
// self-contained values so they can outlive the stage task that
// registered them.
type AbortFunc func(ctx context.Context, origin, reason string)

/*
Context is the job-scoped execution state shared by all runners of one
job: the report tree, the registry of abortable children, and the push
primitive that snapshots the report into the jobs row. All mutation
goes through Update; Push serializes under the same mutex so the
persisted state always equals the in-memory state at push time.
*/
type Context struct {
	mu       sync.Mutex
	token    string
	report   *pipeline.Report
	children map[string]AbortFunc
	done     chan struct{}
	aborted  bool

	jobRepo jobs.JobRepo
	log     *logger.Logger
}

func NewContext(token string, report *pipeline.Report, jobRepo jobs.JobRepo, logg *logger.Logger) *Context {
	return &Context{
		token:    token,
		report:   report,
		children: map[string]AbortFunc{},
		done:     make(chan struct{}),
		jobRepo:  jobRepo,
		log:      logg.With("job_token", token),
	}
}

func (c *Context) Token() string { return c.token }

// Update runs fn with exclusive access to the report tree.
func (c *Context) Update(fn func(r *pipeline.Report)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.report)
}

// Push snapshots the report into the jobs row. A job that was aborted
// concurrently keeps its final aborted report.
func (c *Context) Push(ctx context.Context) {
	c.mu.Lock()
	raw, err := json.Marshal(c.report)
	c.mu.Unlock()
	if err != nil {
		c.log.Error("Failed to serialize report", "error", err)
		return
	}
	_, err = c.jobRepo.UpdateFieldsUnlessStatus(
		dbctx.Context{Ctx: ctx},
		c.token,
		[]string{store.JobAborted},
		map[string]interface{}{"report": datatypes.JSON(raw)},
	)
	if err != nil {
		c.log.Error("Failed to push report", "error", err)
	}
}

// AddChild registers an abort handle for a downstream child job.
func (c *Context) AddChild(token string, abort AbortFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children[token] = abort
}

func (c *Context) RemoveChild(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.children, token)
}

// Aborted reports whether Abort has been called.
func (c *Context) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Done is closed on abort; runners use it for cooperative unwinding.
func (c *Context) Done() <-chan struct{} { return c.done }

/*
Abort fans the cancellation out to every registered child, each abort
being fire-and-then-observe: request downstream cancellation, then
capture the downstream's final report. Blocks until all children have
been notified.
*/
func (c *Context) Abort(ctx context.Context, origin, reason string) {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	close(c.done)
	handles := make([]AbortFunc, 0, len(c.children))
	for _, abort := range c.children {
		handles = append(handles, abort)
	}
	c.mu.Unlock()

	for _, abort := range handles {
		abort(ctx, origin, reason)
	}

	c.Update(func(r *pipeline.Report) {
		r.Progress.Status = pipeline.ProgressAborted
		r.Progress.Verbose = "aborted: " + reason + " (" + origin + ")"
		r.Log.Add(pipeline.LogEvent, origin, "Job was aborted: "+reason)
	})
}
