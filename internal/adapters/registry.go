package adapters

import (
	"fmt"

	"github.com/yungbote/archivebridge-backend/internal/config"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

// base carries the pieces shared by every stage adapter.
type base struct {
	stage     pipeline.Stage
	path      string
	abortPath string
	client    *Client
}

func (b *base) Stage() pipeline.Stage { return b.stage }
func (b *base) Path() string          { return b.path }
func (b *base) Client() *Client       { return b.client }

// AbortPath is the cancellation endpoint; it matches the submission
// path except for the import stages, which share one abort route.
func (b *base) AbortPath() string {
	if b.abortPath != "" {
		return b.abortPath
	}
	return b.path
}

/*
Registry maps each pipeline stage to its configured adapter. It is
built per worker at job entry since the underlying HTTP clients hold
connection state that must not be shared across workers.
*/
type Registry struct {
	adapters map[pipeline.Stage]StageAdapter
}

func NewRegistry(cfg *config.Config, logg *logger.Logger) *Registry {
	client := func(stage pipeline.Stage) *Client {
		return NewClient(ClientConfig{
			Host:           cfg.HostForStage(stage),
			PollInterval:   cfg.PollInterval,
			Timeout:        cfg.ProcessTimeout,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.RequestMaxRetries,
			RetryDelay:     cfg.RequestRetryDelay,
		}, logg.With("stage", string(stage)))
	}

	r := &Registry{adapters: map[pipeline.Stage]StageAdapter{}}
	for _, a := range []StageAdapter{
		NewImportIEsAdapter(client(pipeline.StageImportIEs)),
		NewImportIPsAdapter(client(pipeline.StageImportIPs)),
		NewBuildIPAdapter(client(pipeline.StageBuildIP)),
		NewValidationMetadataAdapter(client(pipeline.StageValidationMetadata)),
		NewValidationPayloadAdapter(client(pipeline.StageValidationPayload)),
		NewPrepareIPAdapter(client(pipeline.StagePrepareIP)),
		NewBuildSIPAdapter(client(pipeline.StageBuildSIP)),
		NewTransferAdapter(client(pipeline.StageTransfer)),
		NewIngestAdapter(client(pipeline.StageIngest)),
	} {
		r.adapters[a.Stage()] = a
	}
	return r
}

func (r *Registry) Get(stage pipeline.Stage) (StageAdapter, error) {
	a, ok := r.adapters[stage]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for stage '%s'", stage)
	}
	return a, nil
}

// resolveArchive finds the target archive for the job, template first,
// then the processor-wide default.
func resolveArchive(cfg *pipeline.JobConfig) (pipeline.ArchiveConfiguration, error) {
	id := cfg.TargetArchiveID()
	if id == "" {
		return pipeline.ArchiveConfiguration{}, missingInput(
			"Missing id of target archive (neither set in template nor as a default for the Job Processor).")
	}
	archive, ok := cfg.Archives[id]
	if !ok {
		return pipeline.ArchiveConfiguration{}, missingInput("Unknown archive id '%s'.", id)
	}
	return archive, nil
}

// targetFromStages returns the artifact of the most advanced listed
// predecessor stage as a target object.
func targetFromStages(rec *pipeline.Record, what string, stages ...pipeline.Stage) (map[string]any, error) {
	artifact, ok := rec.FirstArtifact(stages...)
	if !ok {
		return nil, missingInput("Missing target %s for record '%s'.", what, rec.ID)
	}
	return map[string]any{"path": artifact}, nil
}
