package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// BuildSIPAdapter drives the SIP Builder.
type BuildSIPAdapter struct {
	base
}

func NewBuildSIPAdapter(client *Client) *BuildSIPAdapter {
	return &BuildSIPAdapter{base{
		stage:  pipeline.StageBuildSIP,
		path:   "/build",
		client: client,
	}}
}

func (a *BuildSIPAdapter) BuildRequestBody(_ *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error) {
	target, err := targetFromStages(rec, "SIP to build",
		pipeline.StagePrepareIP, pipeline.StageBuildIP, pipeline.StageImportIPs)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"build": map[string]any{"target": target},
	}, nil
}

func (a *BuildSIPAdapter) Success(report map[string]any) bool { return dataSuccess(report) }

func (a *BuildSIPAdapter) Eval(_ *pipeline.Record, info *pipeline.RecordStageInfo, report map[string]any) {
	info.Artifact = digString(report, "data", "path")
}
