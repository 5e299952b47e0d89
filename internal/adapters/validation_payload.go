package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// ValidationPayloadAdapter drives the Object Validator.
type ValidationPayloadAdapter struct {
	base
}

func NewValidationPayloadAdapter(client *Client) *ValidationPayloadAdapter {
	return &ValidationPayloadAdapter{base{
		stage:  pipeline.StageValidationPayload,
		path:   "/validate",
		client: client,
	}}
}

func (a *ValidationPayloadAdapter) BuildRequestBody(_ *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error) {
	target, err := targetFromStages(rec, "IP to validate payload",
		pipeline.StageBuildIP, pipeline.StageImportIPs)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"validation": map[string]any{
			"target": target,
			"plugins": map[string]any{
				"integrity": map[string]any{"plugin": "integrity-bagit", "args": map[string]any{}},
				"format":    map[string]any{"plugin": "jhove-fido-mimetype-bagit", "args": map[string]any{}},
			},
		},
	}, nil
}

func (a *ValidationPayloadAdapter) Success(report map[string]any) bool { return dataValid(report) }

func (a *ValidationPayloadAdapter) Eval(_ *pipeline.Record, _ *pipeline.RecordStageInfo, _ map[string]any) {
}
