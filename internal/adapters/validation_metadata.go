package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// ValidationMetadataAdapter drives the IP Builder's validation
// endpoint for metadata and structure checks.
type ValidationMetadataAdapter struct {
	base
}

func NewValidationMetadataAdapter(client *Client) *ValidationMetadataAdapter {
	return &ValidationMetadataAdapter{base{
		stage:  pipeline.StageValidationMetadata,
		path:   "/validate",
		client: client,
	}}
}

func (a *ValidationMetadataAdapter) BuildRequestBody(_ *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error) {
	target, err := targetFromStages(rec, "IP to validate metadata/structure",
		pipeline.StageBuildIP, pipeline.StageImportIPs)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"validation": map[string]any{"target": target},
	}, nil
}

func (a *ValidationMetadataAdapter) Success(report map[string]any) bool { return dataValid(report) }

// Eval captures the identifiers that later anchor the record to an
// intellectual entity.
func (a *ValidationMetadataAdapter) Eval(rec *pipeline.Record, _ *pipeline.RecordStageInfo, report map[string]any) {
	rec.SourceOrganization = digString(report, "data", "sourceOrganization")
	rec.OriginSystemID = digString(report, "data", "originSystemId")
	rec.ExternalID = digString(report, "data", "externalId")
}
