package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// ImportIPsAdapter drives the Import Module's IP import, the entry
// stage for hotfolder-templates.
type ImportIPsAdapter struct {
	base
}

func NewImportIPsAdapter(client *Client) *ImportIPsAdapter {
	return &ImportIPsAdapter{base{
		stage:     pipeline.StageImportIPs,
		path:      "/import/ips",
		abortPath: "/import",
		client:    client,
	}}
}

func (a *ImportIPsAdapter) BuildRequestBody(cfg *pipeline.JobConfig, _ *pipeline.Record) (map[string]any, error) {
	if cfg.TemplateType() != pipeline.TemplateHotfolder {
		return nil, missingInput("Template type '%s' cannot feed an IP import.", cfg.TemplateType())
	}
	addInfo := map[string]any{}
	if cfg.Template != nil && cfg.Template.AdditionalInformation != nil {
		addInfo = cfg.Template.AdditionalInformation
	}
	hotfolderID, _ := addInfo["hotfolderId"].(string)
	if hotfolderID == "" {
		return nil, missingInput("Template of type 'hotfolder' names no hotfolderId.")
	}
	target := map[string]any{"hotfolderId": hotfolderID}
	if path, _ := cfg.DataSelection["path"].(string); path != "" {
		target["path"] = path
	}
	return map[string]any{
		"import": map[string]any{"target": target},
		"test":   cfg.TestMode,
	}, nil
}

func (a *ImportIPsAdapter) Success(report map[string]any) bool { return dataSuccess(report) }

func (a *ImportIPsAdapter) Eval(_ *pipeline.Record, _ *pipeline.RecordStageInfo, _ map[string]any) {
}
