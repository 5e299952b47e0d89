package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// ImportIEsAdapter drives the Import Module's IE import. The entry
// stage for plugin- and oai-templates; its child report carries the
// whole record batch, which the collector consumes.
type ImportIEsAdapter struct {
	base
}

func NewImportIEsAdapter(client *Client) *ImportIEsAdapter {
	return &ImportIEsAdapter{base{
		stage:     pipeline.StageImportIEs,
		path:      "/import/ies",
		abortPath: "/import",
		client:    client,
	}}
}

func (a *ImportIEsAdapter) BuildRequestBody(cfg *pipeline.JobConfig, _ *pipeline.Record) (map[string]any, error) {
	section, err := importSection(cfg)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"import": section,
		"test":   cfg.TestMode,
	}, nil
}

func (a *ImportIEsAdapter) Success(report map[string]any) bool { return dataSuccess(report) }

// Eval is a no-op: import produces a batch, not a single record.
func (a *ImportIEsAdapter) Eval(_ *pipeline.Record, _ *pipeline.RecordStageInfo, _ map[string]any) {
}

// importSection translates the template into the Import Module's
// plugin selection.
func importSection(cfg *pipeline.JobConfig) (map[string]any, error) {
	addInfo := map[string]any{}
	if cfg.Template != nil && cfg.Template.AdditionalInformation != nil {
		addInfo = cfg.Template.AdditionalInformation
	}

	switch cfg.TemplateType() {
	case pipeline.TemplatePlugin:
		args, _ := addInfo["args"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		plugin, _ := addInfo["plugin"].(string)
		if plugin == "" {
			return nil, missingInput("Template of type 'plugin' names no plugin.")
		}
		return map[string]any{"plugin": plugin, "args": args}, nil

	case pipeline.TemplateOAI:
		url, _ := addInfo["url"].(string)
		prefix, _ := addInfo["metadata_prefix"].(string)
		if url == "" || prefix == "" {
			return nil, missingInput("Template of type 'oai' is missing url or metadata_prefix.")
		}
		args := map[string]any{
			"base_url":        url,
			"metadata_prefix": prefix,
			"jobConfigId":     cfg.ID,
		}
		for _, key := range []string{"set_spec", "from", "until", "identifiers"} {
			if v, ok := cfg.DataSelection[key]; ok && v != nil {
				args[key] = v
			}
		}
		return map[string]any{"plugin": "oai_pmh_v2", "args": args}, nil
	}

	return nil, missingInput("Template type '%s' cannot feed an IE import.", cfg.TemplateType())
}
