package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// BuildIPAdapter drives the IP Builder's build endpoint.
type BuildIPAdapter struct {
	base
}

func NewBuildIPAdapter(client *Client) *BuildIPAdapter {
	return &BuildIPAdapter{base{
		stage:  pipeline.StageBuildIP,
		path:   "/build",
		client: client,
	}}
}

func (a *BuildIPAdapter) BuildRequestBody(cfg *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error) {
	target, err := targetFromStages(rec, "IP to build", pipeline.StageImportIEs)
	if err != nil {
		return nil, err
	}
	build := map[string]any{
		"target":   target,
		"validate": false,
	}
	if plugin := mappingPlugin(cfg.MappingSection()); plugin != nil {
		build["mappingPlugin"] = plugin
	}
	return map[string]any{"build": build}, nil
}

func (a *BuildIPAdapter) Success(report map[string]any) bool { return dataSuccess(report) }

func (a *BuildIPAdapter) Eval(_ *pipeline.Record, info *pipeline.RecordStageInfo, report map[string]any) {
	info.Artifact = digString(report, "data", "path")
}

/*
mappingPlugin translates the stored mapping configuration into the IP
Builder's plugin selection. An inline python mapper becomes the
generic string-mapper plugin, an xslt mapping the xslt plugin, and a
named plugin passes through unchanged.
*/
func mappingPlugin(mapping map[string]any) map[string]any {
	if mapping == nil {
		return nil
	}
	data, _ := mapping["data"].(map[string]any)
	switch mapping["type"] {
	case "plugin":
		return data
	case "python":
		var contents any
		if data != nil {
			contents = data["contents"]
		}
		return map[string]any{
			"plugin": "generic-mapper-plugin-string",
			"args": map[string]any{
				"mapper": map[string]any{
					"string": contents,
					"args":   map[string]any{},
				},
			},
		}
	case "xslt":
		var contents any
		if data != nil {
			contents = data["contents"]
		}
		return map[string]any{
			"plugin": "xslt-plugin",
			"args":   map[string]any{"xslt": contents},
		}
	}
	return nil
}
