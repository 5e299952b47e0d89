package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// PrepareIPAdapter drives the Preparation Module.
type PrepareIPAdapter struct {
	base
}

func NewPrepareIPAdapter(client *Client) *PrepareIPAdapter {
	return &PrepareIPAdapter{base{
		stage:  pipeline.StagePrepareIP,
		path:   "/prepare",
		client: client,
	}}
}

func (a *PrepareIPAdapter) BuildRequestBody(cfg *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error) {
	target, err := targetFromStages(rec, "IP to prepare",
		pipeline.StageBuildIP, pipeline.StageImportIPs)
	if err != nil {
		return nil, err
	}
	preparation := map[string]any{"target": target}

	section := cfg.PreparationSection()
	rights, _ := section["rightsOperations"].([]any)
	preservation, _ := section["preservationOperations"].([]any)
	// Rights- and preservation-operations are kept apart in the stored
	// configuration but the Preparation Module takes them as one list.
	if rights != nil || preservation != nil {
		preparation["bagInfoOperations"] = append(append([]any{}, rights...), preservation...)
	}
	if rec.Bitstream {
		ops, _ := preparation["bagInfoOperations"].([]any)
		preparation["bagInfoOperations"] = append(ops, map[string]any{
			"type":        "set",
			"targetField": "Preservation-Level",
			"value":       "Bitstream",
		})
	}
	if sigProps, ok := section["sigPropOperations"]; ok && sigProps != nil {
		preparation["sigPropOperations"] = sigProps
	}

	return map[string]any{"preparation": preparation}, nil
}

func (a *PrepareIPAdapter) Success(report map[string]any) bool { return dataSuccess(report) }

func (a *PrepareIPAdapter) Eval(_ *pipeline.Record, info *pipeline.RecordStageInfo, report map[string]any) {
	info.Artifact = digString(report, "data", "path")
}
