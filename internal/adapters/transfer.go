package adapters

import (
	"path"

	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// TransferAdapter drives the Transfer Module, moving the built SIP to
// the archive's transfer destination.
type TransferAdapter struct {
	base
}

func NewTransferAdapter(client *Client) *TransferAdapter {
	return &TransferAdapter{base{
		stage:  pipeline.StageTransfer,
		path:   "/transfer",
		client: client,
	}}
}

func (a *TransferAdapter) BuildRequestBody(cfg *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error) {
	target, err := targetFromStages(rec, "SIP to transfer", pipeline.StageBuildSIP)
	if err != nil {
		return nil, err
	}
	archive, err := resolveArchive(cfg)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"transfer": map[string]any{
			"target":        target,
			"destinationId": archive.TransferDestinationID,
		},
	}, nil
}

func (a *TransferAdapter) Success(report map[string]any) bool { return dataSuccess(report) }

// Eval records the SIP's name at the destination, which ingest uses
// as the deposit subdirectory.
func (a *TransferAdapter) Eval(rec *pipeline.Record, info *pipeline.RecordStageInfo, _ map[string]any) {
	if built := rec.StageInfo(pipeline.StageBuildSIP); built != nil && built.Artifact != "" {
		info.Artifact = path.Base(built.Artifact)
	}
}
