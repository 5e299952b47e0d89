package adapters

import (
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

// IngestAdapter drives the archive backend's ingest endpoint.
type IngestAdapter struct {
	base
}

func NewIngestAdapter(client *Client) *IngestAdapter {
	return &IngestAdapter{base{
		stage:  pipeline.StageIngest,
		path:   "/ingest",
		client: client,
	}}
}

func (a *IngestAdapter) BuildRequestBody(cfg *pipeline.JobConfig, rec *pipeline.Record) (map[string]any, error) {
	archive, err := resolveArchive(cfg)
	if err != nil {
		return nil, err
	}
	transferred := rec.StageInfo(pipeline.StageTransfer)
	if transferred == nil || transferred.Artifact == "" {
		return nil, missingInput("Missing target SIP to ingest for record '%s'.", rec.ID)
	}

	ingest := map[string]any{"archiveId": archive.ID}
	switch archive.Type {
	case pipeline.ArchiveRosettaRESTV0:
		ingest["target"] = map[string]any{"subdirectory": transferred.Artifact}
	}
	return map[string]any{"ingest": ingest}, nil
}

func (a *IngestAdapter) Success(report map[string]any) bool { return dataSuccess(report) }

func (a *IngestAdapter) Eval(rec *pipeline.Record, _ *pipeline.RecordStageInfo, report map[string]any) {
	rec.ArchiveSIPID = digString(report, "data", "details", "deposit", "sip_id")
	rec.ArchiveIEID = iePid(report)
}

// iePid extracts the archive's IE identifier; the backend reports it
// either as a single value or as a list of pids.
func iePid(report map[string]any) string {
	sip := digMap(report, "data", "details", "sip")
	if sip == nil {
		return ""
	}
	switch v := sip["iePids"].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
