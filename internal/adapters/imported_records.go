package adapters

import (
	"sort"

	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

/*
ImportedRecords turns the record batch of an import child report into
initialized pipeline records, sorted by record id. Each entry under
data.records becomes a record carrying its import provenance and a
completed import stage; entries whose import failed arrive with
success=false and are handled by the collector.
*/
func ImportedRecords(stage pipeline.Stage, report map[string]any) []*pipeline.Record {
	raw := digMap(report, "data", "records")
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*pipeline.Record, 0, len(ids))
	for _, id := range ids {
		entry, ok := raw[id].(map[string]any)
		if !ok {
			continue
		}
		rec := pipeline.NewRecord(id)
		rec.ImportType = digString(entry, "importType")
		rec.OAIIdentifier = digString(entry, "oaiIdentifier")
		rec.OAIDatestamp = digString(entry, "oaiDatestamp")
		rec.HotfolderOriginalPath = digString(entry, "hotfolderOriginalPath")
		rec.Bitstream = digBool(entry, "bitstream")
		rec.SkipObjectValidation = digBool(entry, "skipObjectValidation")

		success := digBool(entry, "success")
		rec.Stages[stage] = &pipeline.RecordStageInfo{
			Completed: true,
			Success:   pipeline.BoolPtr(success),
			Artifact:  digString(entry, "path"),
		}
		out = append(out, rec)
	}
	return out
}
