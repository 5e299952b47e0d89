package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yungbote/archivebridge-backend/internal/data/repos/records"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

const logOrigin = "Job Processor"

/*
PostStage performs the durable side effects that follow a successful
stage: record rows after import, IE linking after metadata validation,
archive identifiers after ingest, and artifact registration for every
producer stage. Persistence failures are advisory; they are logged
into the job report but do not terminate the record, except where IE
linking detects missing identifiers.
*/
type PostStage struct {
	jobToken  string
	records   records.RecordRepo
	ies       records.IERepo
	artifacts records.ArtifactRepo
	log       *logger.Logger
}

func NewPostStage(jobToken string, recordRepo records.RecordRepo, ieRepo records.IERepo, artifactRepo records.ArtifactRepo, logg *logger.Logger) *PostStage {
	return &PostStage{
		jobToken:  jobToken,
		records:   recordRepo,
		ies:       ieRepo,
		artifacts: artifactRepo,
		log:       logg.With("component", "PostStage"),
	}
}

func (p *PostStage) Run(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, rec *pipeline.Record, stage pipeline.Stage) {
	if suppressed(cfg) {
		return
	}
	dbc := dbctx.Context{Ctx: ctx}

	switch stage {
	case pipeline.StageImportIEs, pipeline.StageImportIPs:
		if err := p.records.Upsert(dbc, p.recordRow(cfg, rec)); err != nil {
			p.advise(jc, rec.ID, fmt.Errorf("inserting record row: %w", err))
		}
	case pipeline.StageValidationMetadata:
		p.linkRecordToIE(ctx, jc, cfg, rec)
	case pipeline.StageIngest:
		err := p.records.UpdateFields(dbc, rec.ID, map[string]interface{}{
			"archive_ie_id":    rec.ArchiveIEID,
			"archive_sip_id":   rec.ArchiveSIPID,
			"datetime_changed": time.Now().UTC(),
		})
		if err != nil {
			p.advise(jc, rec.ID, fmt.Errorf("storing archive identifiers: %w", err))
		}
	}

	if stage.ProducesArtifact() {
		info := rec.StageInfo(stage)
		if info != nil && info.Artifact != "" {
			artifact := &store.Artifact{
				ID:              uuid.New(),
				Path:            info.Artifact,
				RecordID:        rec.ID,
				Stage:           string(stage),
				DatetimeExpires: cfg.ExecutionContext.ArtifactsExpiry(time.Now().UTC()),
			}
			if err := p.artifacts.Insert(dbc, artifact); err != nil {
				p.advise(jc, rec.ID, fmt.Errorf("registering artifact: %w", err))
			}
		}
	}
}

// FinalizeRecord persists a record's terminal status.
func (p *PostStage) FinalizeRecord(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, rec *pipeline.Record) {
	if suppressed(cfg) {
		return
	}
	err := p.records.UpdateFields(dbctx.Context{Ctx: ctx}, rec.ID, map[string]interface{}{
		"status":           string(rec.Status),
		"datetime_changed": time.Now().UTC(),
	})
	if err != nil {
		p.advise(jc, rec.ID, fmt.Errorf("storing terminal status: %w", err))
	}
}

/*
linkRecordToIE attaches the record to the intellectual entity
identified by (job config, origin system, external id, archive).
Created lazily on first successful metadata validation; concurrent
creation races resolve via the unique index, losers re-read the
winner's row.
*/
func (p *PostStage) linkRecordToIE(ctx context.Context, jc *Context, cfg *pipeline.JobConfig, rec *pipeline.Record) {
	if rec.OriginSystemID == "" || rec.ExternalID == "" {
		jc.Update(func(r *pipeline.Report) {
			r.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
				"Cannot link record '%s' to an IE: missing originSystemId or externalId.", rec.ID))
			rec.Status = pipeline.StatusIPValError
			rec.Touch()
		})
		return
	}
	archiveID := cfg.TargetArchiveID()
	if archiveID == "" {
		jc.Update(func(r *pipeline.Report) {
			r.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
				"Cannot link record '%s' to an IE: no target archive resolvable.", rec.ID))
			rec.Status = pipeline.StatusProcessError
			rec.Touch()
		})
		return
	}

	dbc := dbctx.Context{Ctx: ctx}
	ie, err := p.ies.Find(dbc, cfg.ID, rec.OriginSystemID, rec.ExternalID, archiveID)
	if err != nil {
		p.advise(jc, rec.ID, fmt.Errorf("looking up IE: %w", err))
		return
	}
	if ie == nil {
		candidate := &store.IE{
			ID:                 uuid.New(),
			JobConfigID:        cfg.ID,
			SourceOrganization: rec.SourceOrganization,
			OriginSystemID:     rec.OriginSystemID,
			ExternalID:         rec.ExternalID,
			ArchiveID:          archiveID,
		}
		if err := p.ies.Insert(dbc, candidate); err != nil {
			if !isUniqueViolation(err) {
				p.advise(jc, rec.ID, fmt.Errorf("creating IE: %w", err))
				return
			}
			ie, err = p.ies.Find(dbc, cfg.ID, rec.OriginSystemID, rec.ExternalID, archiveID)
			if err != nil || ie == nil {
				p.advise(jc, rec.ID, fmt.Errorf("re-reading IE after conflict: %w", err))
				return
			}
		} else {
			ie = candidate
		}
	} else if ie.SourceOrganization == "" && rec.SourceOrganization != "" {
		if err := p.ies.UpdateFields(dbc, ie.ID.String(), map[string]interface{}{
			"source_organization": rec.SourceOrganization,
		}); err != nil {
			p.advise(jc, rec.ID, fmt.Errorf("updating IE source organization: %w", err))
		}
	}

	ieID := ie.ID.String()
	jc.Update(func(r *pipeline.Report) {
		rec.IEID = ieID
	})
	err = p.records.UpdateFields(dbc, rec.ID, map[string]interface{}{
		"ie_id":            ieID,
		"datetime_changed": time.Now().UTC(),
	})
	if err != nil {
		p.advise(jc, rec.ID, fmt.Errorf("linking record to IE: %w", err))
	}
}

// recordRow projects the in-memory record into its durable row.
func (p *PostStage) recordRow(cfg *pipeline.JobConfig, rec *pipeline.Record) *store.Record {
	now := time.Now().UTC()
	return &store.Record{
		ID:                    rec.ID,
		JobConfigID:           cfg.ID,
		JobToken:              p.jobToken,
		Status:                string(rec.Status),
		DatetimeChanged:       &now,
		ImportType:            rec.ImportType,
		OAIIdentifier:         rec.OAIIdentifier,
		OAIDatestamp:          rec.OAIDatestamp,
		HotfolderOriginalPath: rec.HotfolderOriginalPath,
		Bitstream:             rec.Bitstream,
		SkipObjectValidation:  rec.SkipObjectValidation,
	}
}

func (p *PostStage) advise(jc *Context, recordID string, err error) {
	p.log.Error("Post-stage persistence failed", "record", recordID, "error", err)
	jc.Update(func(r *pipeline.Report) {
		r.Log.Add(pipeline.LogError, logOrigin, fmt.Sprintf(
			"Persistence issue for record '%s': %s", recordID, err))
	})
}

// suppressed reports whether durable record writes are disabled for
// this job (test mode or a test trigger).
func suppressed(cfg *pipeline.JobConfig) bool {
	return cfg.TestMode || cfg.ExecutionContext.SuppressRecordRows()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
