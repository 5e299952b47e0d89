package records

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

type ArtifactRepo interface {
	Insert(dbc dbctx.Context, artifact *store.Artifact) error
	ListLiveByRecord(dbc dbctx.Context, recordID string, now time.Time) ([]*store.Artifact, error)
	ExtendExpiry(dbc dbctx.Context, recordIDs []string, until *time.Time, now time.Time) error
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{
		db:  db,
		log: baseLog.With("repo", "ArtifactRepo"),
	}
}

func (r *artifactRepo) Insert(dbc dbctx.Context, artifact *store.Artifact) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if artifact == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(artifact).Error
}

// ListLiveByRecord returns the record's artifacts that have not
// expired yet. A nil expiry never expires.
func (r *artifactRepo) ListLiveByRecord(dbc dbctx.Context, recordID string, now time.Time) ([]*store.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*store.Artifact
	if recordID == "" {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("record_id = ? AND (datetime_expires IS NULL OR datetime_expires > ?)", recordID, now).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

/*
ExtendExpiry moves the expiry of all still-live artifacts belonging to
the given records. Artifacts that already expired stay expired; a nil
until clears the expiry so the artifacts are kept indefinitely.
*/
func (r *artifactRepo) ExtendExpiry(dbc dbctx.Context, recordIDs []string, until *time.Time, now time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(recordIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&store.Artifact{}).
		Where("record_id IN ? AND (datetime_expires IS NULL OR datetime_expires > ?)", recordIDs, now).
		Update("datetime_expires", until).Error
}
