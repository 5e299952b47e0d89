package records

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/archivebridge-backend/internal/pkg/errors"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

type RecordRepo interface {
	Upsert(dbc dbctx.Context, record *store.Record) error
	Get(dbc dbctx.Context, id string) (*store.Record, error)
	ListInProcessByJobConfig(dbc dbctx.Context, jobConfigID string) ([]*store.Record, error)
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return &recordRepo{
		db:  db,
		log: baseLog.With("repo", "RecordRepo"),
	}
}

// Upsert writes the record, replacing any existing row with the same
// id. Re-imports of a known record overwrite its previous projection.
func (r *recordRepo) Upsert(dbc dbctx.Context, record *store.Record) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if record == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

func (r *recordRepo) Get(dbc dbctx.Context, id string) (*store.Record, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rec store.Record
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepo) ListInProcessByJobConfig(dbc dbctx.Context, jobConfigID string) ([]*store.Record, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*store.Record
	if jobConfigID == "" {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("job_config_id = ? AND status = ?", jobConfigID, "in-process").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recordRepo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&store.Record{}).
		Where("id = ?", id).
		Updates(updates).Error
}
