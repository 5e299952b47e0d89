package records

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

type IERepo interface {
	Find(dbc dbctx.Context, jobConfigID, originSystemID, externalID, archiveID string) (*store.IE, error)
	Insert(dbc dbctx.Context, ie *store.IE) error
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error
}

type ieRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIERepo(db *gorm.DB, baseLog *logger.Logger) IERepo {
	return &ieRepo{
		db:  db,
		log: baseLog.With("repo", "IERepo"),
	}
}

// Find returns the entity matching the identity tuple, or nil.
func (r *ieRepo) Find(dbc dbctx.Context, jobConfigID, originSystemID, externalID, archiveID string) (*store.IE, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ie store.IE
	err := transaction.WithContext(dbc.Ctx).
		Where("job_config_id = ? AND origin_system_id = ? AND external_id = ? AND archive_id = ?",
			jobConfigID, originSystemID, externalID, archiveID).
		First(&ie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ie, nil
}

// Insert creates the row as-is. Unique violations on the identity
// tuple surface to the caller, which re-reads the winner.
func (r *ieRepo) Insert(dbc dbctx.Context, ie *store.IE) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if ie == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(ie).Error
}

func (r *ieRepo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&store.IE{}).
		Where("id = ?", id).
		Updates(updates).Error
}
