package catalog

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/archivebridge-backend/internal/pkg/errors"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

// CatalogRepo reads the configuration rows maintained elsewhere; the
// processor never writes them.
type CatalogRepo interface {
	GetJobConfig(dbc dbctx.Context, id string) (*store.JobConfig, error)
	GetTemplate(dbc dbctx.Context, id string) (*store.Template, error)
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return &catalogRepo{
		db:  db,
		log: baseLog.With("repo", "CatalogRepo"),
	}
}

func (r *catalogRepo) GetJobConfig(dbc dbctx.Context, id string) (*store.JobConfig, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var cfg store.JobConfig
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *catalogRepo) GetTemplate(dbc dbctx.Context, id string) (*store.Template, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var tpl store.Template
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}
