package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/archivebridge-backend/internal/pkg/errors"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, job *store.Job) error
	Get(dbc dbctx.Context, token string) (*store.Job, error)
	Exists(dbc dbctx.Context, token string) (bool, error)
	ClaimNextQueued(dbc dbctx.Context) (*store.Job, error)
	UpdateFields(dbc dbctx.Context, token string, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, token string, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	ExtendArtifactsExpiry(dbc dbctx.Context, tokens []string, until *time.Time, now time.Time) error
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{
		db:  db,
		log: baseLog.With("repo", "JobRepo"),
	}
}

func (r *jobRepo) Create(dbc dbctx.Context, job *store.Job) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(job).Error
}

func (r *jobRepo) Get(dbc dbctx.Context, token string) (*store.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var job store.Job
	err := transaction.WithContext(dbc.Ctx).
		Where("token = ?", token).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) Exists(dbc dbctx.Context, token string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&store.Job{}).
		Where("token = ?", token).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimNextQueued atomically moves the oldest queued job to running.
// Returns nil when no job is claimable.
func (r *jobRepo) ClaimNextQueued(dbc dbctx.Context) (*store.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	var claimed *store.Job
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var job store.Job
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", store.JobQueued).
			Order("datetime_triggered ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&store.Job{}).
			Where("token = ?", job.Token).
			Updates(map[string]interface{}{
				"status":           store.JobRunning,
				"datetime_started": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = store.JobRunning
		job.DatetimeStarted = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, token string, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if token == "" || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&store.Job{}).
		Where("token = ?", token).
		Updates(updates).Error
}

// ExtendArtifactsExpiry moves the artifact expiration of the given
// jobs, but only where the current expiration is still in the future.
func (r *jobRepo) ExtendArtifactsExpiry(dbc dbctx.Context, tokens []string, until *time.Time, now time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(tokens) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&store.Job{}).
		Where("token IN ? AND datetime_artifacts_expire > ?", tokens, now).
		Update("datetime_artifacts_expire", until).Error
}

func (r *jobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, token string, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if token == "" || len(updates) == 0 {
		return false, nil
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&store.Job{}).
		Where("token = ?", token)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
