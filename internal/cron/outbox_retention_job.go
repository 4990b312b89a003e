package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/logger"
)

const (
	defaultOutboxRetention  = 30 * 24 * time.Hour
	defaultOutboxPruneBatch = 500
)

// OutboxRetentionJobParams configure pruning of relayed settlement events.
type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	Retention  time.Duration
	BatchSize  int
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.batch <= 0 {
		job.batch = defaultOutboxPruneBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes one batch per transaction so a large backlog never holds a
// long lock. It stops at the first short batch or when ctx ends.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	batches := 0

	var err error
	for ctx.Err() == nil {
		var n int64
		err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var txErr error
			n, txErr = j.repo.DeletePublishedBefore(tx, cutoff, j.batch)
			return txErr
		})
		if err != nil {
			break
		}
		total += n
		batches++
		if n < int64(j.batch) {
			break
		}
	}
	if err == nil {
		err = ctx.Err()
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"batches":      batches,
		"rows_deleted": total,
	})
	if err != nil {
		j.logg.Warn(logCtx, "outbox.retention_incomplete")
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(logCtx, "outbox.retention_complete")
	return nil
}
