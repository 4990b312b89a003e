package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/metrics"
	"github.com/angelmondragon/arena-backend/pkg/outbox"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 5 * time.Second
	maxBackoff          = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

// errUnpublishable marks rows that can never be relayed as stored.
var errUnpublishable = errors.New("outbox row cannot be published")

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type streamPublisher interface {
	Ping(context.Context) error
	XAdd(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error)
}

type pendingRepository interface {
	FetchPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailed(tx *gorm.DB, id uuid.UUID, attempts int, cause error) error
	CountParked(tx *gorm.DB, maxAttempts int) (int64, error)
}

type RelayParams struct {
	Logger       *logger.Logger
	DB           dbClient
	Repository   pendingRepository
	Publisher    streamPublisher
	Metrics      *metrics.OutboxMetrics
	Stream       string
	StreamMaxLen int64
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Relay copies committed outbox rows onto a Redis stream. Delivery is at
// least once: a row published just before its transaction fails to commit
// is sent again, so consumers dedupe on event_id.
type Relay struct {
	logg        *logger.Logger
	db          dbClient
	repo        pendingRepository
	pub         streamPublisher
	metrics     *metrics.OutboxMetrics
	stream      string
	maxLen      int64
	batchSize   int
	poll        time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Publisher == nil:
		return nil, errors.New("stream publisher is required")
	case p.Stream == "":
		return nil, errors.New("stream name is required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		repo:        p.Repository,
		pub:         p.Publisher,
		metrics:     p.Metrics,
		stream:      p.Stream,
		maxLen:      p.StreamMaxLen,
		batchSize:   p.BatchSize,
		poll:        p.PollInterval,
		maxAttempts: p.MaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.poll <= 0 {
		r.poll = defaultPollInterval
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	return r, nil
}

func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := r.pub.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.refreshParked(ctx)

	backoff := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := r.relayBatch(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			backoff = min(backoff*2, maxBackoff)
		case res.fetched == r.batchSize && res.published > 0:
			// A full batch usually means more rows are waiting.
			backoff = r.poll
			continue
		default:
			backoff = r.poll
		}
		if res.parked > 0 {
			r.refreshParked(ctx)
		}
		if err := sleep(ctx, backoff+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
}

type batchResult struct {
	fetched   int
	published int
	parked    int
}

func (r *Relay) relayBatch(ctx context.Context) (batchResult, error) {
	var res batchResult
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.repo.FetchPending(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}
		res = batchResult{fetched: len(rows)}
		for _, row := range rows {
			rowCtx := r.logg.WithFields(ctx, map[string]any{
				"outbox_id":    row.ID.String(),
				"event_type":   string(row.EventType),
				"aggregate_id": row.AggregateID.String(),
			})
			if pubErr := r.publish(ctx, row); pubErr != nil {
				attempts := row.AttemptCount + 1
				terminal := attempts >= r.maxAttempts || errors.Is(pubErr, errUnpublishable)
				if terminal {
					attempts = max(attempts, r.maxAttempts)
					res.parked++
				}
				if err := r.repo.MarkFailed(tx, row.ID, attempts, pubErr); err != nil {
					return fmt.Errorf("mark failed %s: %w", row.ID, err)
				}
				r.metrics.IncFailed(string(row.EventType), terminal)
				rowCtx = r.logg.WithFields(rowCtx, map[string]any{"attempt_count": attempts, "terminal": terminal, "error": pubErr.Error()})
				r.logg.Warn(rowCtx, "outbox publish failed")
				continue
			}
			if err := r.repo.MarkPublished(tx, row.ID, r.now()); err != nil {
				return fmt.Errorf("mark published %s: %w", row.ID, err)
			}
			res.published++
			r.metrics.IncPublished(string(row.EventType))
			r.logg.Debug(rowCtx, "outbox event published")
		}
		return nil
	})
	return res, err
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent) error {
	if !row.EventType.IsValid() || !row.AggregateType.IsValid() {
		return fmt.Errorf("%w: unknown type %s/%s", errUnpublishable, row.AggregateType, row.EventType)
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil || envelope.EventID == "" {
		return fmt.Errorf("%w: malformed envelope", errUnpublishable)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := r.pub.XAdd(pubCtx, r.stream, r.maxLen, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"occurred_at":    envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		"payload":        string(row.Payload),
	})
	return err
}

func (r *Relay) refreshParked(ctx context.Context) {
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := r.repo.CountParked(tx, r.maxAttempts)
		if err != nil {
			return err
		}
		r.metrics.SetParked(n)
		if n > 0 {
			r.logg.Warn(r.logg.WithField(ctx, "parked", n), "outbox rows parked after exhausting attempts")
		}
		return nil
	})
	if err != nil {
		r.logg.Error(ctx, "count parked outbox rows", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
