package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/payments"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

const defaultStaleAfter = 30 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleExpirer interface {
	ExpireStale(ctx context.Context, in payments.ExpireInput) (*payments.ExpireReport, error)
}

// ReservationExpiryJobParams configure the stale reservation sweep.
type ReservationExpiryJobParams struct {
	Logger     *logger.Logger
	Expirer    staleExpirer
	StaleAfter time.Duration
	BatchSize  int
}

// NewReservationExpiryJob settles reservations nobody verified in time so
// their slots, seats and inventory are released.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("reservation expirer required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &reservationExpiryJob{
		logg:       params.Logger,
		expirer:    params.Expirer,
		staleAfter: staleAfter,
		batchSize:  params.BatchSize,
	}, nil
}

type reservationExpiryJob struct {
	logg       *logger.Logger
	expirer    staleExpirer
	staleAfter time.Duration
	batchSize  int
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	report, err := j.expirer.ExpireStale(ctx, payments.ExpireInput{
		OlderThan: j.staleAfter,
		Limit:     j.batchSize,
	})
	if err != nil {
		return fmt.Errorf("expire stale reservations: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale_after": j.staleAfter.String(),
		"scanned":     report.Scanned,
		"paid":        report.Paid,
		"failed":      report.Failed,
		"errors":      len(report.Errors),
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d stale reservations could not be settled", len(report.Errors))
	}
	return nil
}
