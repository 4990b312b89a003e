package reservations

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/locks"
	"github.com/angelmondragon/arena-backend/pkg/db"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	DB() *gorm.DB
}

// Creator persists a Pending reservation together with its provisional hold.
type Creator struct {
	db    txRunner
	repo  Repository
	locks *locks.Registry
	logg  *logger.Logger
}

func NewCreator(client *db.Client, repo Repository, registry *locks.Registry, logg *logger.Logger) (*Creator, error) {
	if client == nil || repo == nil || registry == nil {
		return nil, fmt.Errorf("reservation creator dependencies required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Creator{db: client, repo: repo, locks: registry, logg: logg}, nil
}

// Create checks availability, then writes res and acquires its hold in one
// transaction. A hold lost to a concurrent request surfaces as CONFLICT and
// leaves no reservation behind.
func (c *Creator) Create(ctx context.Context, res *models.Reservation) error {
	if err := res.Payload.Validate(res.Kind); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation payload")
	}
	strategy, err := c.locks.For(res.Kind)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve lock strategy")
	}
	if err := strategy.Check(ctx, c.db.DB().WithContext(ctx), res); err != nil {
		return err
	}

	now := time.Now().UTC()
	res.Status = enums.ReservationStatusPending
	res.PaymentStatus = enums.PaymentStatusInitiated
	res.PaymentDetails.Amount = res.Amount
	res.PaymentDetails.UpdatedAt = now
	res.OrderID = nil

	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.repo.WithTx(tx).Create(ctx, res); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create reservation")
		}
		return strategy.Acquire(ctx, tx, res)
	})
	if err != nil {
		return err
	}

	lctx := c.logg.WithReservation(ctx, res.ID.String(), string(res.Kind))
	c.logg.Info(lctx, fmt.Sprintf("reservation created amount=%s method=%s", res.Amount.StringFixed(2), res.PaymentDetails.Method))
	return nil
}
