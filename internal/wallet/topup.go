package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TopUps credits wallets outside of a reservation, for admin top-ups.
type TopUps struct {
	db  txRunner
	svc Service
}

func NewTopUps(db txRunner, svc Service) (*TopUps, error) {
	if db == nil || svc == nil {
		return nil, fmt.Errorf("wallet top-up dependencies required")
	}
	return &TopUps{db: db, svc: svc}, nil
}

// Credit adds amount and its trail row in one transaction and returns the new balance.
func (t *TopUps) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.db.WithTx(ctx, func(tx *gorm.DB) error {
		svc := t.svc.WithTx(tx)
		if err := svc.AddCredits(ctx, userID, amount, nil, reason); err != nil {
			return err
		}
		var err error
		balance, err = svc.Balance(ctx, userID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (t *TopUps) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return t.svc.Balance(ctx, userID)
}
