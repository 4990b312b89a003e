// Package wallet moves prepaid credit in and out of user balances.
package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

type Service interface {
	WithTx(tx *gorm.DB) Service
	// DeductCredits is the wallet payment commitment. No hold precedes it.
	DeductCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reservationID *uuid.UUID) error
	AddCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reservationID *uuid.UUID, reason string) error
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) DeductCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reservationID *uuid.UUID) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "deduction must be positive")
	}
	ok, err := s.repo.Debit(ctx, userID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "deduct wallet credits")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance too low").
			WithDetails(map[string]any{"required": amount.StringFixed(2)})
	}
	return s.record(ctx, userID, amount, reservationID, enums.WalletDebit, "reservation payment")
}

func (s *service) AddCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reservationID *uuid.UUID, reason string) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit must be positive")
	}
	ok, err := s.repo.Credit(ctx, userID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "add wallet credits")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if reason == "" {
		reason = "credit"
	}
	return s.record(ctx, userID, amount, reservationID, enums.WalletCredit, reason)
}

func (s *service) record(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reservationID *uuid.UUID, kind enums.WalletTransactionType, reason string) error {
	err := s.repo.Record(ctx, &models.WalletTransaction{
		UserID:        userID,
		ReservationID: reservationID,
		Type:          kind,
		Amount:        amount,
		Reason:        reason,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record wallet transaction")
	}
	return nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load wallet balance")
	}
	return balance, nil
}
