package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
	Record(ctx context.Context, entry *models.WalletTransaction) error
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Debit subtracts amount only when the balance covers it.
func (r *repository) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", userID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	return result.RowsAffected == 1, result.Error
}

func (r *repository) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	return result.RowsAffected == 1, result.Error
}

func (r *repository) Record(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("wallet_balance").Take(&user, "id = ?", userID).Error; err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}
