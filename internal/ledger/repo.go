package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
)

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByOrderID(ctx context.Context, orderID string) (*models.LedgerEntry, error)
	MarkOutcome(ctx context.Context, orderID string, outcome Outcome) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByOrderID returns nil, nil when no entry exists.
func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkOutcome sets the capture state once; it reports false when the entry
// was already resolved or does not exist.
func (r *repository) MarkOutcome(ctx context.Context, orderID string, outcome Outcome) (bool, error) {
	updates := map[string]any{
		"captured":    outcome.Captured,
		"captured_at": nil,
	}
	if outcome.Captured {
		at := outcome.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		updates["captured_at"] = at
	}
	if outcome.PaymentID != "" {
		updates["gateway_payment_id"] = outcome.PaymentID
	}
	if outcome.Name != "" {
		updates["name"] = outcome.Name
	}
	result := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("order_id = ? AND captured IS NULL", orderID).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
