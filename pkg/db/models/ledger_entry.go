package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// LedgerEntry records one payment order and its capture state. OrderID is the
// natural key; exactly one of the reference columns is set.
type LedgerEntry struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          string              `gorm:"column:order_id;not null;uniqueIndex:ledger_entries_order_id_key"`
	BookingID        *uuid.UUID          `gorm:"column:booking_id;type:uuid;index"`
	ShopOrderID      *uuid.UUID          `gorm:"column:shop_order_id;type:uuid;index"`
	MembershipID     *uuid.UUID          `gorm:"column:membership_id;type:uuid"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string              `gorm:"column:currency;not null"`
	Method           enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Captured         *bool               `gorm:"column:captured"`
	CapturedAt       *time.Time          `gorm:"column:captured_at"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	IsRefunded       bool                `gorm:"column:is_refunded;not null;default:false"`
	Name             string              `gorm:"column:name"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *LedgerEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
