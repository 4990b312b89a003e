package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a shop item. Inventory is decremented when a lock is taken.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title     string          `gorm:"column:title;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Inventory int             `gorm:"column:inventory;not null;default:0"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductLock holds quantity of a product for a user's unpaid order. At most
// one lock exists per (product, user).
type ProductLock struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_locks_product_user"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_product_locks_product_user"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null;index"`
	Quantity      int       `gorm:"column:quantity;not null"`
	LockedAt      time.Time `gorm:"column:locked_at;not null"`
}

func (l *ProductLock) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
