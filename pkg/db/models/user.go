package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// User is an account that can book, sell (partner) or administer.
type User struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email         string          `gorm:"column:email;not null;uniqueIndex"`
	Name          string          `gorm:"column:name;not null"`
	Role          enums.UserRole  `gorm:"column:role;type:text;not null"`
	WalletBalance decimal.Decimal `gorm:"column:wallet_balance;type:numeric(12,2);not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// WalletTransaction is one movement of a user's wallet balance.
type WalletTransaction struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	ReservationID *uuid.UUID                  `gorm:"column:reservation_id;type:uuid"`
	Type          enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	Amount        decimal.Decimal             `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason        string                      `gorm:"column:reason;not null"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (w *WalletTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
