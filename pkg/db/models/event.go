package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Event is a ticketed partner event with a seat capacity.
type Event struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID   uuid.UUID       `gorm:"column:partner_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;not null"`
	StartsAt    time.Time       `gorm:"column:starts_at;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Capacity    int             `gorm:"column:capacity;not null"`
	BookedSeats int             `gorm:"column:booked_seats;not null;default:0"`
	Archived    bool            `gorm:"column:archived;not null;default:false"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// EventRegistration records the seats one paid booking committed to an event.
// There is one row per reservation; an event's registered users are the
// distinct user ids across its rows.
type EventRegistration struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID `gorm:"column:event_id;type:uuid;not null;index:idx_event_registrations_event_user"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_event_registrations_event_user"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null;uniqueIndex:idx_event_registrations_reservation_id"`
	Seats         int       `gorm:"column:seats;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *EventRegistration) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
