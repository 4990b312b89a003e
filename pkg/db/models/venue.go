package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// Venue is a partner-owned location holding one or more facilities.
type Venue struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID uuid.UUID `gorm:"column:partner_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	City      string    `gorm:"column:city"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (v *Venue) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Facility is a bookable court, pitch or lane within a venue.
type Facility struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VenueID   uuid.UUID `gorm:"column:venue_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (f *Facility) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

type Activity struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name string    `gorm:"column:name;not null;uniqueIndex"`
}

func (a *Activity) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Slot is a 30 minute window on a facility. BookingID points at the
// reservation currently holding it.
type Slot struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	FacilityID   uuid.UUID              `gorm:"column:facility_id;type:uuid;not null;index:idx_slots_facility_date"`
	ActivityID   uuid.UUID              `gorm:"column:activity_id;type:uuid;not null"`
	Date         string                 `gorm:"column:date;type:text;not null;index:idx_slots_facility_date"`
	StartTime    string                 `gorm:"column:start_time;type:text;not null"`
	EndTime      string                 `gorm:"column:end_time;type:text;not null"`
	Price        decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	Availability enums.SlotAvailability `gorm:"column:availability;type:text;not null"`
	BookingID    *uuid.UUID             `gorm:"column:booking_id;type:uuid;index"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Slot) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
