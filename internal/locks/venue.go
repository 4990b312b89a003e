package locks

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

// VenueSlots locks slot rows by pointing their booking_id at the reservation.
type VenueSlots struct{}

func NewVenueSlots() *VenueSlots { return &VenueSlots{} }

func (VenueSlots) Kind() enums.ReservationKind { return enums.ReservationKindVenue }

func venuePayload(res *models.Reservation) (*models.VenuePayload, error) {
	if res == nil || res.Payload.Venue == nil || len(res.Payload.Venue.SlotIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "venue reservation has no slots")
	}
	return res.Payload.Venue, nil
}

// Check requires every requested slot to exist on the facility and date, be
// available and not point at any booking.
func (VenueSlots) Check(ctx context.Context, db *gorm.DB, res *models.Reservation) error {
	p, err := venuePayload(res)
	if err != nil {
		return err
	}
	var count int64
	err = db.WithContext(ctx).Model(&models.Slot{}).
		Where("id IN ? AND facility_id = ? AND date = ?", p.SlotIDs, p.FacilityID, p.Date).
		Where("availability = ? AND booking_id IS NULL", enums.SlotAvailable).
		Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count available slots")
	}
	if int(count) != len(p.SlotIDs) {
		return pkgerrors.New(pkgerrors.CodeConflict, "one or more slots are not available").
			WithDetails(map[string]any{"requested": len(p.SlotIDs), "available": count})
	}
	return nil
}

// Acquire is a conditional update; a slot taken by a concurrent booking fails
// to match and the whole batch is rejected.
func (VenueSlots) Acquire(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	p, err := venuePayload(res)
	if err != nil {
		return err
	}
	result := tx.WithContext(ctx).Model(&models.Slot{}).
		Where("id IN ? AND availability = ? AND booking_id IS NULL", p.SlotIDs, enums.SlotAvailable).
		Updates(map[string]any{
			"availability": enums.SlotLocked,
			"booking_id":   res.ID,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "lock slots")
	}
	if int(result.RowsAffected) != len(p.SlotIDs) {
		return pkgerrors.New(pkgerrors.CodeConflict, "one or more slots are not available")
	}
	return nil
}

func (VenueSlots) ReleaseCommitted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	err := tx.WithContext(ctx).Model(&models.Slot{}).
		Where("booking_id = ? AND availability = ?", res.ID, enums.SlotLocked).
		Update("availability", enums.SlotBooked).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "mark slots booked")
	}
	return nil
}

func (VenueSlots) ReleaseReverted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	err := tx.WithContext(ctx).Model(&models.Slot{}).
		Where("booking_id = ?", res.ID).
		Updates(map[string]any{
			"availability": enums.SlotAvailable,
			"booking_id":   nil,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "release slots")
	}
	return nil
}

func (VenueSlots) DescribeForLedger(ctx context.Context, tx *gorm.DB, res *models.Reservation) (string, error) {
	p, err := venuePayload(res)
	if err != nil {
		return "", err
	}
	var row struct {
		VenueName    string
		FacilityName string
	}
	err = tx.WithContext(ctx).Table("facilities").
		Select("venues.name AS venue_name, facilities.name AS facility_name").
		Joins("JOIN venues ON venues.id = facilities.venue_id").
		Where("facilities.id = ?", p.FacilityID).
		Take(&row).Error
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "resolve venue name")
	}
	return fmt.Sprintf("%s - %s (%s %s-%s)", row.VenueName, row.FacilityName, p.Date, p.StartTime, p.EndTime), nil
}
