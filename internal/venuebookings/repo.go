package venuebookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/repo"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
)

// Repository reads the venue catalog a booking refers to.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) FindVenue(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	var venue models.Venue
	if err := r.DB(ctx).Take(&venue, "id = ?", id).Error; err != nil {
		return nil, repo.NotFound(err, "venue")
	}
	return &venue, nil
}

func (r *Repository) FindFacility(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	var facility models.Facility
	if err := r.DB(ctx).Take(&facility, "id = ?", id).Error; err != nil {
		return nil, repo.NotFound(err, "facility")
	}
	return &facility, nil
}

func (r *Repository) FindActivity(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	var activity models.Activity
	if err := r.DB(ctx).Take(&activity, "id = ?", id).Error; err != nil {
		return nil, repo.NotFound(err, "activity")
	}
	return &activity, nil
}

// SlotsOnFacility returns the requested slots that belong to the facility and
// date, in start time order.
func (r *Repository) SlotsOnFacility(ctx context.Context, facilityID uuid.UUID, date string, ids []uuid.UUID) ([]models.Slot, error) {
	var slots []models.Slot
	err := r.DB(ctx).
		Where("id IN ? AND facility_id = ? AND date = ?", ids, facilityID, date).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, repo.NotFound(err, "slots")
	}
	return slots, nil
}
