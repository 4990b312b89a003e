// Package eventbookings creates event seat bookings ahead of payment.
package eventbookings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/repo"
	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/internal/users"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

const maxSeatsPerBooking = 10

type CreateInput struct {
	UserID    uuid.UUID
	PartnerID uuid.UUID
	EventID   uuid.UUID
	Seats     int
	Method    enums.PaymentMethod
}

type Service struct {
	base      repo.Base
	directory *users.Directory
	creator   *reservations.Creator
}

func NewService(db *gorm.DB, directory *users.Directory, creator *reservations.Creator) (*Service, error) {
	if db == nil || directory == nil || creator == nil {
		return nil, fmt.Errorf("event booking dependencies required")
	}
	return &Service{base: repo.NewBase(db), directory: directory, creator: creator}, nil
}

// CreateBeforePayment books seats on an event. Seats are counted against
// capacity now and only committed once payment succeeds.
func (s *Service) CreateBeforePayment(ctx context.Context, in CreateInput) (*models.Reservation, error) {
	switch {
	case in.UserID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	case in.PartnerID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner_id is required")
	case in.EventID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event_id is required")
	case in.Seats < 1 || in.Seats > maxSeatsPerBooking:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("seats must be between 1 and %d", maxSeatsPerBooking))
	}
	if err := reservations.RequireMethod(in.Method); err != nil {
		return nil, err
	}

	if _, err := s.directory.RequireUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if _, err := s.directory.RequirePartner(ctx, in.PartnerID); err != nil {
		return nil, err
	}
	var event models.Event
	if err := s.base.DB(ctx).Take(&event, "id = ?", in.EventID).Error; err != nil {
		return nil, repo.NotFound(err, "event")
	}
	if event.PartnerID != in.PartnerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event does not belong to partner")
	}

	partnerID := in.PartnerID
	date := event.StartsAt.UTC().Format(reservations.DateLayout)
	res := &models.Reservation{
		Kind:           enums.ReservationKindEvent,
		UserID:         in.UserID,
		PartnerID:      &partnerID,
		Payload:        models.ReservationPayload{Event: &models.EventPayload{EventID: event.ID, Seats: in.Seats}},
		Amount:         event.Price.Mul(decimal.NewFromInt(int64(in.Seats))).Round(2),
		BookedDate:     &date,
		PaymentDetails: models.PaymentDetails{Method: in.Method},
	}
	if err := s.creator.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}
