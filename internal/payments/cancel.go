package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/internal/settlement"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

// Cancel withdraws a reservation before any payment order exists.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*models.Reservation, error) {
	res, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if res.IsTerminal() {
		return nil, alreadyProcessed(res)
	}
	if res.OrderID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already in progress for reservation")
	}
	result, err := s.settlement.Settle(ctx, settlement.Request{
		ReservationID: res.ID,
		Outcome:       enums.OutcomeCancelled,
		Actor:         actor.ref(),
	})
	if err != nil {
		return nil, err
	}
	if result.Reservation.Status != enums.ReservationStatusCancelled {
		return nil, alreadyProcessed(result.Reservation)
	}
	return result.Reservation, nil
}

// Get returns a reservation to its owner, the partner it names or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == enums.UserRoleAdmin:
	case res.UserID == actor.UserID:
	case actor.Role == enums.UserRolePartner && res.PartnerID != nil && *res.PartnerID == actor.UserID:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return res, nil
}

// ListMine returns the caller's own reservations, newest first.
func (s *Service) ListMine(ctx context.Context, actor Actor, status *enums.ReservationStatus, limit int) ([]models.Reservation, error) {
	return s.reservations.ListByUser(ctx, reservations.UserFilter{UserID: actor.UserID, Status: status, Limit: limit})
}
