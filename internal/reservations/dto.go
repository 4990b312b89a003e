package reservations

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// ReservationDTO is the transport shape of a reservation.
type ReservationDTO struct {
	ID             uuid.UUID                 `json:"id"`
	Kind           enums.ReservationKind     `json:"kind"`
	UserID         uuid.UUID                 `json:"user_id"`
	PartnerID      *uuid.UUID                `json:"partner_id,omitempty"`
	Payload        models.ReservationPayload `json:"payload"`
	Amount         string                    `json:"amount"`
	BookedDate     *string                   `json:"booked_date,omitempty"`
	Status         enums.ReservationStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus       `json:"payment_status"`
	PaymentDetails models.PaymentDetails     `json:"payment_details"`
	CreatedAt      time.Time                 `json:"created_at"`
	ConfirmedAt    *time.Time                `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time                `json:"cancelled_at,omitempty"`
}

func FromModel(r *models.Reservation) *ReservationDTO {
	if r == nil {
		return nil
	}
	return &ReservationDTO{
		ID:             r.ID,
		Kind:           r.Kind,
		UserID:         r.UserID,
		PartnerID:      r.PartnerID,
		Payload:        r.Payload,
		Amount:         r.Amount.StringFixed(2),
		BookedDate:     r.BookedDate,
		Status:         r.Status,
		PaymentStatus:  r.PaymentStatus,
		PaymentDetails: r.PaymentDetails,
		CreatedAt:      r.CreatedAt,
		ConfirmedAt:    r.ConfirmedAt,
		CancelledAt:    r.CancelledAt,
	}
}
