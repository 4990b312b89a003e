package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/arena-backend/api/responses"
	"github.com/angelmondragon/arena-backend/api/validators"
	"github.com/angelmondragon/arena-backend/internal/payments"
	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

type paymentService interface {
	CreateOrder(ctx context.Context, actor payments.Actor, reservationID uuid.UUID) (*payments.OrderHandle, error)
	VerifyAndSettle(ctx context.Context, actor payments.Actor, in payments.VerifyInput) (*models.Reservation, error)
	Cancel(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Reservation, error)
	Get(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Reservation, error)
	ListMine(ctx context.Context, actor payments.Actor, status *enums.ReservationStatus, limit int) ([]models.Reservation, error)
}

// ReservationCreateOrder opens a payment order for a pending reservation.
func ReservationCreateOrder(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, err := actorAndReservation(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		handle, err := svc.CreateOrder(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, handle)
	}
}

type verifyRequest struct {
	OrderID   string `json:"order_id" validate:"required,max=128"`
	PaymentID string `json:"payment_id" validate:"max=128"`
	Signature string `json:"signature" validate:"max=256"`
}

// ReservationVerify checks the client's payment confirmation and settles the reservation.
func ReservationVerify(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, err := actorAndReservation(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body verifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.VerifyAndSettle(r.Context(), actor, payments.VerifyInput{
			ReservationID: id,
			OrderID:       body.OrderID,
			PaymentID:     body.PaymentID,
			Signature:     body.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservations.FromModel(res))
	}
}

func ReservationCancel(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, err := actorAndReservation(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservations.FromModel(res))
	}
}

func ReservationGet(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, err := actorAndReservation(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservations.FromModel(res))
	}
}

// MyReservations lists the caller's reservations, optionally by status.
func MyReservations(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParseReservationStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListMine(r.Context(), actor, status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*reservations.ReservationDTO, 0, len(rows))
		for i := range rows {
			out = append(out, reservations.FromModel(&rows[i]))
		}
		responses.WriteList(w, out, len(out), limit)
	}
}

func actorAndReservation(r *http.Request) (payments.Actor, uuid.UUID, error) {
	actor, err := requireActor(r)
	if err != nil {
		return payments.Actor{}, uuid.Nil, err
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		return payments.Actor{}, uuid.Nil, err
	}
	return actor, id, nil
}
