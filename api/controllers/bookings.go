package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/arena-backend/api/responses"
	"github.com/angelmondragon/arena-backend/api/validators"
	"github.com/angelmondragon/arena-backend/internal/eventbookings"
	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/internal/shoporders"
	"github.com/angelmondragon/arena-backend/internal/venuebookings"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

type venueBookingCreator interface {
	CreateBeforePayment(ctx context.Context, in venuebookings.CreateInput) (*models.Reservation, error)
}

type eventBookingCreator interface {
	CreateBeforePayment(ctx context.Context, in eventbookings.CreateInput) (*models.Reservation, error)
}

type shopOrderCreator interface {
	CreateBeforePayment(ctx context.Context, in shoporders.CreateInput) (*models.Reservation, error)
}

type venueBookingRequest struct {
	PartnerID       string   `json:"partner_id" validate:"required,uuid"`
	VenueID         string   `json:"venue_id" validate:"required,uuid"`
	FacilityID      string   `json:"facility_id" validate:"required,uuid"`
	ActivityID      string   `json:"activity_id" validate:"required,uuid"`
	SlotIDs         []string `json:"slot_ids" validate:"required,min=1,dive,uuid"`
	Date            string   `json:"date" validate:"required"`
	StartTime       string   `json:"start_time" validate:"required"`
	EndTime         string   `json:"end_time" validate:"required"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,gt=0"`
	PaymentMethod   string   `json:"payment_method" validate:"required,oneof=wallet gateway"`
}

// VenueBookingCreate holds slots for the caller and returns the pending reservation.
func VenueBookingCreate(svc venueBookingCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body venueBookingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slotIDs, err := parseUUIDs("slot_ids", body.SlotIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.CreateBeforePayment(r.Context(), venuebookings.CreateInput{
			UserID:          actor.UserID,
			PartnerID:       mustUUID(body.PartnerID),
			VenueID:         mustUUID(body.VenueID),
			FacilityID:      mustUUID(body.FacilityID),
			ActivityID:      mustUUID(body.ActivityID),
			SlotIDs:         slotIDs,
			Date:            body.Date,
			StartTime:       body.StartTime,
			EndTime:         body.EndTime,
			DurationMinutes: body.DurationMinutes,
			Method:          enums.PaymentMethod(body.PaymentMethod),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservations.FromModel(res))
	}
}

type eventBookingRequest struct {
	PartnerID     string `json:"partner_id" validate:"required,uuid"`
	EventID       string `json:"event_id" validate:"required,uuid"`
	Seats         int    `json:"seats" validate:"required,min=1,max=10"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=wallet gateway"`
}

// EventBookingCreate holds seats for the caller and returns the pending reservation.
func EventBookingCreate(svc eventBookingCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body eventBookingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.CreateBeforePayment(r.Context(), eventbookings.CreateInput{
			UserID:    actor.UserID,
			PartnerID: mustUUID(body.PartnerID),
			EventID:   mustUUID(body.EventID),
			Seats:     body.Seats,
			Method:    enums.PaymentMethod(body.PaymentMethod),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservations.FromModel(res))
	}
}

type shopLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type shippingAddressRequest struct {
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

type shopOrderRequest struct {
	Lines           []shopLineRequest      `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress shippingAddressRequest `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" validate:"required,oneof=wallet gateway"`
}

// ShopOrderCreate holds product inventory for the caller and returns the pending reservation.
func ShopOrderCreate(svc shopOrderCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body shopOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]shoporders.LineInput, 0, len(body.Lines))
		for _, line := range body.Lines {
			lines = append(lines, shoporders.LineInput{ProductID: mustUUID(line.ProductID), Quantity: line.Quantity})
		}
		addr := body.ShippingAddress
		res, err := svc.CreateBeforePayment(r.Context(), shoporders.CreateInput{
			UserID: actor.UserID,
			Lines:  lines,
			ShippingAddress: models.ShippingAddress{
				Line1:      validators.SanitizeString(addr.Line1, 200),
				Line2:      validators.SanitizeString(addr.Line2, 200),
				City:       validators.SanitizeString(addr.City, 100),
				State:      validators.SanitizeString(addr.State, 100),
				PostalCode: validators.SanitizeString(addr.PostalCode, 20),
				Country:    validators.SanitizeString(addr.Country, 100),
			},
			Method: enums.PaymentMethod(body.PaymentMethod),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservations.FromModel(res))
	}
}
