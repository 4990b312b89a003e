package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/arena-backend/api/responses"
	"github.com/angelmondragon/arena-backend/api/validators"
	"github.com/angelmondragon/arena-backend/internal/payments"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

type staleExpirer interface {
	ExpireStale(ctx context.Context, in payments.ExpireInput) (*payments.ExpireReport, error)
}

type releaseStaleRequest struct {
	Kind             string  `json:"kind" validate:"omitempty,oneof=venue event shop"`
	OlderThanMinutes int     `json:"older_than_minutes" validate:"required,min=1"`
	FromDate         *string `json:"from_date" validate:"omitempty"`
	ToDate           *string `json:"to_date" validate:"omitempty"`
	Limit            int     `json:"limit" validate:"omitempty,min=1,max=5000"`
}

// AdminReleaseStale settles reservations stuck in payment initiated.
func AdminReleaseStale(svc staleExpirer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body releaseStaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in := payments.ExpireInput{
			OlderThan: time.Duration(body.OlderThanMinutes) * time.Minute,
			FromDate:  body.FromDate,
			ToDate:    body.ToDate,
			Limit:     body.Limit,
		}
		if body.Kind != "" {
			kind := enums.ReservationKind(body.Kind)
			in.Kind = &kind
		}

		report, err := svc.ExpireStale(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

type walletCreditor interface {
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type walletCreditRequest struct {
	Amount string `json:"amount" validate:"required,max=20"`
	Reason string `json:"reason" validate:"required,min=3,max=200"`
}

type walletBalanceResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance string    `json:"balance"`
}

// AdminWalletCredit tops up a user's wallet.
func AdminWalletCredit(svc walletCreditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body walletCreditRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(body.Amount))
		if err != nil || !amount.IsPositive() || amount.Exponent() < -2 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive value with at most two decimals"))
			return
		}

		balance, err := svc.Credit(r.Context(), userID, amount, validators.SanitizeString(body.Reason, 200))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, walletBalanceResponse{UserID: userID, Balance: balance.StringFixed(2)})
	}
}

// MyWallet returns the caller's wallet balance.
func MyWallet(svc walletCreditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, walletBalanceResponse{UserID: actor.UserID, Balance: balance.StringFixed(2)})
	}
}
