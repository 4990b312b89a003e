// Package payments drives a reservation from order creation to settlement:
// wallet deduction or gateway order, confirmation checks, cancellation and
// the expiry of reservations that never settled.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/gateway"
	"github.com/angelmondragon/arena-backend/internal/ledger"
	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/internal/settlement"
	"github.com/angelmondragon/arena-backend/internal/wallet"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/outbox"
)

const walletOrderPrefix = "wallet_"

// Gateway is the slice of the payment gateway client the service uses.
type Gateway interface {
	Currency() string
	CreateOrder(ctx context.Context, in gateway.CreateOrderInput) (*gateway.Order, error)
	VerifySignature(conf gateway.Confirmation) error
}

// Settler applies a payment outcome to a reservation.
type Settler interface {
	Settle(ctx context.Context, req settlement.Request) (*settlement.Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor is the authenticated principal behind a call.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}

// OrderHandle is what the client needs to complete payment.
type OrderHandle struct {
	ReservationID uuid.UUID           `json:"reservation_id"`
	OrderID       string              `json:"order_id"`
	Receipt       string              `json:"receipt"`
	Amount        decimal.Decimal     `json:"amount"`
	AmountMinor   int64               `json:"amount_minor"`
	Currency      string              `json:"currency"`
	Method        enums.PaymentMethod `json:"method"`
}

// VerifyInput is the client's payment confirmation. PaymentID and Signature
// are only used on the gateway path.
type VerifyInput struct {
	ReservationID uuid.UUID
	OrderID       string
	PaymentID     string
	Signature     string
}

type Deps struct {
	DB           txRunner
	Reservations reservations.Repository
	Wallet       wallet.Service
	Ledger       ledger.Service
	Gateway      Gateway
	Settlement   Settler
	Logger       *logger.Logger
}

type Service struct {
	db           txRunner
	reservations reservations.Repository
	wallet       wallet.Service
	ledger       ledger.Service
	gateway      Gateway
	settlement   Settler
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("payments db required")
	case deps.Reservations == nil:
		return nil, fmt.Errorf("reservation repository required")
	case deps.Wallet == nil:
		return nil, fmt.Errorf("wallet service required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("gateway client required")
	case deps.Settlement == nil:
		return nil, fmt.Errorf("settlement handler required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		db:           deps.DB,
		reservations: deps.Reservations,
		wallet:       deps.Wallet,
		ledger:       deps.Ledger,
		gateway:      deps.Gateway,
		settlement:   deps.Settlement,
		logg:         logg,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrder opens the payment for a Pending reservation. The wallet path
// deducts the balance, writes the ledger row and records the order id in one
// transaction; the gateway path creates the remote order first. Any failure
// after the hold exists fails the reservation so the hold is released.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, reservationID uuid.UUID) (*OrderHandle, error) {
	res, err := s.owned(ctx, actor, reservationID)
	if err != nil {
		return nil, err
	}
	if res.IsTerminal() || res.OrderID != nil {
		return nil, alreadyProcessed(res)
	}
	ctx = s.logg.WithReservation(ctx, res.ID.String(), string(res.Kind))

	var handle *OrderHandle
	switch res.PaymentDetails.Method {
	case enums.PaymentMethodWallet:
		handle, err = s.walletOrder(ctx, res)
	case enums.PaymentMethodGateway:
		handle, err = s.gatewayOrder(ctx, res)
	default:
		err = pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", res.PaymentDetails.Method))
	}
	if err != nil {
		// A conflict here means another request already attached an order;
		// that reservation is live and must not be failed.
		if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			s.compensate(ctx, actor, res.ID, err)
		}
		return nil, err
	}

	s.logg.Info(ctx, fmt.Sprintf("payment order created order_id=%s method=%s", handle.OrderID, handle.Method))
	return handle, nil
}

func (s *Service) walletOrder(ctx context.Context, res *models.Reservation) (*OrderHandle, error) {
	orderID := walletOrderPrefix + uuid.NewString()
	currency := s.gateway.Currency()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.wallet.WithTx(tx).DeductCredits(ctx, res.UserID, res.Amount, &res.ID); err != nil {
			return err
		}
		return s.attachOrder(ctx, tx, res, orderID, res.ID.String(), currency)
	})
	if err != nil {
		return nil, err
	}
	return s.handle(res, orderID, res.ID.String(), currency), nil
}

func (s *Service) gatewayOrder(ctx context.Context, res *models.Reservation) (*OrderHandle, error) {
	currency := s.gateway.Currency()
	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderInput{
		Amount:     res.Amount,
		Currency:   currency,
		ReceiptRef: res.ID.String(),
		CustomerID: res.UserID,
	})
	if err != nil {
		return nil, err
	}
	receipt := order.Receipt
	if receipt == "" {
		receipt = res.ID.String()
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.attachOrder(ctx, tx, res, order.ID, receipt, currency)
	})
	if err != nil {
		return nil, err
	}
	return s.handle(res, order.ID, receipt, currency), nil
}

func (s *Service) attachOrder(ctx context.Context, tx *gorm.DB, res *models.Reservation, orderID, receipt, currency string) error {
	_, err := s.ledger.WithTx(tx).CreateRow(ctx, ledger.CreateRowInput{
		OrderID:         orderID,
		ReservationKind: res.Kind,
		ReservationID:   res.ID,
		UserID:          res.UserID,
		Amount:          res.Amount,
		Currency:        currency,
		Method:          res.PaymentDetails.Method,
	})
	if err != nil {
		return err
	}

	details := res.PaymentDetails
	details.OrderID = orderID
	details.Receipt = receipt
	details.Currency = currency
	details.UpdatedAt = s.now()
	attached, err := s.reservations.WithTx(tx).SetOrder(ctx, res.ID, orderID, details)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "attach payment order")
	}
	if !attached {
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already processed")
	}
	return nil
}

func (s *Service) handle(res *models.Reservation, orderID, receipt, currency string) *OrderHandle {
	return &OrderHandle{
		ReservationID: res.ID,
		OrderID:       orderID,
		Receipt:       receipt,
		Amount:        res.Amount,
		AmountMinor:   gateway.MinorUnits(res.Amount),
		Currency:      currency,
		Method:        res.PaymentDetails.Method,
	}
}

// VerifyAndSettle checks the confirmation and settles the reservation. A
// confirmation that does not verify still settles, as Failed, and is then
// reported as PAYMENT_FAILED.
func (s *Service) VerifyAndSettle(ctx context.Context, actor Actor, in VerifyInput) (*models.Reservation, error) {
	res, err := s.owned(ctx, actor, in.ReservationID)
	if err != nil {
		return nil, err
	}
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if res.IsTerminal() {
		if res.PaymentStatus == enums.PaymentStatusPaid && res.OrderID != nil && *res.OrderID == in.OrderID {
			return res, nil
		}
		return nil, alreadyProcessed(res)
	}
	if res.OrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "no payment order exists for reservation")
	}
	if *res.OrderID != in.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id does not match reservation")
	}
	ctx = s.logg.WithReservation(ctx, res.ID.String(), string(res.Kind))

	var verifyErr error
	switch res.PaymentDetails.Method {
	case enums.PaymentMethodWallet:
		exists, err := s.ledger.Exists(ctx, in.OrderID)
		if err != nil {
			return nil, err
		}
		if !exists {
			verifyErr = pkgerrors.New(pkgerrors.CodePaymentFailed, "no wallet ledger row for order")
		}
	case enums.PaymentMethodGateway:
		if strings.TrimSpace(in.PaymentID) == "" || strings.TrimSpace(in.Signature) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id, order id and signature are required")
		}
		verifyErr = s.gateway.VerifySignature(gateway.Confirmation{
			OrderID:   in.OrderID,
			PaymentID: in.PaymentID,
			Signature: in.Signature,
		})
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", res.PaymentDetails.Method))
	}

	if verifyErr != nil {
		s.logg.Warn(ctx, "payment verification failed: "+verifyErr.Error())
		if _, err := s.settlement.Settle(ctx, settlement.Request{
			ReservationID: res.ID,
			Outcome:       enums.OutcomeFailed,
			PaymentID:     in.PaymentID,
			Actor:         actor.ref(),
		}); err != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, verifyErr, "payment verification failed")
	}

	result, err := s.settlement.Settle(ctx, settlement.Request{
		ReservationID: res.ID,
		Outcome:       enums.OutcomePaid,
		PaymentID:     in.PaymentID,
		Actor:         actor.ref(),
	})
	if err != nil {
		return nil, err
	}
	if result.Reservation.PaymentStatus != enums.PaymentStatusPaid {
		return nil, alreadyProcessed(result.Reservation)
	}
	return result.Reservation, nil
}

// compensate fails the reservation after a failed order creation. The
// original error is what the caller sees; a failed compensation is logged.
func (s *Service) compensate(ctx context.Context, actor Actor, id uuid.UUID, cause error) {
	_, err := s.settlement.Settle(ctx, settlement.Request{
		ReservationID: id,
		Outcome:       enums.OutcomeFailed,
		Actor:         actor.ref(),
	})
	if err != nil {
		s.logg.Error(ctx, "compensation after failed order creation did not settle", err)
		return
	}
	s.logg.Warn(ctx, "order creation failed, reservation released: "+cause.Error())
}

// owned loads the reservation and checks the actor may act on it.
func (s *Service) owned(ctx context.Context, actor Actor, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id is required")
	}
	res, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && res.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another user")
	}
	return res, nil
}

func alreadyProcessed(res *models.Reservation) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "reservation already processed").
		WithDetails(map[string]any{
			"status":         res.Status,
			"payment_status": res.PaymentStatus,
		})
}
