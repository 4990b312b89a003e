package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

// Service records one ledger entry per payment order and resolves it once.
type Service interface {
	WithTx(tx *gorm.DB) Service
	CreateRow(ctx context.Context, input CreateRowInput) (*models.LedgerEntry, error)
	Exists(ctx context.Context, orderID string) (bool, error)
	RecordOutcome(ctx context.Context, orderID string, outcome Outcome) error
}

type service struct {
	repo Repository
}

// CreateRowInput links an order to exactly one reservation.
type CreateRowInput struct {
	OrderID         string
	ReservationKind enums.ReservationKind
	ReservationID   uuid.UUID
	UserID          uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	Method          enums.PaymentMethod
}

// Outcome is the capture state written at settlement.
type Outcome struct {
	Captured  bool
	PaymentID string
	Name      string
	At        time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

// CreateRow inserts the entry. A duplicate order id is a programming error and
// is reported as an internal failure, never swallowed.
func (s *service) CreateRow(ctx context.Context, input CreateRowInput) (*models.LedgerEntry, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.ReservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}

	entry := &models.LedgerEntry{
		OrderID:  input.OrderID,
		UserID:   input.UserID,
		Amount:   input.Amount,
		Currency: input.Currency,
		Method:   input.Method,
	}
	refID := input.ReservationID
	switch input.ReservationKind {
	case enums.ReservationKindVenue, enums.ReservationKindEvent:
		entry.BookingID = &refID
	case enums.ReservationKindShop:
		entry.ShopOrderID = &refID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid reservation kind %q", input.ReservationKind))
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "duplicate ledger row for order "+input.OrderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create ledger row")
	}
	return entry, nil
}

func (s *service) Exists(ctx context.Context, orderID string) (bool, error) {
	if strings.TrimSpace(orderID) == "" {
		return false, nil
	}
	entry, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load ledger row")
	}
	return entry != nil, nil
}

// RecordOutcome is idempotent: an entry already resolved is left as it is.
func (s *service) RecordOutcome(ctx context.Context, orderID string, outcome Outcome) error {
	applied, err := s.repo.MarkOutcome(ctx, orderID, outcome)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update ledger row")
	}
	if applied {
		return nil
	}
	entry, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load ledger row")
	}
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "ledger row not found for order "+orderID)
	}
	return nil
}
