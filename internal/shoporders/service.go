// Package shoporders creates shop orders ahead of payment.
package shoporders

import (
	"context"
	"fmt"
	"strings"

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

type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type CreateInput struct {
	UserID          uuid.UUID
	Lines           []LineInput
	ShippingAddress models.ShippingAddress
	Method          enums.PaymentMethod
}

type Service struct {
	base      repo.Base
	directory *users.Directory
	creator   *reservations.Creator
}

func NewService(db *gorm.DB, directory *users.Directory, creator *reservations.Creator) (*Service, error) {
	if db == nil || directory == nil || creator == nil {
		return nil, fmt.Errorf("shop order dependencies required")
	}
	return &Service{base: repo.NewBase(db), directory: directory, creator: creator}, nil
}

// CreateBeforePayment prices the lines at current product prices and holds
// the inventory for the user.
func (s *Service) CreateBeforePayment(ctx context.Context, in CreateInput) (*models.Reservation, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if _, err := s.directory.RequireUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.ProductID)
	}
	var products []models.Product
	if err := s.base.DB(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, repo.NotFound(err, "products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := decimal.Zero
	lines := make([]models.ShopLine, 0, len(in.Lines))
	for _, line := range in.Lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		lines = append(lines, models.ShopLine{ProductID: product.ID, Quantity: line.Quantity, UnitPrice: product.Price})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	res := &models.Reservation{
		Kind:   enums.ReservationKindShop,
		UserID: in.UserID,
		Payload: models.ReservationPayload{Shop: &models.ShopPayload{
			Lines:           lines,
			ShippingAddress: in.ShippingAddress,
		}},
		Amount:         total.Round(2),
		PaymentDetails: models.PaymentDetails{Method: in.Method},
	}
	if err := s.creator.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func validate(in CreateInput) error {
	if in.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		if line.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		ids = append(ids, line.ProductID)
	}
	if err := reservations.RequireDistinct("lines", ids); err != nil {
		return err
	}
	addr := in.ShippingAddress
	for field, value := range map[string]string{
		"shipping_address.line1":       addr.Line1,
		"shipping_address.city":        addr.City,
		"shipping_address.postal_code": addr.PostalCode,
		"shipping_address.country":     addr.Country,
	} {
		if strings.TrimSpace(value) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
		}
	}
	return reservations.RequireMethod(in.Method)
}
