package locks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

// ShopInventory decrements product inventory at lock time and records the
// held quantity in product_locks, one row per (product, user). A user has at
// most one unsettled order per product.
type ShopInventory struct {
	now func() time.Time
}

func NewShopInventory() *ShopInventory {
	return &ShopInventory{now: time.Now}
}

func (*ShopInventory) Kind() enums.ReservationKind { return enums.ReservationKindShop }

func shopLines(res *models.Reservation) ([]models.ShopLine, error) {
	if res == nil || res.Payload.Shop == nil || len(res.Payload.Shop.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop order has no lines")
	}
	lines := append([]models.ShopLine(nil), res.Payload.Shop.Lines...)
	// fixed order keeps concurrent lockers from deadlocking on product rows
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
	return lines, nil
}

func (s *ShopInventory) Check(ctx context.Context, conn *gorm.DB, res *models.Reservation) error {
	lines, err := shopLines(res)
	if err != nil {
		return err
	}
	for _, line := range lines {
		var product models.Product
		if err := conn.WithContext(ctx).Take(&product, "id = ?", line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": line.ProductID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "product is not available").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		hold, err := s.userHold(ctx, conn, line.ProductID, res)
		if err != nil {
			return err
		}
		available := product.Inventory + hold.returnable()
		if available < line.Quantity {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient inventory").
				WithDetails(map[string]any{"product_id": line.ProductID.String(), "available": product.Inventory, "requested": line.Quantity})
		}
	}
	return nil
}

// productHold is a lock the user already has on a product, with the
// reservation it was taken for. holder is nil when that reservation is gone.
type productHold struct {
	lock   *models.ProductLock
	holder *models.Reservation
}

// returnable is the quantity clearing the hold gives back to inventory.
func (h productHold) returnable() int {
	if h.lock == nil || (h.holder != nil && h.holder.PaymentStatus == enums.PaymentStatusPaid) {
		return 0
	}
	return h.lock.Quantity
}

// userHold loads the user's lock on productID. A lock still backing another
// unsettled reservation is a conflict: that order keeps its stock until it
// settles.
func (s *ShopInventory) userHold(ctx context.Context, conn *gorm.DB, productID uuid.UUID, res *models.Reservation) (productHold, error) {
	var (
		hold productHold
		held []models.ProductLock
	)
	found := conn.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, res.UserID).
		Limit(1).Find(&held)
	if found.Error != nil {
		return hold, pkgerrors.Wrap(pkgerrors.CodePersistence, found.Error, "load product lock")
	}
	if found.RowsAffected == 0 || held[0].ReservationID == res.ID {
		return hold, nil
	}
	hold.lock = &held[0]

	var holders []models.Reservation
	loaded := conn.WithContext(ctx).Where("id = ?", hold.lock.ReservationID).Limit(1).Find(&holders)
	if loaded.Error != nil {
		return hold, pkgerrors.Wrap(pkgerrors.CodePersistence, loaded.Error, "load holding reservation")
	}
	if loaded.RowsAffected == 0 {
		return hold, nil
	}
	hold.holder = &holders[0]
	if !hold.holder.IsTerminal() {
		return hold, pkgerrors.New(pkgerrors.CodeConflict, "product is held by another pending order").
			WithDetails(map[string]any{"product_id": productID.String(), "reservation_id": hold.holder.ID.String()})
	}
	return hold, nil
}

// Acquire takes the requested quantity out of inventory. A leftover lock from
// one of the user's settled orders is cleared first: a paid order keeps its
// stock, any other gives it back.
func (s *ShopInventory) Acquire(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	lines, err := shopLines(res)
	if err != nil {
		return err
	}
	tx = tx.WithContext(ctx)
	for _, line := range lines {
		hold, err := s.userHold(ctx, tx, line.ProductID, res)
		if err != nil {
			return err
		}
		switch {
		case hold.returnable() > 0:
			if err := s.dropLock(tx, "id = ?", hold.lock.ID); err != nil {
				return err
			}
		case hold.lock != nil:
			if err := tx.Where("id = ?", hold.lock.ID).Delete(&models.ProductLock{}).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "remove product lock")
			}
		}

		result := tx.Model(&models.Product{}).
			Where("id = ? AND inventory >= ?", line.ProductID, line.Quantity).
			Update("inventory", gorm.Expr("inventory - ?", line.Quantity))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "decrement inventory")
		}
		if result.RowsAffected != 1 {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient inventory").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}

		lock := models.ProductLock{
			ProductID:     line.ProductID,
			UserID:        res.UserID,
			ReservationID: res.ID,
			Quantity:      line.Quantity,
			LockedAt:      s.now().UTC(),
		}
		if err := tx.Create(&lock).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product is held by another pending order").
					WithDetails(map[string]any{"product_id": line.ProductID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record product lock")
		}
	}
	return nil
}

// ReleaseCommitted finalizes the sale; inventory stays decremented.
func (s *ShopInventory) ReleaseCommitted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	err := tx.WithContext(ctx).Where("reservation_id = ?", res.ID).Delete(&models.ProductLock{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "remove product locks")
	}
	return nil
}

// ReleaseReverted gives back the quantity recorded on each lock row, not the
// order lines, so it is right even if the payload was edited or lost.
func (s *ShopInventory) ReleaseReverted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	return s.dropLock(tx.WithContext(ctx), "reservation_id = ?", res.ID)
}

func (s *ShopInventory) dropLock(tx *gorm.DB, query string, args ...any) error {
	var held []models.ProductLock
	if err := tx.Where(query, args...).Find(&held).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load product locks")
	}
	for _, lock := range held {
		deleted := tx.Where("id = ?", lock.ID).Delete(&models.ProductLock{})
		if deleted.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, deleted.Error, "remove product lock")
		}
		if deleted.RowsAffected == 0 {
			continue
		}
		err := tx.Model(&models.Product{}).
			Where("id = ?", lock.ProductID).
			Update("inventory", gorm.Expr("inventory + ?", lock.Quantity)).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "restore inventory")
		}
	}
	return nil
}

func (s *ShopInventory) DescribeForLedger(ctx context.Context, tx *gorm.DB, res *models.Reservation) (string, error) {
	lines, err := shopLines(res)
	if err != nil {
		return "", err
	}
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	var products []models.Product
	if err := tx.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "resolve product titles")
	}
	titles := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		titles[p.ID] = p.Title
	}
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		title := titles[line.ProductID]
		if title == "" {
			title = line.ProductID.String()
		}
		parts = append(parts, fmt.Sprintf("%s x%d", title, line.Quantity))
	}
	return strings.Join(parts, ", "), nil
}
