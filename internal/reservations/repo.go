package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/arena-backend/internal/repo"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// Repository persists reservations. State-changing writes are conditional on
// the reservation still being Pending/Initiated and report whether they hit.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, res *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	// FindByIDForUpdate row-locks the reservation on engines that support it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	SetOrder(ctx context.Context, id uuid.UUID, orderID string, details models.PaymentDetails) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, t Transition) (bool, error)
	ListStale(ctx context.Context, f StaleFilter) ([]models.Reservation, error)
	ListByUser(ctx context.Context, f UserFilter) ([]models.Reservation, error)
}

// StaleFilter selects unsettled reservations created before Before.
type StaleFilter struct {
	Kind     *enums.ReservationKind
	Before   time.Time
	FromDate *string
	ToDate   *string
	Limit    int
}

// UserFilter pages through one user's reservations, newest first.
type UserFilter struct {
	UserID uuid.UUID
	Status *enums.ReservationStatus
	Limit  int
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Rebind(tx)}
}

func (r *repository) Create(ctx context.Context, res *models.Reservation) error {
	return r.DB(ctx).Create(res).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.DB(ctx).Take(&res, "id = ?", id).Error; err != nil {
		return nil, repo.NotFound(err, "reservation")
	}
	return &res, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Take(&res, "id = ?", id).Error
	if err != nil {
		return nil, repo.NotFound(err, "reservation")
	}
	return &res, nil
}

func pending(db *gorm.DB, id uuid.UUID) *gorm.DB {
	return db.Model(&models.Reservation{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, enums.ReservationStatusPending, enums.PaymentStatusInitiated)
}

func (r *repository) SetOrder(ctx context.Context, id uuid.UUID, orderID string, details models.PaymentDetails) (bool, error) {
	result := pending(r.DB(ctx), id).
		Where("order_id IS NULL").
		Updates(map[string]any{
			"order_id":        orderID,
			"payment_details": details,
		})
	return result.RowsAffected == 1, result.Error
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, t Transition) (bool, error) {
	updates := map[string]any{
		"status":          t.Status,
		"payment_status":  t.PaymentStatus,
		"payment_details": t.PaymentDetails,
	}
	if t.ConfirmedAt != nil {
		updates["confirmed_at"] = *t.ConfirmedAt
	}
	if t.CancelledAt != nil {
		updates["cancelled_at"] = *t.CancelledAt
	}
	result := pending(r.DB(ctx), id).Updates(updates)
	return result.RowsAffected == 1, result.Error
}

func (r *repository) ListStale(ctx context.Context, f StaleFilter) ([]models.Reservation, error) {
	q := r.DB(ctx).
		Where("status = ? AND payment_status = ?", enums.ReservationStatusPending, enums.PaymentStatusInitiated).
		Where("created_at < ?", f.Before.UTC())
	if f.Kind != nil {
		q = q.Where("kind = ?", *f.Kind)
	}
	if f.FromDate != nil {
		q = q.Where("booked_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("booked_date <= ?", *f.ToDate)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []models.Reservation
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByUser(ctx context.Context, f UserFilter) ([]models.Reservation, error) {
	q := r.DB(ctx).Where("user_id = ?", f.UserID)
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []models.Reservation
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
