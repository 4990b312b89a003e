package locks

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/metrics"
)

// EventSeats holds no physical lock. Capacity is checked at creation and
// seats are counted only when payment succeeds, so two bookings may both pass
// the check before either commits. Commits over capacity are logged and
// counted rather than refused.
type EventSeats struct {
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
}

func NewEventSeats(logg *logger.Logger, m *metrics.SettlementMetrics) *EventSeats {
	return &EventSeats{logg: logg, metrics: m}
}

func (*EventSeats) Kind() enums.ReservationKind { return enums.ReservationKindEvent }

func eventPayload(res *models.Reservation) (*models.EventPayload, error) {
	if res == nil || res.Payload.Event == nil || res.Payload.Event.Seats <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event reservation has no seats")
	}
	return res.Payload.Event, nil
}

func (s *EventSeats) Check(ctx context.Context, db *gorm.DB, res *models.Reservation) error {
	p, err := eventPayload(res)
	if err != nil {
		return err
	}
	if err := checkCapacity(ctx, db, p); err != nil {
		return err
	}
	var registered int64
	err = db.WithContext(ctx).Model(&models.EventRegistration{}).
		Where("event_id = ? AND user_id = ?", p.EventID, res.UserID).
		Count(&registered).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check registration")
	}
	if registered > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "user already registered for event")
	}
	return checkPendingBooking(ctx, db, p, res)
}

// Acquire repeats the capacity and pending booking checks inside the
// creation transaction.
func (s *EventSeats) Acquire(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	p, err := eventPayload(res)
	if err != nil {
		return err
	}
	if err := checkCapacity(ctx, tx, p); err != nil {
		return err
	}
	return checkPendingBooking(ctx, tx, p, res)
}

// checkPendingBooking refuses a second unsettled booking by the same user for
// the same event.
func checkPendingBooking(ctx context.Context, db *gorm.DB, p *models.EventPayload, res *models.Reservation) error {
	var open []models.Reservation
	err := db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND status = ? AND id <> ?",
			res.UserID, enums.ReservationKindEvent, enums.ReservationStatusPending, res.ID).
		Find(&open).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check pending bookings")
	}
	for _, other := range open {
		if other.IsTerminal() || other.Payload.Event == nil || other.Payload.Event.EventID != p.EventID {
			continue
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "user already has a pending booking for event").
			WithDetails(map[string]any{"reservation_id": other.ID.String()})
	}
	return nil
}

func checkCapacity(ctx context.Context, db *gorm.DB, p *models.EventPayload) error {
	var event models.Event
	if err := db.WithContext(ctx).Take(&event, "id = ?", p.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load event")
	}
	if event.Archived {
		return pkgerrors.New(pkgerrors.CodeConflict, "event is archived")
	}
	if event.BookedSeats+p.Seats > event.Capacity {
		return pkgerrors.New(pkgerrors.CodeConflict, "not enough seats available").
			WithDetails(map[string]any{"capacity": event.Capacity, "booked": event.BookedSeats, "requested": p.Seats})
	}
	return nil
}

// ReleaseCommitted registers the user and counts the seats. The registration
// row is keyed by reservation and its insert is the idempotency guard: seats
// are added only when it lands.
func (s *EventSeats) ReleaseCommitted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	p, err := eventPayload(res)
	if err != nil {
		return err
	}
	reg := models.EventRegistration{
		EventID:       p.EventID,
		UserID:        res.UserID,
		ReservationID: res.ID,
		Seats:         p.Seats,
	}
	inserted := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "reservation_id"}}, DoNothing: true}).
		Create(&reg)
	if inserted.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, inserted.Error, "register user for event")
	}
	if inserted.RowsAffected == 0 {
		if s.logg != nil {
			s.logg.Debug(ctx, "event registration already present")
		}
		return nil
	}

	err = tx.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", p.EventID).
		Update("booked_seats", gorm.Expr("booked_seats + ?", p.Seats)).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count booked seats")
	}

	var event models.Event
	if err := tx.WithContext(ctx).Select("id", "capacity", "booked_seats").Take(&event, "id = ?", p.EventID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reload event")
	}
	if event.BookedSeats > event.Capacity {
		s.metrics.IncOversell()
		if s.logg != nil {
			warnCtx := s.logg.WithFields(ctx, map[string]any{
				"event_id":     event.ID.String(),
				"capacity":     event.Capacity,
				"booked_seats": event.BookedSeats,
			})
			s.logg.Warn(warnCtx, "event booked seats exceed capacity")
		}
	}
	return nil
}

// ReleaseReverted removes this reservation's registration and gives its seats
// back. Seats that were never committed are left alone and the counter is
// clamped at zero.
func (s *EventSeats) ReleaseReverted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	p, err := eventPayload(res)
	if err != nil {
		return err
	}
	deleted := tx.WithContext(ctx).
		Where("event_id = ? AND reservation_id = ?", p.EventID, res.ID).
		Delete(&models.EventRegistration{})
	if deleted.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, deleted.Error, "remove event registration")
	}
	if deleted.RowsAffected == 0 {
		return nil
	}
	err = tx.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", p.EventID).
		Update("booked_seats", gorm.Expr("CASE WHEN booked_seats >= ? THEN booked_seats - ? ELSE 0 END", p.Seats, p.Seats)).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "return booked seats")
	}
	return nil
}

func (s *EventSeats) DescribeForLedger(ctx context.Context, tx *gorm.DB, res *models.Reservation) (string, error) {
	p, err := eventPayload(res)
	if err != nil {
		return "", err
	}
	var event models.Event
	if err := tx.WithContext(ctx).Select("title").Take(&event, "id = ?", p.EventID).Error; err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "resolve event title")
	}
	return event.Title, nil
}
