// Package settlement applies a payment outcome to a reservation: the status
// transition, the release of its hold, the ledger outcome and the outbox event.
package settlement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/ledger"
	"github.com/angelmondragon/arena-backend/internal/locks"
	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/metrics"
	"github.com/angelmondragon/arena-backend/pkg/outbox"
	"github.com/angelmondragon/arena-backend/pkg/retry"
)

const (
	PathPrimary  = "primary"
	PathFallback = "fallback"
	PathNoop     = "noop"

	StepStatus  = "status"
	StepRelease = "release"
	StepLedger  = "ledger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	DB() *gorm.DB
}

// Request names the reservation and the outcome to apply.
type Request struct {
	ReservationID uuid.UUID
	Outcome       enums.SettlementOutcome
	PaymentID     string
	Actor         *outbox.ActorRef
}

// Result reports the settled reservation and which path settled it.
type Result struct {
	Reservation *models.Reservation
	Path        string
}

// Deps wires the handler.
type Deps struct {
	DB           txRunner
	Reservations reservations.Repository
	Locks        *locks.Registry
	Ledger       ledger.Service
	Outbox       *outbox.Service
	Metrics      *metrics.SettlementMetrics
	Logger       *logger.Logger
	Policy       retry.Policy
}

type Handler struct {
	db           txRunner
	reservations reservations.Repository
	locks        *locks.Registry
	ledger       ledger.Service
	outbox       *outbox.Service
	metrics      *metrics.SettlementMetrics
	logg         *logger.Logger
	policy       retry.Policy
	now          func() time.Time
}

func NewHandler(deps Deps) (*Handler, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("settlement db required")
	}
	if deps.Reservations == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if deps.Locks == nil {
		return nil, fmt.Errorf("lock registry required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	policy := deps.Policy
	if policy.MaxAttempts < 1 {
		policy = retry.Default
	}
	return &Handler{
		db:           deps.DB,
		reservations: deps.Reservations,
		locks:        deps.Locks,
		ledger:       deps.Ledger,
		outbox:       deps.Outbox,
		metrics:      deps.Metrics,
		logg:         logg,
		policy:       policy,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Settle applies req.Outcome. The primary path commits every effect in one
// transaction; when it keeps failing the fallback runs each effect in its own
// transaction until all have landed. Settling an already terminal reservation
// is a no-op.
func (h *Handler) Settle(ctx context.Context, req Request) (*Result, error) {
	if req.ReservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id is required")
	}
	if !req.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement outcome %q", req.Outcome))
	}

	started := time.Now()
	result, primaryErr := h.primary(ctx, req)
	if primaryErr == nil {
		h.finish(ctx, result, req.Outcome, started)
		return result, nil
	}
	if pkgerrors.HasCode(primaryErr, pkgerrors.CodeNotFound) {
		return nil, primaryErr
	}

	h.logg.Error(h.logg.WithField(ctx, "reservation_id", req.ReservationID.String()),
		"primary settlement failed, running step fallback", primaryErr)

	result, err := h.fallback(ctx, req)
	if err != nil {
		return nil, err
	}
	h.finish(ctx, result, req.Outcome, started)
	return result, nil
}

func (h *Handler) finish(ctx context.Context, result *Result, outcome enums.SettlementOutcome, started time.Time) {
	kind := string(result.Reservation.Kind)
	h.metrics.IncOutcome(kind, string(outcome), result.Path)
	h.metrics.ObserveDuration(kind, time.Since(started))
	lctx := h.logg.WithReservation(ctx, result.Reservation.ID.String(), kind)
	h.logg.Info(lctx, fmt.Sprintf("reservation settled status=%s payment_status=%s path=%s",
		result.Reservation.Status, result.Reservation.PaymentStatus, result.Path))
}

func (h *Handler) primary(ctx context.Context, req Request) (*Result, error) {
	var result *Result
	policy := h.policy
	policy.ShouldRetry = pkgerrors.IsRetryable
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			h.logg.Warn(h.logg.WithField(ctx, "attempt", attempt), "retrying primary settlement")
		}
		return h.db.WithTx(ctx, func(tx *gorm.DB) error {
			res, err := h.reservations.WithTx(tx).FindByIDForUpdate(ctx, req.ReservationID)
			if err != nil {
				return err
			}
			if res.IsTerminal() {
				result = &Result{Reservation: res, Path: PathNoop}
				return nil
			}

			strategy, err := h.locks.For(res.Kind)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve lock strategy")
			}

			t := reservations.TransitionFor(res, req.Outcome, req.PaymentID, h.now())
			applied, err := h.reservations.WithTx(tx).Transition(ctx, res.ID, t)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "transition reservation")
			}
			if !applied {
				return pkgerrors.New(pkgerrors.CodePersistence, "reservation changed during settlement")
			}

			if err := locks.Release(ctx, strategy, tx, res, req.Outcome == enums.OutcomePaid); err != nil {
				return err
			}
			if err := h.recordLedger(ctx, tx, strategy, res, req.Outcome, req.PaymentID); err != nil {
				return err
			}

			apply(res, t)
			if err := h.outbox.Emit(ctx, tx, settledEvent(res, req)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "emit settlement event")
			}
			result = &Result{Reservation: res, Path: PathPrimary}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fallback runs the remaining steps concurrently on every attempt, keeping
// the steps that already landed.
func (h *Handler) fallback(ctx context.Context, req Request) (*Result, error) {
	var res *models.Reservation
	err := retry.Do(ctx, h.policy, func(ctx context.Context, _ int) error {
		loaded, err := h.reservations.FindByID(ctx, req.ReservationID)
		if err != nil {
			return err
		}
		res = loaded
		return nil
	})
	if err != nil {
		return nil, h.exhausted(ctx, req, nil, []string{StepStatus, StepRelease, StepLedger}, err)
	}

	strategy, err := h.locks.For(res.Kind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve lock strategy")
	}

	// A reservation already terminal keeps its outcome; the remaining steps
	// must agree with it.
	if res.IsTerminal() {
		req.Outcome = reservations.OutcomeOf(res)
	}
	t := reservations.TransitionFor(res, req.Outcome, req.PaymentID, h.now())

	steps := map[string]func(ctx context.Context, tx *gorm.DB) error{
		StepStatus: func(ctx context.Context, tx *gorm.DB) error {
			current, err := h.reservations.WithTx(tx).FindByIDForUpdate(ctx, res.ID)
			if err != nil {
				return err
			}
			if current.IsTerminal() {
				return nil
			}
			if _, err := h.reservations.WithTx(tx).Transition(ctx, res.ID, t); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "transition reservation")
			}
			settled := *current
			apply(&settled, t)
			return h.outbox.EmitIfNotExists(ctx, tx, settledEvent(&settled, req))
		},
		StepRelease: func(ctx context.Context, tx *gorm.DB) error {
			current, outcome, err := h.lockForStep(ctx, tx, res.ID, req.Outcome)
			if err != nil {
				return err
			}
			return locks.Release(ctx, strategy, tx, current, outcome == enums.OutcomePaid)
		},
	}
	if res.OrderID != nil {
		steps[StepLedger] = func(ctx context.Context, tx *gorm.DB) error {
			current, outcome, err := h.lockForStep(ctx, tx, res.ID, req.Outcome)
			if err != nil {
				return err
			}
			return h.recordLedger(ctx, tx, strategy, current, outcome, req.PaymentID)
		}
	}

	var mu sync.Mutex
	done := make(map[string]bool, len(steps))
	err = retry.Do(ctx, h.policy, func(ctx context.Context, attempt int) error {
		var (
			wg   sync.WaitGroup
			errs error
		)
		for name, step := range steps {
			mu.Lock()
			skip := done[name]
			mu.Unlock()
			if skip {
				continue
			}
			wg.Add(1)
			go func(name string, step func(context.Context, *gorm.DB) error) {
				defer wg.Done()
				stepErr := h.db.WithTx(ctx, func(tx *gorm.DB) error { return step(ctx, tx) })
				h.metrics.IncFallbackStep(string(res.Kind), name, stepErr == nil)
				mu.Lock()
				defer mu.Unlock()
				if stepErr != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, stepErr))
					return
				}
				done[name] = true
			}(name, step)
		}
		wg.Wait()
		return errs
	})
	if err != nil {
		var failed []string
		for name := range steps {
			if !done[name] {
				failed = append(failed, name)
			}
		}
		sort.Strings(failed)
		return nil, h.exhausted(ctx, req, res, failed, err)
	}

	settled, err := h.reservations.FindByID(ctx, res.ID)
	if err != nil {
		settled = res
		apply(settled, t)
	}
	return &Result{Reservation: settled, Path: PathFallback}, nil
}

func (h *Handler) exhausted(ctx context.Context, req Request, res *models.Reservation, failed []string, cause error) error {
	kind := ""
	if res != nil {
		kind = string(res.Kind)
	}
	h.metrics.IncExhausted(kind)
	lctx := h.logg.WithFields(ctx, map[string]any{
		"reservation_id": req.ReservationID.String(),
		"outcome":        string(req.Outcome),
		"failed_steps":   failed,
	})
	h.logg.Error(lctx, "settlement fallback exhausted", cause)
	return pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "settlement requires manual reconciliation").
		WithDetails(map[string]any{
			"reservation_id": req.ReservationID.String(),
			"failed_steps":   failed,
		})
}

// lockForStep re-reads the reservation under a row lock inside a fallback
// step. A reservation another settlement already finished keeps that outcome.
func (h *Handler) lockForStep(ctx context.Context, tx *gorm.DB, id uuid.UUID, requested enums.SettlementOutcome) (*models.Reservation, enums.SettlementOutcome, error) {
	current, err := h.reservations.WithTx(tx).FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if current.IsTerminal() {
		return current, reservations.OutcomeOf(current), nil
	}
	return current, requested, nil
}

func (h *Handler) recordLedger(ctx context.Context, tx *gorm.DB, strategy locks.Strategy, res *models.Reservation, outcome enums.SettlementOutcome, paymentID string) error {
	if res.OrderID == nil {
		return nil
	}
	name, err := strategy.DescribeForLedger(ctx, tx, res)
	if err != nil {
		h.logg.Warn(h.logg.WithField(ctx, "reservation_id", res.ID.String()), "ledger description unavailable: "+err.Error())
		name = ""
	}
	return h.ledger.WithTx(tx).RecordOutcome(ctx, *res.OrderID, ledger.Outcome{
		Captured:  outcome == enums.OutcomePaid,
		PaymentID: paymentID,
		Name:      name,
		At:        h.now(),
	})
}

func apply(res *models.Reservation, t reservations.Transition) {
	res.Status = t.Status
	res.PaymentStatus = t.PaymentStatus
	res.PaymentDetails = t.PaymentDetails
	if t.ConfirmedAt != nil {
		res.ConfirmedAt = t.ConfirmedAt
	}
	if t.CancelledAt != nil {
		res.CancelledAt = t.CancelledAt
	}
}

func settledEvent(res *models.Reservation, req Request) outbox.DomainEvent {
	eventType := enums.EventReservationFailed
	switch res.Status {
	case enums.ReservationStatusConfirmed:
		eventType = enums.EventReservationConfirmed
	case enums.ReservationStatusCancelled:
		eventType = enums.EventReservationCancelled
	}
	data := outbox.ReservationSettled{
		ReservationID: res.ID,
		Kind:          string(res.Kind),
		UserID:        res.UserID,
		Status:        string(res.Status),
		PaymentStatus: string(res.PaymentStatus),
		Amount:        res.Amount.StringFixed(2),
		PaymentID:     req.PaymentID,
	}
	if res.OrderID != nil {
		data.OrderID = *res.OrderID
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReservation,
		AggregateID:   res.ID,
		Actor:         req.Actor,
		Data:          data,
	}
}
