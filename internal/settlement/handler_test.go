package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/internal/ledger"
	"github.com/angelmondragon/arena-backend/internal/locks"
	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/pkg/db"
	"github.com/angelmondragon/arena-backend/pkg/db/dbtest"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/metrics"
	"github.com/angelmondragon/arena-backend/pkg/outbox"
	"github.com/angelmondragon/arena-backend/pkg/retry"
)

// flakyStrategy fails ReleaseCommitted for the first failures calls.
type flakyStrategy struct {
	locks.Strategy
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStrategy) ReleaseCommitted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("slot table unavailable")
	}
	return f.Strategy.ReleaseCommitted(ctx, tx, res)
}

type harness struct {
	client   *db.Client
	repo     reservations.Repository
	ledger   ledger.Service
	handler  *Handler
	creator  *reservations.Creator
	facility models.Facility
	slots    []models.Slot
}

// failingLedger fails every RecordOutcome with err.
type failingLedger struct {
	ledger.Service
	err error
}

func (f *failingLedger) WithTx(tx *gorm.DB) ledger.Service {
	return &failingLedger{Service: f.Service.WithTx(tx), err: f.err}
}

func (f *failingLedger) RecordOutcome(context.Context, string, ledger.Outcome) error {
	return f.err
}

// racingRepository runs interleave once, right after the first plain FindByID
// read, to mimic another settlement landing between that read and the writes
// that follow it.
type racingRepository struct {
	reservations.Repository
	once       sync.Once
	interleave func()
}

func (r *racingRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	res, err := r.Repository.FindByID(ctx, id)
	if err == nil && r.interleave != nil {
		r.once.Do(r.interleave)
	}
	return res, err
}

func newHarness(t *testing.T, venue locks.Strategy, opts ...func(*Deps)) *harness {
	t.Helper()
	client := dbtest.Open(t)
	registry, err := locks.NewRegistry(venue, locks.NewEventSeats(logger.Nop(), nil))
	require.NoError(t, err)
	repo := reservations.NewRepository(client.DB())
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	require.NoError(t, err)

	deps := Deps{
		DB:           client,
		Reservations: repo,
		Locks:        registry,
		Ledger:       ledgerSvc,
		Outbox:       outbox.NewService(outbox.NewRepository(), logger.Nop()),
		Metrics:      metrics.NewSettlementMetrics(prometheus.NewRegistry()),
		Logger:       logger.Nop(),
		Policy:       retry.Policy{MaxAttempts: 3},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	handler, err := NewHandler(deps)
	require.NoError(t, err)
	creator, err := reservations.NewCreator(client, repo, registry, logger.Nop())
	require.NoError(t, err)

	h := &harness{client: client, repo: repo, ledger: ledgerSvc, handler: handler, creator: creator}
	h.seedSlots(t)
	return h
}

func (h *harness) seedSlots(t *testing.T) {
	conn := h.client.DB()
	venue := models.Venue{PartnerID: uuid.New(), Name: "Arena One"}
	require.NoError(t, conn.Create(&venue).Error)
	h.facility = models.Facility{VenueID: venue.ID, Name: "Court 1"}
	require.NoError(t, conn.Create(&h.facility).Error)
	activity := models.Activity{Name: "football"}
	require.NoError(t, conn.Create(&activity).Error)
	for _, times := range [][2]string{{"10:00", "10:30"}, {"10:30", "11:00"}} {
		slot := models.Slot{
			FacilityID:   h.facility.ID,
			ActivityID:   activity.ID,
			Date:         "2026-11-01",
			StartTime:    times[0],
			EndTime:      times[1],
			Price:        decimal.NewFromInt(500),
			Availability: enums.SlotAvailable,
		}
		require.NoError(t, conn.Create(&slot).Error)
		h.slots = append(h.slots, slot)
	}
}

// orderedReservation creates a venue reservation holding both slots with a
// gateway order and its ledger row.
func (h *harness) orderedReservation(t *testing.T) *models.Reservation {
	t.Helper()
	ctx := context.Background()
	res := &models.Reservation{
		Kind:   enums.ReservationKindVenue,
		UserID: uuid.New(),
		Payload: models.ReservationPayload{Venue: &models.VenuePayload{
			VenueID:    h.facility.VenueID,
			FacilityID: h.facility.ID,
			SlotIDs:    []uuid.UUID{h.slots[0].ID, h.slots[1].ID},
			Date:       "2026-11-01",
			StartTime:  "10:00",
			EndTime:    "11:00",
		}},
		Amount:         decimal.NewFromInt(1180),
		PaymentDetails: models.PaymentDetails{Method: enums.PaymentMethodGateway},
	}
	require.NoError(t, h.creator.Create(ctx, res))

	orderID := "order_" + uuid.NewString()
	require.NoError(t, h.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := h.ledger.WithTx(tx).CreateRow(ctx, ledger.CreateRowInput{
			OrderID:         orderID,
			ReservationKind: res.Kind,
			ReservationID:   res.ID,
			UserID:          res.UserID,
			Amount:          res.Amount,
			Currency:        "INR",
			Method:          enums.PaymentMethodGateway,
		}); err != nil {
			return err
		}
		details := res.PaymentDetails
		details.OrderID = orderID
		ok, err := h.repo.WithTx(tx).SetOrder(ctx, res.ID, orderID, details)
		if err != nil {
			return err
		}
		require.True(t, ok)
		return nil
	}))
	res.OrderID = &orderID
	return res
}

func (h *harness) slotStates(t *testing.T) []enums.SlotAvailability {
	var slots []models.Slot
	require.NoError(t, h.client.DB().Order("start_time").Find(&slots).Error)
	out := make([]enums.SlotAvailability, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Availability)
	}
	return out
}

func (h *harness) ledgerRow(t *testing.T, orderID string) models.LedgerEntry {
	var entry models.LedgerEntry
	require.NoError(t, h.client.DB().Take(&entry, "order_id = ?", orderID).Error)
	return entry
}

func (h *harness) events(t *testing.T, id uuid.UUID) []models.OutboxEvent {
	var rows []models.OutboxEvent
	require.NoError(t, h.client.DB().Where("aggregate_id = ?", id).Find(&rows).Error)
	return rows
}

func TestSettle_PaidCommitsEverything(t *testing.T) {
	h := newHarness(t, locks.NewVenueSlots())
	res := h.orderedReservation(t)

	result, err := h.handler.Settle(context.Background(), Request{ReservationID: res.ID, Outcome: enums.OutcomePaid, PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.Equal(t, PathPrimary, result.Path)
	assert.Equal(t, enums.ReservationStatusConfirmed, result.Reservation.Status)
	assert.Equal(t, enums.PaymentStatusPaid, result.Reservation.PaymentStatus)

	assert.Equal(t, []enums.SlotAvailability{enums.SlotBooked, enums.SlotBooked}, h.slotStates(t))

	entry := h.ledgerRow(t, *res.OrderID)
	require.NotNil(t, entry.Captured)
	assert.True(t, *entry.Captured)
	assert.Equal(t, "Arena One - Court 1 (2026-11-01 10:00-11:00)", entry.Name)
	require.NotNil(t, entry.GatewayPaymentID)
	assert.Equal(t, "pay_1", *entry.GatewayPaymentID)

	events := h.events(t, res.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventReservationConfirmed, events[0].EventType)
}

func TestSettle_IsIdempotent(t *testing.T) {
	h := newHarness(t, locks.NewVenueSlots())
	res := h.orderedReservation(t)
	ctx := context.Background()

	_, err := h.handler.Settle(ctx, Request{ReservationID: res.ID, Outcome: enums.OutcomePaid, PaymentID: "pay_1"})
	require.NoError(t, err)

	result, err := h.handler.Settle(ctx, Request{ReservationID: res.ID, Outcome: enums.OutcomeFailed})
	require.NoError(t, err)
	assert.Equal(t, PathNoop, result.Path)
	assert.Equal(t, enums.ReservationStatusConfirmed, result.Reservation.Status)
	assert.Equal(t, []enums.SlotAvailability{enums.SlotBooked, enums.SlotBooked}, h.slotStates(t))
	assert.Len(t, h.events(t, res.ID), 1)
}

func TestSettle_FailedRevertsHold(t *testing.T) {
	h := newHarness(t, locks.NewVenueSlots())
	res := h.orderedReservation(t)

	result, err := h.handler.Settle(context.Background(), Request{ReservationID: res.ID, Outcome: enums.OutcomeFailed})
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusFailed, result.Reservation.Status)
	assert.Equal(t, enums.PaymentStatusFailed, result.Reservation.PaymentStatus)
	assert.Equal(t, []enums.SlotAvailability{enums.SlotAvailable, enums.SlotAvailable}, h.slotStates(t))

	entry := h.ledgerRow(t, *res.OrderID)
	require.NotNil(t, entry.Captured)
	assert.False(t, *entry.Captured)

	events := h.events(t, res.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventReservationFailed, events[0].EventType)
}

func TestSettle_CancelledWithoutOrderSkipsLedger(t *testing.T) {
	h := newHarness(t, locks.NewVenueSlots())
	ctx := context.Background()
	res := &models.Reservation{
		Kind:   enums.ReservationKindVenue,
		UserID: uuid.New(),
		Payload: models.ReservationPayload{Venue: &models.VenuePayload{
			FacilityID: h.facility.ID,
			SlotIDs:    []uuid.UUID{h.slots[0].ID},
			Date:       "2026-11-01",
		}},
		Amount:         decimal.NewFromInt(590),
		PaymentDetails: models.PaymentDetails{Method: enums.PaymentMethodWallet},
	}
	require.NoError(t, h.creator.Create(ctx, res))

	result, err := h.handler.Settle(ctx, Request{ReservationID: res.ID, Outcome: enums.OutcomeCancelled})
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusCancelled, result.Reservation.Status)
	assert.NotNil(t, result.Reservation.CancelledAt)
	assert.Equal(t, []enums.SlotAvailability{enums.SlotAvailable, enums.SlotAvailable}, h.slotStates(t))

	var ledgerRows int64
	require.NoError(t, h.client.DB().Model(&models.LedgerEntry{}).Count(&ledgerRows).Error)
	assert.Zero(t, ledgerRows)
}

func TestSettle_FallbackCompletesEveryStep(t *testing.T) {
	flaky := &flakyStrategy{Strategy: locks.NewVenueSlots(), failures: 3}
	h := newHarness(t, flaky)
	res := h.orderedReservation(t)

	result, err := h.handler.Settle(context.Background(), Request{ReservationID: res.ID, Outcome: enums.OutcomePaid, PaymentID: "pay_9"})
	require.NoError(t, err)
	assert.Equal(t, PathFallback, result.Path)
	assert.Equal(t, enums.ReservationStatusConfirmed, result.Reservation.Status)
	assert.Equal(t, enums.PaymentStatusPaid, result.Reservation.PaymentStatus)
	assert.Equal(t, []enums.SlotAvailability{enums.SlotBooked, enums.SlotBooked}, h.slotStates(t))

	entry := h.ledgerRow(t, *res.OrderID)
	require.NotNil(t, entry.Captured)
	assert.True(t, *entry.Captured)

	events := h.events(t, res.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventReservationConfirmed, events[0].EventType)
}

func TestSettle_ExhaustedFallbackNeedsReconciliation(t *testing.T) {
	flaky := &flakyStrategy{Strategy: locks.NewVenueSlots(), failures: 100}
	h := newHarness(t, flaky)
	res := h.orderedReservation(t)

	_, err := h.handler.Settle(context.Background(), Request{ReservationID: res.ID, Outcome: enums.OutcomePaid})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInternal, typed.Code())
	assert.Equal(t, "settlement requires manual reconciliation", typed.Message())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{StepRelease}, details["failed_steps"])

	loaded, err := h.repo.FindByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusConfirmed, loaded.Status)
	assert.Equal(t, []enums.SlotAvailability{enums.SlotLocked, enums.SlotLocked}, h.slotStates(t))
}

func TestSettle_FallbackReportsLedgerStepAlone(t *testing.T) {
	h := newHarness(t, locks.NewVenueSlots(), func(d *Deps) {
		d.Ledger = &failingLedger{Service: d.Ledger, err: errors.New("ledger table unavailable")}
	})
	res := h.orderedReservation(t)

	_, err := h.handler.Settle(context.Background(), Request{ReservationID: res.ID, Outcome: enums.OutcomePaid, PaymentID: "pay_3"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{StepLedger}, details["failed_steps"])

	loaded, err := h.repo.FindByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusConfirmed, loaded.Status)
	assert.Equal(t, enums.PaymentStatusPaid, loaded.PaymentStatus)
	assert.Equal(t, []enums.SlotAvailability{enums.SlotBooked, enums.SlotBooked}, h.slotStates(t))

	entry := h.ledgerRow(t, *res.OrderID)
	assert.Nil(t, entry.Captured)
	events := h.events(t, res.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventReservationConfirmed, events[0].EventType)
}

func TestSettle_FallbackFollowsOutcomeSettledMeanwhile(t *testing.T) {
	flaky := &flakyStrategy{Strategy: locks.NewVenueSlots(), failures: 3}
	racing := &racingRepository{}
	h := newHarness(t, flaky, func(d *Deps) {
		racing.Repository = d.Reservations
		d.Reservations = racing
	})
	res := h.orderedReservation(t)
	ctx := context.Background()

	racing.interleave = func() {
		expired, err := h.handler.Settle(ctx, Request{ReservationID: res.ID, Outcome: enums.OutcomeFailed})
		require.NoError(t, err)
		require.Equal(t, PathPrimary, expired.Path)
	}

	result, err := h.handler.Settle(ctx, Request{ReservationID: res.ID, Outcome: enums.OutcomePaid, PaymentID: "pay_5"})
	require.NoError(t, err)
	assert.Equal(t, PathFallback, result.Path)
	assert.Equal(t, enums.ReservationStatusFailed, result.Reservation.Status)
	assert.Equal(t, enums.PaymentStatusFailed, result.Reservation.PaymentStatus)
	assert.Equal(t, []enums.SlotAvailability{enums.SlotAvailable, enums.SlotAvailable}, h.slotStates(t))

	entry := h.ledgerRow(t, *res.OrderID)
	require.NotNil(t, entry.Captured)
	assert.False(t, *entry.Captured)

	events := h.events(t, res.ID)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventReservationFailed, events[0].EventType)
}

func TestSettle_Validation(t *testing.T) {
	h := newHarness(t, locks.NewVenueSlots())
	ctx := context.Background()

	_, err := h.handler.Settle(ctx, Request{Outcome: enums.OutcomePaid})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.handler.Settle(ctx, Request{ReservationID: uuid.New(), Outcome: "refunded"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.handler.Settle(ctx, Request{ReservationID: uuid.New(), Outcome: enums.OutcomePaid})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestNewHandlerRequiresDeps(t *testing.T) {
	_, err := NewHandler(Deps{})
	assert.Error(t, err)
}
