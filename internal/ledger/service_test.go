package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db/dbtest"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

type fakeRepository struct {
	createFn func(ctx context.Context, entry *models.LedgerEntry) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) FindByOrderID(ctx context.Context, orderID string) (*models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeRepository) MarkOutcome(ctx context.Context, orderID string, outcome Outcome) (bool, error) {
	return false, nil
}

func validInput() CreateRowInput {
	return CreateRowInput{
		OrderID:         "order_123",
		ReservationKind: enums.ReservationKindVenue,
		ReservationID:   uuid.New(),
		UserID:          uuid.New(),
		Amount:          decimal.RequireFromString("1180.00"),
		Currency:        "INR",
		Method:          enums.PaymentMethodGateway,
	}
}

func TestService_CreateRowLinksReservation(t *testing.T) {
	var created *models.LedgerEntry
	repo := &fakeRepository{createFn: func(ctx context.Context, entry *models.LedgerEntry) error {
		created = entry
		return nil
	}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	input := validInput()
	got, err := svc.CreateRow(context.Background(), input)
	require.NoError(t, err)
	require.Same(t, created, got)
	require.NotNil(t, got.BookingID)
	assert.Equal(t, input.ReservationID, *got.BookingID)
	assert.Nil(t, got.ShopOrderID)
	assert.Nil(t, got.Captured)

	input.ReservationKind = enums.ReservationKindShop
	got, err = svc.CreateRow(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, got.ShopOrderID)
	assert.Nil(t, got.BookingID)
}

func TestService_CreateRowValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*CreateRowInput)
	}{
		{"missing order", func(in *CreateRowInput) { in.OrderID = " " }},
		{"missing reservation", func(in *CreateRowInput) { in.ReservationID = uuid.Nil }},
		{"missing user", func(in *CreateRowInput) { in.UserID = uuid.Nil }},
		{"zero amount", func(in *CreateRowInput) { in.Amount = decimal.Zero }},
		{"bad method", func(in *CreateRowInput) { in.Method = "cash" }},
		{"bad kind", func(in *CreateRowInput) { in.ReservationKind = "membership" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.CreateRow(context.Background(), input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestService_CreateRowPersistenceError(t *testing.T) {
	svc, err := NewService(&fakeRepository{createFn: func(ctx context.Context, entry *models.LedgerEntry) error {
		return errors.New("connection reset")
	}})
	require.NoError(t, err)
	_, err = svc.CreateRow(context.Background(), validInput())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePersistence))
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestService_DuplicateOrderFailsLoudly(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)

	input := validInput()
	_, err = svc.CreateRow(context.Background(), input)
	require.NoError(t, err)

	input.ReservationID = uuid.New()
	_, err = svc.CreateRow(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal), "got %v", err)
}

func TestService_RecordOutcomeOnce(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)
	ctx := context.Background()

	input := validInput()
	_, err = svc.CreateRow(ctx, input)
	require.NoError(t, err)

	exists, err := svc.Exists(ctx, input.OrderID)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, svc.RecordOutcome(ctx, input.OrderID, Outcome{Captured: true, PaymentID: "pay_1", Name: "Arena One"}))
	require.NoError(t, svc.RecordOutcome(ctx, input.OrderID, Outcome{Captured: false}))

	var entry models.LedgerEntry
	require.NoError(t, client.DB().Take(&entry, "order_id = ?", input.OrderID).Error)
	require.NotNil(t, entry.Captured)
	assert.True(t, *entry.Captured)
	require.NotNil(t, entry.CapturedAt)
	require.NotNil(t, entry.GatewayPaymentID)
	assert.Equal(t, "pay_1", *entry.GatewayPaymentID)
	assert.Equal(t, "Arena One", entry.Name)

	err = svc.RecordOutcome(ctx, "order_missing", Outcome{Captured: false})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestService_ExistsFalseForUnknownOrder(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)
	exists, err := svc.Exists(context.Background(), "wallet_nope")
	require.NoError(t, err)
	assert.False(t, exists)
}
