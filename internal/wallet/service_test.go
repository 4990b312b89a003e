package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/arena-backend/pkg/db/dbtest"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

func TestDeductAndAddCredits(t *testing.T) {
	client := dbtest.Open(t)
	user := models.User{Email: "a@example.com", Name: "A", Role: enums.UserRoleUser, WalletBalance: decimal.NewFromInt(2000)}
	require.NoError(t, client.DB().Create(&user).Error)

	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)
	ctx := context.Background()
	resID := uuid.New()

	require.NoError(t, svc.DeductCredits(ctx, user.ID, decimal.RequireFromString("1180.00"), &resID))
	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(820)), "balance %s", balance)

	err = svc.DeductCredits(ctx, user.ID, decimal.NewFromInt(1000), &resID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds))
	balance, err = svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(820)))

	require.NoError(t, svc.AddCredits(ctx, user.ID, decimal.NewFromInt(180), &resID, "refund"))
	balance, err = svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)))

	var trail []models.WalletTransaction
	require.NoError(t, client.DB().Where("user_id = ?", user.ID).Order("created_at ASC").Find(&trail).Error)
	require.Len(t, trail, 2)
	assert.Equal(t, enums.WalletDebit, trail[0].Type)
	assert.Equal(t, enums.WalletCredit, trail[1].Type)
}

func TestCreditsRejectNonPositive(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t).DB()))
	require.NoError(t, err)
	err = svc.DeductCredits(context.Background(), uuid.New(), decimal.Zero, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	err = svc.AddCredits(context.Background(), uuid.New(), decimal.NewFromInt(10), nil, "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestTopUpsCreditReturnsBalance(t *testing.T) {
	client := dbtest.Open(t)
	user := models.User{Email: "b@example.com", Name: "B", Role: enums.UserRoleUser, WalletBalance: decimal.NewFromInt(50)}
	require.NoError(t, client.DB().Create(&user).Error)

	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)
	topups, err := NewTopUps(client, svc)
	require.NoError(t, err)
	ctx := context.Background()

	balance, err := topups.Credit(ctx, user.ID, decimal.RequireFromString("149.50"), "promo")
	require.NoError(t, err)
	assert.Equal(t, "199.50", balance.StringFixed(2))

	var trail []models.WalletTransaction
	require.NoError(t, client.DB().Where("user_id = ?", user.ID).Find(&trail).Error)
	require.Len(t, trail, 1)
	assert.Equal(t, "promo", trail[0].Reason)
	assert.Nil(t, trail[0].ReservationID)

	_, err = topups.Credit(ctx, uuid.New(), decimal.NewFromInt(10), "promo")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	var count int64
	require.NoError(t, client.DB().Model(&models.WalletTransaction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
