package repo

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

type ctxKey struct{}

func TestBaseDBBindsContext(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), ctxKey{}, "request")
	bound := base.DB(ctx)
	require.NotNil(t, bound.Statement)
	assert.Equal(t, ctx, bound.Statement.Context)

	assert.Same(t, conn, base.DB(nil))
}

func TestBaseRebind(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := NewBase(conn)

	assert.Same(t, conn, base.Rebind(nil).db)
	tx := conn.Session(&gorm.Session{})
	assert.Same(t, tx, base.Rebind(tx).db)
}

func TestNotFound(t *testing.T) {
	assert.NoError(t, NotFound(nil, "slot"))

	err := NotFound(gorm.ErrRecordNotFound, "slot")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "slot not found", pkgerrors.As(err).Message())

	err = NotFound(errors.New("disk full"), "slot")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePersistence))
}

func TestTake(t *testing.T) {
	conn := dbtest.Open(t).DB()
	user := models.User{Email: "take@arena.test", Name: "Take", Role: enums.UserRoleUser, WalletBalance: decimal.NewFromInt(5)}
	require.NoError(t, conn.Create(&user).Error)

	got, err := Take[models.User](conn, "user", "email = ?", "take@arena.test")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = Take[models.User](conn, "user", "id = ?", uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
