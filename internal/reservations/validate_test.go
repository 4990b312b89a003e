package reservations

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

func TestParseClock(t *testing.T) {
	m, err := ParseClock("start_time", "10:30")
	require.NoError(t, err)
	assert.Equal(t, 630, m)

	m, err = ParseClock("start_time", "23:59:59")
	require.NoError(t, err)
	assert.Equal(t, 1439, m)

	for _, bad := range []string{"24:00", "9:00", "10:60", "10:00:", "ten"} {
		_, err := ParseClock("start_time", bad)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), bad)
	}
}

func TestParseDateAndMethod(t *testing.T) {
	_, err := ParseDate("date", "2026-11-01")
	assert.NoError(t, err)
	_, err = ParseDate("date", "01-11-2026")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	assert.NoError(t, RequireMethod(enums.PaymentMethodWallet))
	assert.True(t, pkgerrors.HasCode(RequireMethod("cash"), pkgerrors.CodeValidation))
}

func TestRequireDistinct(t *testing.T) {
	id := uuid.New()
	assert.NoError(t, RequireDistinct("slot_ids", []uuid.UUID{id, uuid.New()}))
	assert.Error(t, RequireDistinct("slot_ids", nil))
	assert.Error(t, RequireDistinct("slot_ids", []uuid.UUID{id, id}))
	assert.Error(t, RequireDistinct("slot_ids", []uuid.UUID{uuid.Nil}))
}
