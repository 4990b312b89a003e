package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
	"github.com/angelmondragon/arena-backend/pkg/types"
)

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"arena": "north"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decode[struct {
		Data map[string]string `json:"data"`
	}](t, w)
	assert.Equal(t, "north", body.Data["arena"])
}

func TestWriteList(t *testing.T) {
	w := httptest.NewRecorder()
	WriteList(w, []string{"a", "b"}, 2, 20)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Data []string       `json:"data"`
		Meta types.ListMeta `json:"meta"`
	}](t, w)
	assert.Equal(t, []string{"a", "b"}, body.Data)
	assert.Equal(t, types.ListMeta{Count: 2, Limit: 20}, body.Meta)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		{
			name:        "validation exposes message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "demo"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "bad input",
			wantDetails: true,
		},
		{
			name:    "payment failure hides internal message",
			err:     pkgerrors.Wrap(pkgerrors.CodePaymentFailed, errors.New("hmac mismatch"), "signature rejected"),
			status:  http.StatusPaymentRequired,
			code:    pkgerrors.CodePaymentFailed,
			message: "payment verification failed",
		},
		{
			name:    "insufficient funds uses public message",
			err:     pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet 42 short by 10").WithDetails(map[string]any{"short": 10}),
			status:  http.StatusPaymentRequired,
			code:    pkgerrors.CodeInsufficientFunds,
			message: "insufficient wallet balance",
		},
		{
			name:    "untyped error becomes internal",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		{
			name:    "nil error becomes internal",
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decode[types.ErrorEnvelope](t, w)
			assert.Equal(t, string(tt.code), body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
			if tt.wantDetails {
				assert.NotNil(t, body.Error.Details)
			} else {
				assert.Nil(t, body.Error.Details)
			}
		})
	}
}

func TestWriteErrorLogsDumpAndSelectedDetails(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf, Format: logger.FormatJSON})

	err := pkgerrors.New(pkgerrors.CodeConflict, "already settled").
		WithDetails(map[string]any{"reservation_id": "r-1", "secret": "x"})
	WriteError(context.Background(), logg, httptest.NewRecorder(), err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "request.error", entry["message"])
	assert.Equal(t, "CONFLICT", entry["error_code"])
	assert.Equal(t, "r-1", entry["reservation_id"])
	assert.NotContains(t, entry, "secret")
	assert.NotContains(t, entry, "pg_code")
}
