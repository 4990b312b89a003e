package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code Code
		want Metadata
	}{
		{CodeValidation, Metadata{HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true}},
		{CodeUnauthorized, Metadata{HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true}},
		{CodeIdempotency, Metadata{HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true, ExposeMessage: true}},
		{CodeRateLimit, Metadata{HTTPStatus: http.StatusTooManyRequests, PublicMessage: "too many requests", ExposeMessage: true}},
		{CodeInsufficientFunds, Metadata{HTTPStatus: http.StatusPaymentRequired, PublicMessage: "insufficient wallet balance"}},
		{CodePaymentFailed, Metadata{HTTPStatus: http.StatusPaymentRequired, PublicMessage: "payment verification failed"}},
		{CodeGatewayConfig, Metadata{HTTPStatus: http.StatusInternalServerError, PublicMessage: "payment gateway not configured"}},
		{CodePersistence, Metadata{HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true}},
		{CodeDependency, Metadata{HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true}},
		{"SOMETHING_UNKNOWN", Metadata{HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true}},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MetadataFor(tt.code))
		})
	}
}

func TestWrap(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "slot taken")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Equal(t, "CONFLICT: slot taken: boom", wrapped.Error())

	bare := Wrap(CodeNotFound, nil, "missing")
	assert.Equal(t, "NOT_FOUND: missing", bare.Error())
	assert.NoError(t, bare.Unwrap())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.Details())
	assert.Nil(t, e.WithDetails("x"))
	assert.Empty(t, e.Error())
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("create order: %w", New(CodeInsufficientFunds, "balance too low"))

	assert.True(t, HasCode(err, CodeInsufficientFunds))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(nil, CodeConflict))

	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "balance too low", typed.Message())
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(stdErrors.New("database is locked")), "untyped errors are retried")
	assert.False(t, IsRetryable(New(CodeConflict, "already processed")))
	assert.True(t, IsRetryable(Wrap(CodePersistence, stdErrors.New("deadlock"), "update reservation")))
}

func TestDumpPgx(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_order_id_key", TableName: "ledger_entries"}
	dump := Dump(Wrap(CodePersistence, fmt.Errorf("insert ledger row: %w", pg), "record ledger"))

	assert.Equal(t, CodePersistence, dump.Code)
	assert.True(t, dump.Retryable)
	assert.Equal(t, "23505", dump.PGCode)
	assert.Equal(t, "ledger_entries_order_id_key", dump.PGConstraint)
	assert.Equal(t, "ledger_entries", dump.PGTable)
	assert.Len(t, dump.Chain, 3)
}

func TestDumpPQAndSQLite(t *testing.T) {
	pqDump := Dump(fmt.Errorf("lock wallet: %w", &pq.Error{Code: "40P01", Message: "deadlock detected", Table: "wallets"}))
	assert.Equal(t, "40P01", pqDump.PGCode)
	assert.Equal(t, "deadlock detected", pqDump.PGMessage)
	assert.Equal(t, "wallets", pqDump.PGTable)
	assert.Empty(t, pqDump.Code)

	lite := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	liteDump := Dump(fmt.Errorf("create: %w", lite))
	assert.NotEmpty(t, liteDump.SQLiteCode)
	assert.Empty(t, liteDump.PGCode)

	assert.Equal(t, ErrorDump{}, Dump(nil))
}

func TestDumpFieldsOmitsEmptyDriverValues(t *testing.T) {
	fields := Dump(New(CodeNotFound, "no reservation")).Fields()

	assert.Equal(t, CodeNotFound, fields["error_code"])
	assert.Equal(t, "NOT_FOUND: no reservation", fields["error_top"])
	assert.NotContains(t, fields, "pg_code")
	assert.NotContains(t, fields, "sqlite_code")

	withPG := Dump(&pgconn.PgError{Code: "23505"}).Fields()
	assert.Equal(t, "23505", withPG["pg_code"])
}
