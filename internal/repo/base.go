package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// Rebind returns a Base on tx, or b itself when tx is nil.
func (b Base) Rebind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// NotFound maps gorm.ErrRecordNotFound to a typed NOT_FOUND error and any
// other failure to PERSISTENCE_ERROR.
func NotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load "+what)
}

// Take loads the first row of T matching conds. A miss becomes NOT_FOUND
// naming what.
func Take[T any](db *gorm.DB, what string, conds ...any) (*T, error) {
	var row T
	if err := db.Take(&row, conds...).Error; err != nil {
		return nil, NotFound(err, what)
	}
	return &row, nil
}
