// Package locks holds the provisional holds placed on slots, event seats and
// product inventory between reservation creation and payment outcome.
package locks

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// Strategy is the per-domain lock contract. Every method runs against the
// handle it is given, which is a transaction except for Check. Release
// methods are idempotent: re-running one after it landed changes nothing.
type Strategy interface {
	Kind() enums.ReservationKind
	// Check verifies the resource can be held without writing anything.
	Check(ctx context.Context, db *gorm.DB, res *models.Reservation) error
	// Acquire holds the resource for res. It fails with a conflict when the
	// resource was taken since Check.
	Acquire(ctx context.Context, tx *gorm.DB, res *models.Reservation) error
	ReleaseCommitted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error
	ReleaseReverted(ctx context.Context, tx *gorm.DB, res *models.Reservation) error
	// DescribeForLedger resolves the display name stored on the ledger row.
	DescribeForLedger(ctx context.Context, tx *gorm.DB, res *models.Reservation) (string, error)
}

// Registry resolves the strategy for a reservation kind.
type Registry struct {
	byKind map[enums.ReservationKind]Strategy
}

func NewRegistry(strategies ...Strategy) (*Registry, error) {
	reg := &Registry{byKind: make(map[enums.ReservationKind]Strategy, len(strategies))}
	for _, s := range strategies {
		if s == nil {
			return nil, fmt.Errorf("nil lock strategy")
		}
		if _, dup := reg.byKind[s.Kind()]; dup {
			return nil, fmt.Errorf("duplicate lock strategy for %s", s.Kind())
		}
		reg.byKind[s.Kind()] = s
	}
	return reg, nil
}

func (r *Registry) For(kind enums.ReservationKind) (Strategy, error) {
	s, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no lock strategy for %q", kind)
	}
	return s, nil
}

// Release dispatches to the committed or reverted release.
func Release(ctx context.Context, s Strategy, tx *gorm.DB, res *models.Reservation, committed bool) error {
	if committed {
		return s.ReleaseCommitted(ctx, tx, res)
	}
	return s.ReleaseReverted(ctx, tx, res)
}
