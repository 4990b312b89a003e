package payments

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/arena-backend/internal/reservations"
	"github.com/angelmondragon/arena-backend/internal/settlement"
	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

const defaultExpireBatch = 500

// ExpireInput selects stale reservations. FromDate and ToDate bound the
// booked date (YYYY-MM-DD) and are mostly useful for venue slots.
type ExpireInput struct {
	Kind      *enums.ReservationKind
	OlderThan time.Duration
	FromDate  *string
	ToDate    *string
	Limit     int
}

// ExpireReport summarizes one sweep.
type ExpireReport struct {
	Scanned int      `json:"scanned"`
	Paid    int      `json:"paid"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ExpireStale settles reservations that stayed Initiated past the cutoff. A
// wallet reservation whose ledger row exists was already paid for and is
// confirmed; everything else fails and releases its hold.
func (s *Service) ExpireStale(ctx context.Context, in ExpireInput) (*ExpireReport, error) {
	if in.OlderThan <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "older_than must be positive")
	}
	for _, d := range []*string{in.FromDate, in.ToDate} {
		if d == nil {
			continue
		}
		if _, err := time.Parse("2006-01-02", *d); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid date %q", *d))
		}
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultExpireBatch
	}

	stale, err := s.reservations.ListStale(ctx, reservations.StaleFilter{
		Kind:     in.Kind,
		Before:   s.now().Add(-in.OlderThan),
		FromDate: in.FromDate,
		ToDate:   in.ToDate,
		Limit:    limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list stale reservations")
	}

	report := &ExpireReport{Scanned: len(stale)}
	var errs error
	for i := range stale {
		res := &stale[i]
		outcome, err := s.expiryOutcome(ctx, res)
		if err == nil {
			_, err = s.settlement.Settle(ctx, settlement.Request{ReservationID: res.ID, Outcome: outcome})
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.ID, err))
			report.Errors = append(report.Errors, res.ID.String())
			continue
		}
		if outcome == enums.OutcomePaid {
			report.Paid++
		} else {
			report.Failed++
		}
	}

	if errs != nil {
		s.logg.Error(s.logg.WithField(ctx, "failed", len(report.Errors)), "stale reservation sweep incomplete", errs)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned": report.Scanned,
		"paid":    report.Paid,
		"failed":  report.Failed,
	}), "stale reservations expired")
	return report, nil
}

func (s *Service) expiryOutcome(ctx context.Context, res *models.Reservation) (enums.SettlementOutcome, error) {
	if res.PaymentDetails.Method != enums.PaymentMethodWallet || res.OrderID == nil {
		return enums.OutcomeFailed, nil
	}
	exists, err := s.ledger.Exists(ctx, *res.OrderID)
	if err != nil {
		return "", err
	}
	if exists {
		return enums.OutcomePaid, nil
	}
	return enums.OutcomeFailed, nil
}
