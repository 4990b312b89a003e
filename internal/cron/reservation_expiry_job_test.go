package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/arena-backend/internal/payments"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

type fakeExpirer struct {
	input  payments.ExpireInput
	report *payments.ExpireReport
	err    error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, in payments.ExpireInput) (*payments.ExpireReport, error) {
	f.input = in
	return f.report, f.err
}

func TestReservationExpiryJobUsesCutoff(t *testing.T) {
	expirer := &fakeExpirer{report: &payments.ExpireReport{Scanned: 3, Paid: 1, Failed: 2}}
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{
		Logger:     logger.Nop(),
		Expirer:    expirer,
		StaleAfter: 45 * time.Minute,
		BatchSize:  50,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.input.OlderThan != 45*time.Minute || expirer.input.Limit != 50 {
		t.Fatalf("unexpected input %+v", expirer.input)
	}
	if expirer.input.Kind != nil {
		t.Fatalf("sweep must cover every kind")
	}
}

func TestReservationExpiryJobDefaultsAndFailures(t *testing.T) {
	expirer := &fakeExpirer{report: &payments.ExpireReport{Scanned: 1, Errors: []string{"r1"}}}
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{Logger: logger.Nop(), Expirer: expirer})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error for unsettled reservations")
	}
	if expirer.input.OlderThan != defaultStaleAfter {
		t.Fatalf("expected default cutoff, got %s", expirer.input.OlderThan)
	}

	expirer.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if _, err := NewReservationExpiryJob(ReservationExpiryJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing expirer error")
	}
}
