package reservations

import (
	"time"

	"github.com/angelmondragon/arena-backend/pkg/db/models"
	"github.com/angelmondragon/arena-backend/pkg/enums"
)

// Transition is the terminal state written for a settlement outcome.
type Transition struct {
	Status         enums.ReservationStatus
	PaymentStatus  enums.PaymentStatus
	PaymentDetails models.PaymentDetails
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
}

// TransitionFor derives the terminal state of res for outcome. Paid implies
// Confirmed; Failed and Cancelled both fail the payment.
func TransitionFor(res *models.Reservation, outcome enums.SettlementOutcome, paymentID string, now time.Time) Transition {
	details := res.PaymentDetails
	details.UpdatedAt = now
	t := Transition{PaymentDetails: details}

	switch outcome {
	case enums.OutcomePaid:
		t.Status = enums.ReservationStatusConfirmed
		t.PaymentStatus = enums.PaymentStatusPaid
		t.ConfirmedAt = &now
		t.PaymentDetails.Captured = true
		t.PaymentDetails.PaidAt = &now
		if paymentID != "" {
			t.PaymentDetails.GatewayPaymentID = paymentID
		}
	case enums.OutcomeCancelled:
		t.Status = enums.ReservationStatusCancelled
		t.PaymentStatus = enums.PaymentStatusFailed
		t.CancelledAt = &now
		t.PaymentDetails.Captured = false
	default:
		t.Status = enums.ReservationStatusFailed
		t.PaymentStatus = enums.PaymentStatusFailed
		t.PaymentDetails.Captured = false
		if paymentID != "" {
			t.PaymentDetails.GatewayPaymentID = paymentID
		}
	}
	return t
}

// OutcomeOf maps an already terminal reservation back to its outcome.
func OutcomeOf(res *models.Reservation) enums.SettlementOutcome {
	switch {
	case res.PaymentStatus == enums.PaymentStatusPaid:
		return enums.OutcomePaid
	case res.Status == enums.ReservationStatusCancelled:
		return enums.OutcomeCancelled
	default:
		return enums.OutcomeFailed
	}
}
