package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ReservationSettled is the data of every reservation terminal event.
type ReservationSettled struct {
	ReservationID uuid.UUID `json:"reservationId"`
	Kind          string    `json:"kind"`
	UserID        uuid.UUID `json:"userId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	Amount        string    `json:"amount"`
	OrderID       string    `json:"orderId,omitempty"`
	PaymentID     string    `json:"paymentId,omitempty"`
}
