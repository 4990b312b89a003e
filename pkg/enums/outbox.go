package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateReservation OutboxAggregateType = "reservation"
)

var validAggregateTypes = values[OutboxAggregateType]{
	AggregateReservation,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return validAggregateTypes.has(a)
}

// OutboxEventType names a domain event emitted via the outbox.
type OutboxEventType string

const (
	EventReservationConfirmed OutboxEventType = "reservation_confirmed"
	EventReservationFailed    OutboxEventType = "reservation_failed"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
)

var validOutboxEventTypes = values[OutboxEventType]{
	EventReservationConfirmed,
	EventReservationFailed,
	EventReservationCancelled,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return validOutboxEventTypes.has(e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return validOutboxEventTypes.parse("outbox event type", value)
}
