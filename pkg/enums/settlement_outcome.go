package enums

// SettlementOutcome is the result a reservation is settled with.
type SettlementOutcome string

const (
	OutcomePaid      SettlementOutcome = "paid"
	OutcomeFailed    SettlementOutcome = "failed"
	OutcomeCancelled SettlementOutcome = "cancelled"
)

var validSettlementOutcomes = values[SettlementOutcome]{
	OutcomePaid,
	OutcomeFailed,
	OutcomeCancelled,
}

// String implements fmt.Stringer.
func (s SettlementOutcome) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementOutcome.
func (s SettlementOutcome) IsValid() bool {
	return validSettlementOutcomes.has(s)
}
