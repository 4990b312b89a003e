package enums

// WalletTransactionType classifies wallet balance movements.
type WalletTransactionType string

const (
	WalletDebit  WalletTransactionType = "debit"
	WalletCredit WalletTransactionType = "credit"
)

var validWalletTransactionTypes = values[WalletTransactionType]{
	WalletDebit,
	WalletCredit,
}

// String implements fmt.Stringer.
func (w WalletTransactionType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTransactionType.
func (w WalletTransactionType) IsValid() bool {
	return validWalletTransactionTypes.has(w)
}
