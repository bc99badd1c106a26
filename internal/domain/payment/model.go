package payment

import (
	"strings"
	"time"
)

// Amount is a quantity of the settlement currency in minor units.
type Amount int64

// SystemAccountPrefix marks ledger accounts owned by the service itself.
// No caller identity may carry it.
const SystemAccountPrefix = "sys:"

const (
	// TreasuryAccount accrues mint proceeds and resale fees until the administrator withdraws them.
	TreasuryAccount = SystemAccountPrefix + "treasury"
	// TransportAccount records fees paid to the routing transport.
	TransportAccount = SystemAccountPrefix + "transport"
)

func IsSystemAccount(account string) bool {
	return strings.HasPrefix(account, SystemAccountPrefix)
}

const (
	KindMintProceeds   = "mint_proceeds"
	KindMintRefund     = "mint_refund"
	KindSaleProceeds   = "sale_proceeds"
	KindPlatformFee    = "platform_fee"
	KindPurchaseRefund = "purchase_refund"
	KindTransportFee   = "transport_fee"
	KindRelocateRefund = "relocation_refund"
	KindWithdrawal     = "withdrawal"
)

// FeeNumerator and FeeDenominator define the 2.5% platform fee on resales.
const (
	FeeNumerator   = 25
	FeeDenominator = 1000
)

// PlatformFee returns the fee taken from a sale price, truncated toward zero.
func PlatformFee(price Amount) Amount {
	return price * FeeNumerator / FeeDenominator
}

// Entry is one append-only movement on an account. Debits carry a negative Amount.
type Entry struct {
	ID       string    `json:"id"`
	Account  string    `json:"account"`
	Amount   Amount    `json:"amount"`
	Kind     string    `json:"kind"`
	TicketID *uint64   `json:"ticket_id,omitempty"`
	At       time.Time `json:"at"`
}
