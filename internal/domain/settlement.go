package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusConfirmed SettlementStatus = "CONFIRMED"
	SettlementStatusRejected  SettlementStatus = "REJECTED"
)

// Settlement records a real-world payment declared by the payer to
// resolve part of a net balance. Only the payee can confirm or reject
// it. Rejected settlements are kept forever; their creation time is
// the cutoff the integrity guard uses to protect historical expenses.
type Settlement struct {
	ID            int32            `json:"id"`
	TripID        int32            `json:"trip_id"`
	PayerID       int32            `json:"payer_id"`
	PayeeID       int32            `json:"payee_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        SettlementStatus `json:"status"`
	PaymentMethod string           `json:"payment_method,omitempty"` // hint only, no gateway integration
	PaymentLink   string           `json:"payment_link,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ConfirmedAt   *time.Time       `json:"confirmed_at,omitempty"`
	RejectedAt    *time.Time       `json:"rejected_at,omitempty"`
}

// IsTerminal reports whether the settlement can no longer transition.
func (s *Settlement) IsTerminal() bool {
	return s.Status == SettlementStatusConfirmed || s.Status == SettlementStatusRejected
}
