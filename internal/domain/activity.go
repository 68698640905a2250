package domain

import "github.com/shopspring/decimal"

// PaymentType is the closed set of ways an activity's cost is handled.
// Only PaymentTypePrepaid and PaymentTypePrepaidPerPerson drive ledger
// mutation; everything else is informational.
type PaymentType string

const (
	PaymentTypeFree             PaymentType = "free"
	PaymentTypeIncluded         PaymentType = "included"
	PaymentTypePaymentOnsite    PaymentType = "payment_onsite"
	PaymentTypePayInAdvance     PaymentType = "pay_in_advance"
	PaymentTypePrepaid          PaymentType = "prepaid"
	PaymentTypePrepaidPerPerson PaymentType = "prepaid_per_person"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeFree, PaymentTypeIncluded, PaymentTypePaymentOnsite,
		PaymentTypePayInAdvance, PaymentTypePrepaid, PaymentTypePrepaidPerPerson:
		return true
	}
	return false
}

// DrivesLedger reports whether RSVP changes on an activity of this type
// create or update expenses.
func (t PaymentType) DrivesLedger() bool {
	return t == PaymentTypePrepaid || t == PaymentTypePrepaidPerPerson
}

// Activity is read from the trip-planning side of the system. The
// ledger only cares about who created it, how it is paid for, and what
// it costs.
type Activity struct {
	ID          int32           `json:"id"`
	TripID      int32           `json:"trip_id"`
	CreatedBy   int32           `json:"created_by"`
	Title       string          `json:"title"`
	PaymentType PaymentType     `json:"payment_type"`
	Cost        decimal.Decimal `json:"cost"`
}

type RSVPStatus string

const (
	RSVPStatusGoing    RSVPStatus = "GOING"
	RSVPStatusNotGoing RSVPStatus = "NOT_GOING"
)

func (s RSVPStatus) Valid() bool {
	return s == RSVPStatusGoing || s == RSVPStatusNotGoing
}

type ActivityRSVP struct {
	ActivityID int32      `json:"activity_id"`
	UserID     int32      `json:"user_id"`
	Status     RSVPStatus `json:"status"`
}
