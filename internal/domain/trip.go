package domain

import "time"

// Removal policy versions. Trips created before the balance split keep
// the legacy behavior so their removal semantics never silently change.
const (
	RemovalPolicyLegacy int16 = 1 // any nonzero total balance blocks removal
	RemovalPolicySplit  int16 = 2 // manual and prepaid-organizer components checked independently
)

type Trip struct {
	ID                   int32     `json:"id"`
	Name                 string    `json:"name"`
	Currency             string    `json:"currency"`
	RemovalPolicyVersion int16     `json:"removal_policy_version"`
	CreatedAt            time.Time `json:"created_at"`
}

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "ACTIVE"
	MemberStatusRemoved MemberStatus = "REMOVED"
)

// Member is trip membership as the ledger reads it. Membership CRUD
// itself lives outside the ledger; removal is gated through the
// integrity guard's eligibility analysis.
type Member struct {
	TripID     int32        `json:"trip_id"`
	UserID     int32        `json:"user_id"`
	Email      string       `json:"email,omitempty"`
	IsAdmin    bool         `json:"is_admin"`
	Status     MemberStatus `json:"status"`
	RSVPStatus string       `json:"rsvp_status"`
}

func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}
