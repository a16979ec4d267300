// Claim and payment lifecycle enumerations.
//
// Both statuses are closed string enums with an explicit, exhaustive
// transition table. Handlers and services never compare raw strings; legality
// of a transition is decided in exactly one place (CanTransition), and the
// table is the single source of truth for the lifecycle
// pending → accepted → paid → shipped → delivered, with pending → rejected as
// the alternative branch (terminal for payment, not for chat).
package domain

// ClaimStatus is the lifecycle state of a Claim.
type ClaimStatus string

// Claim lifecycle states.
const (
	ClaimPending   ClaimStatus = "pending"
	ClaimAccepted  ClaimStatus = "accepted"
	ClaimRejected  ClaimStatus = "rejected"
	ClaimPaid      ClaimStatus = "paid"
	ClaimShipped   ClaimStatus = "shipped"
	ClaimDelivered ClaimStatus = "delivered"
)

// claimTransitions is the exhaustive forward-transition table. Absence means
// illegal; there is no way to move a claim backward.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimPending:   {ClaimAccepted, ClaimRejected},
	ClaimAccepted:  {ClaimPaid},
	ClaimPaid:      {ClaimShipped},
	ClaimShipped:   {ClaimDelivered},
	ClaimRejected:  {},
	ClaimDelivered: {},
}

// Valid reports whether s is a member of the closed enumeration.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimAccepted, ClaimRejected, ClaimPaid, ClaimShipped, ClaimDelivered:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step per the transition table.
func (s ClaimStatus) CanTransition(next ClaimStatus) bool {
	for _, allowed := range claimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func (s ClaimStatus) Terminal() bool {
	return len(claimTransitions[s]) == 0
}

// Payable reports whether a payment may be initiated against a claim in this
// state. Only accepted claims are payable; rejected is terminal for payment
// purposes even though the room remains chattable.
func (s ClaimStatus) Payable() bool { return s == ClaimAccepted }

// PaymentStatus is the settlement state of a Payment.
type PaymentStatus string

// Payment settlement states.
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Terminal reports whether the payment has reached a final settlement state.
// Repeat notifications for a terminal payment are no-ops.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSucceeded || s == PaymentFailed
}
