// Package services – participant predicate
//
// Room access for chat, read tracking, and unread aggregation is decided by
// exactly one predicate so the rules cannot drift between code paths.
package services

import (
	"strings"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

// IsParticipant reports whether the caller identified by (userID, email) is a
// participant of the claim's room: the item owner, the claimer by user id, or
// the claimer by email. Email comparison is case-insensitive; user id
// comparison is exact. Empty caller credentials never match.
func IsParticipant(claim *domain.Claim, userID, email string) bool {
	if claim == nil {
		return false
	}
	if userID != "" {
		if claim.Item.OwnerUserID != nil && *claim.Item.OwnerUserID == userID {
			return true
		}
		if claim.ClaimerUserID != nil && *claim.ClaimerUserID == userID {
			return true
		}
	}
	if email != "" && claim.ClaimerEmail != "" &&
		strings.EqualFold(claim.ClaimerEmail, email) {
		return true
	}
	return false
}
