// Package services defines the business logic for claims, payments, chat, and
// unread tracking. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Claim lifecycle errors.
var (
	// ErrItemNotFound indicates that the requested item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrClaimNotFound indicates that the requested claim (or room) does not
	// exist.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrItemAlreadyClaimed is returned when accepting a claim would violate
	// the at-most-one-accepted invariant on the item.
	ErrItemAlreadyClaimed = errors.New("item already has an accepted claim")

	// ErrInvalidTransition is returned when a lifecycle step is not permitted
	// from the claim's current state.
	ErrInvalidTransition = errors.New("claim state transition not allowed")

	// ErrForbidden is returned when the caller is not allowed to perform the
	// operation on the claim or item.
	ErrForbidden = errors.New("operation not permitted for this user")

	// ErrEmptyClaim is returned when a claim request carries no claimer
	// identity at all (neither user id nor email).
	ErrEmptyClaim = errors.New("claimer identity is required")
)

// Chat errors.
var (
	// ErrNotParticipant is returned when a caller who is neither the item
	// owner nor the claimer touches a room.
	ErrNotParticipant = errors.New("caller is not a participant of this room")

	// ErrEmptyMessage is returned when a message body is blank after
	// normalization.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrMessageTooLong is returned when a message body exceeds the
	// configured maximum length.
	ErrMessageTooLong = errors.New("message body too long")
)

// Payment and settlement errors.
var (
	// ErrClaimNotPayable is returned when a payment is initiated against a
	// claim that is not in the accepted state.
	ErrClaimNotPayable = errors.New("claim is not payable in its current state")

	// ErrFeeOutOfRange is returned when a custom shipping fee falls outside
	// the configured [min, max] bounds or custom fees are disabled.
	ErrFeeOutOfRange = errors.New("shipping fee outside the allowed range")

	// ErrTipNotAllowed is returned when a tip is supplied but tipping is
	// disabled by the effective shipping configuration.
	ErrTipNotAllowed = errors.New("tipping is not enabled for this claim")

	// ErrRecipientNotOnboarded is returned when the item owner has no
	// enabled payout account to receive the transfer.
	ErrRecipientNotOnboarded = errors.New("recipient has no enabled payout account")

	// ErrPaymentAlreadySettled is returned when a payment is initiated for a
	// claim that already has a succeeded settlement.
	ErrPaymentAlreadySettled = errors.New("claim already has a settled payment")

	// ErrPaymentNotFound indicates that no payment exists for the claim.
	ErrPaymentNotFound = errors.New("payment not found")
)
