// Package processor is the narrow boundary to the external payment
// processor (a Stripe-Connect-style service). The rest of the application
// only ever sees the Client interface: create/cancel/fetch payment intents
// with a destination transfer, and fetch connected payout accounts.
//
// Nothing in this package touches application state; reconciliation of
// processor outcomes into claims and payments lives in the settlement
// service.
package processor

import (
	"context"
	"errors"
)

// Intent statuses as reported by the processor.
const (
	IntentStatusRequiresConfirmation = "requires_confirmation"
	IntentStatusProcessing           = "processing"
	IntentStatusSucceeded            = "succeeded"
	IntentStatusFailed               = "failed"
	IntentStatusCanceled             = "canceled"
)

// MetadataClaimKey is the canonical metadata key carrying the claim id on an
// intent. Inbound webhooks are tolerant of casing variants; outbound intents
// always use this form.
const MetadataClaimKey = "claim_id"

// ErrRejected is returned when the processor refuses an operation for a
// non-transient reason (bad params, unusable destination account). It is not
// retryable.
var ErrRejected = errors.New("processor rejected request")

// ErrUnavailable is returned on transport failures and 5xx responses after
// retries are exhausted. Callers fall back to cached state where they can.
var ErrUnavailable = errors.New("processor unavailable")

// CreateIntentParams describes a destination-transfer payment intent.
// AmountCents is the full charge; TransferCents is the portion forwarded to
// the destination account (the platform keeps the difference).
type CreateIntentParams struct {
	AmountCents        int64             `json:"amount_cents"`
	TransferCents      int64             `json:"transfer_cents"`
	Currency           string            `json:"currency"`
	DestinationAccount string            `json:"destination_account"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Intent is the processor-side payment intent.
type Intent struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	AmountCents        int64             `json:"amount_cents"`
	TransferCents      int64             `json:"transfer_cents"`
	DestinationAccount string            `json:"destination_account"`
	ClientSecret       string            `json:"client_secret,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Terminal reports whether the intent reached a final state.
func (i *Intent) Terminal() bool {
	switch i.Status {
	case IntentStatusSucceeded, IntentStatusFailed, IntentStatusCanceled:
		return true
	}
	return false
}

// ClaimID extracts the claim id from intent metadata, tolerating key-casing
// drift ("claim_id", "claimId", "claimID", ...).
func (i *Intent) ClaimID() string {
	return ClaimIDFromMetadata(i.Metadata)
}

// Account is the processor-side connected payout account. Enabled payouts
// require all three readiness flags.
type Account struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
}

// Ready reports whether the account can receive destination transfers:
// charges enabled AND details submitted AND payouts enabled, all required.
func (a *Account) Ready() bool {
	return a.ChargesEnabled && a.DetailsSubmitted && a.PayoutsEnabled
}

// Client is the operations surface the settlement engine needs from the
// processor. Implementations must be safe for concurrent use and honor the
// context for cancellation.
type Client interface {
	// CreateIntent registers a destination-transfer intent and returns it
	// (status requires_confirmation or processing).
	CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error)
	// CancelIntent voids a not-yet-settled intent. Cancelling an already
	// terminal intent is a no-op on the processor side.
	CancelIntent(ctx context.Context, intentID string) (*Intent, error)
	// GetIntent fetches the current state of an intent.
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	// GetAccount fetches a connected account's readiness flags.
	GetAccount(ctx context.Context, accountID string) (*Account, error)
}
