package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body,
// computed by the processor with the shared endpoint secret.
const SignatureHeader = "X-Settlement-Signature"

// Webhook event types this system handles. Anything else is acknowledged and
// ignored (the processor fans out more kinds than we care about).
const (
	EventAccountUpdated   = "account.updated"
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// ErrBadSignature is returned when a webhook payload cannot be verified
// against the shared secret. Unverified payloads must never reach state.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Event is the decoded webhook envelope. Exactly one of Intent/Account is
// set depending on Type.
type Event struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Intent  *Intent  `json:"intent,omitempty"`
	Account *Account `json:"account,omitempty"`
}

// Sign computes the hex HMAC-SHA256 signature of payload under secret.
// Exposed so tests and local tooling can produce valid deliveries.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether sig is a valid signature of payload under
// secret, using a constant-time comparison.
func VerifySignature(payload []byte, sig, secret string) bool {
	if sig == "" || secret == "" {
		return false
	}
	want, err := hex.DecodeString(strings.TrimSpace(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(want, mac.Sum(nil))
}

// ParseEvent verifies the signature and decodes the envelope. It returns
// ErrBadSignature before attempting any decode when verification fails.
func ParseEvent(payload []byte, sig, secret string) (*Event, error) {
	if !VerifySignature(payload, sig, secret) {
		return nil, ErrBadSignature
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ClaimIDFromMetadata extracts the claim id from intent metadata, matching
// the key case-insensitively ("claim_id", "claimId", "CLAIM_ID", ...).
func ClaimIDFromMetadata(md map[string]string) string {
	for k, v := range md {
		switch strings.ToLower(strings.ReplaceAll(k, "_", "")) {
		case "claimid":
			if v != "" {
				return v
			}
		}
	}
	return ""
}
