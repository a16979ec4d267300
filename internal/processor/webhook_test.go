package processor

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	sig := Sign(payload, "whsec_test")

	if !VerifySignature(payload, sig, "whsec_test") {
		t.Fatalf("valid signature rejected")
	}
	if VerifySignature(payload, sig, "whsec_other") {
		t.Fatalf("signature accepted under wrong secret")
	}
	if VerifySignature([]byte(`{"tampered":true}`), sig, "whsec_test") {
		t.Fatalf("signature accepted for tampered payload")
	}
	if VerifySignature(payload, "", "whsec_test") {
		t.Fatalf("empty signature accepted")
	}
	if VerifySignature(payload, "zzzz-not-hex", "whsec_test") {
		t.Fatalf("non-hex signature accepted")
	}
}

func TestParseEvent_BadSignatureBeforeDecode(t *testing.T) {
	// Even unparseable JSON must fail on the signature first.
	_, err := ParseEvent([]byte(`{{{`), "deadbeef", "whsec_test")
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("want ErrBadSignature, got %v", err)
	}
}

func TestParseEvent_DecodesIntentEvent(t *testing.T) {
	ev := Event{
		ID:   "evt_42",
		Type: EventPaymentSucceeded,
		Intent: &Intent{
			ID:       "pi_42",
			Status:   IntentStatusSucceeded,
			Metadata: map[string]string{"claimId": "claim-7"},
		},
	}
	payload, _ := json.Marshal(ev)
	got, err := ParseEvent(payload, Sign(payload, "s"), "s")
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if got.Type != EventPaymentSucceeded || got.Intent == nil || got.Intent.ID != "pi_42" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.Intent.ClaimID() != "claim-7" {
		t.Fatalf("metadata claim id not extracted: %+v", got.Intent.Metadata)
	}
}

func TestClaimIDFromMetadata_CaseInsensitive(t *testing.T) {
	cases := []map[string]string{
		{"claim_id": "c1"},
		{"claimId": "c1"},
		{"claimID": "c1"},
		{"CLAIM_ID": "c1"},
		{"other": "x", "Claim_Id": "c1"},
	}
	for _, md := range cases {
		if got := ClaimIDFromMetadata(md); got != "c1" {
			t.Errorf("ClaimIDFromMetadata(%v) = %q, want c1", md, got)
		}
	}
	if got := ClaimIDFromMetadata(map[string]string{"claimant": "x"}); got != "" {
		t.Errorf("unexpected claim id %q from unrelated keys", got)
	}
	if got := ClaimIDFromMetadata(nil); got != "" {
		t.Errorf("unexpected claim id %q from nil metadata", got)
	}
}

func TestAccountReady_AllThreeRequired(t *testing.T) {
	for i := 0; i < 8; i++ {
		a := Account{
			ChargesEnabled:   i&1 != 0,
			DetailsSubmitted: i&2 != 0,
			PayoutsEnabled:   i&4 != 0,
		}
		want := i == 7
		if a.Ready() != want {
			t.Errorf("Ready() with %+v = %v, want %v", a, a.Ready(), want)
		}
	}
}

func TestIntentTerminal(t *testing.T) {
	for _, s := range []string{IntentStatusSucceeded, IntentStatusFailed, IntentStatusCanceled} {
		if !(&Intent{Status: s}).Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []string{IntentStatusProcessing, IntentStatusRequiresConfirmation} {
		if (&Intent{Status: s}).Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
