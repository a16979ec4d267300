package domain

import "testing"

func TestClaimStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from, to ClaimStatus
		ok       bool
	}{
		{ClaimPending, ClaimAccepted, true},
		{ClaimPending, ClaimRejected, true},
		{ClaimAccepted, ClaimPaid, true},
		{ClaimPaid, ClaimShipped, true},
		{ClaimShipped, ClaimDelivered, true},

		// skipping forward is illegal
		{ClaimPending, ClaimPaid, false},
		{ClaimAccepted, ClaimShipped, false},
		{ClaimAccepted, ClaimDelivered, false},

		// no backward moves, ever
		{ClaimPaid, ClaimAccepted, false},
		{ClaimAccepted, ClaimPending, false},
		{ClaimShipped, ClaimPaid, false},
		{ClaimDelivered, ClaimShipped, false},

		// rejected is a dead end
		{ClaimRejected, ClaimAccepted, false},
		{ClaimRejected, ClaimPaid, false},
		{ClaimRejected, ClaimPending, false},

		// self-loops are not transitions
		{ClaimPending, ClaimPending, false},
		{ClaimPaid, ClaimPaid, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestClaimStatus_MonotonicReachability(t *testing.T) {
	// Starting from pending, walk every legal path and assert no path ever
	// revisits a state (monotonic lifecycle).
	var walk func(cur ClaimStatus, seen map[ClaimStatus]bool)
	walk = func(cur ClaimStatus, seen map[ClaimStatus]bool) {
		for _, next := range claimTransitions[cur] {
			if seen[next] {
				t.Fatalf("cycle detected: %s revisits %s", cur, next)
			}
			branch := map[ClaimStatus]bool{next: true}
			for k := range seen {
				branch[k] = true
			}
			walk(next, branch)
		}
	}
	walk(ClaimPending, map[ClaimStatus]bool{ClaimPending: true})
}

func TestClaimStatus_TerminalAndPayable(t *testing.T) {
	if !ClaimRejected.Terminal() || !ClaimDelivered.Terminal() {
		t.Fatalf("rejected and delivered must be terminal")
	}
	if ClaimPending.Terminal() || ClaimPaid.Terminal() {
		t.Fatalf("pending and paid must not be terminal")
	}
	for _, s := range []ClaimStatus{ClaimPending, ClaimRejected, ClaimPaid, ClaimShipped, ClaimDelivered} {
		if s.Payable() {
			t.Errorf("%s must not be payable", s)
		}
	}
	if !ClaimAccepted.Payable() {
		t.Fatalf("accepted must be payable")
	}
}

func TestClaimStatus_Valid(t *testing.T) {
	for _, s := range []ClaimStatus{ClaimPending, ClaimAccepted, ClaimRejected, ClaimPaid, ClaimShipped, ClaimDelivered} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if ClaimStatus("cancelled").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestPaymentStatus_Terminal(t *testing.T) {
	if PaymentPending.Terminal() {
		t.Fatalf("pending payment is not terminal")
	}
	if !PaymentSucceeded.Terminal() || !PaymentFailed.Terminal() {
		t.Fatalf("succeeded and failed payments are terminal")
	}
}
