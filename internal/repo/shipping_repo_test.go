package repo

import (
	"context"
	"testing"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

func TestUpsertShippingConfig_Scopes(t *testing.T) {
	ctx := context.Background()
	db := newClaimRepoDB(t, &domain.ShippingConfig{})
	owner := "owner-1"
	claimID := "claim-1"

	if _, err := UpsertShippingConfig(ctx, db, nil, nil, domain.ShippingConfig{}); err == nil {
		t.Fatal("unscoped upsert must be rejected")
	}

	userCfg, err := UpsertShippingConfig(ctx, db, &owner, nil, domain.ShippingConfig{
		DefaultFeeCents: 800, MinFeeCents: 300, MaxFeeCents: 2000, AllowCustomFee: true, AllowTipping: true,
	})
	if err != nil {
		t.Fatalf("user upsert: %v", err)
	}
	claimCfg, err := UpsertShippingConfig(ctx, db, &owner, &claimID, domain.ShippingConfig{
		DefaultFeeCents: 999, MinFeeCents: 100, MaxFeeCents: 1000, AllowTipping: true,
	})
	if err != nil {
		t.Fatalf("claim upsert: %v", err)
	}
	if userCfg.ID == claimCfg.ID {
		t.Fatal("scopes must not share a row")
	}

	byUser, err := GetUserShippingConfig(ctx, db, owner)
	if err != nil || byUser.ID != userCfg.ID {
		t.Fatalf("GetUserShippingConfig: %v / %+v", err, byUser)
	}
	byClaim, err := GetClaimShippingConfig(ctx, db, claimID)
	if err != nil || byClaim.ID != claimCfg.ID {
		t.Fatalf("GetClaimShippingConfig: %v / %+v", err, byClaim)
	}
}

func TestUpsertShippingConfig_FalseFlagsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newClaimRepoDB(t, &domain.ShippingConfig{})
	owner := "owner-1"

	// A freshly created row with both flags off stays off when read back.
	if _, err := UpsertShippingConfig(ctx, db, &owner, nil, domain.ShippingConfig{
		DefaultFeeCents: 1500, MinFeeCents: 500, MaxFeeCents: 5000,
		AllowCustomFee: false, AllowTipping: false,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := GetUserShippingConfig(ctx, db, owner)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.AllowCustomFee || got.AllowTipping {
		t.Fatalf("flags = %v/%v, want false/false as written", got.AllowCustomFee, got.AllowTipping)
	}

	// Flipping on and back off persists through the update path too.
	if _, err := UpsertShippingConfig(ctx, db, &owner, nil, domain.ShippingConfig{
		DefaultFeeCents: 1500, MinFeeCents: 500, MaxFeeCents: 5000,
		AllowCustomFee: true, AllowTipping: true,
	}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := UpsertShippingConfig(ctx, db, &owner, nil, domain.ShippingConfig{
		DefaultFeeCents: 1500, MinFeeCents: 500, MaxFeeCents: 5000,
	}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	got, _ = GetUserShippingConfig(ctx, db, owner)
	if got.AllowCustomFee || got.AllowTipping {
		t.Fatalf("flags = %v/%v after disable, want false/false", got.AllowCustomFee, got.AllowTipping)
	}
}
