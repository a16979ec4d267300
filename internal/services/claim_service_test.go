package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
	"github.com/reclaimhq/go-reclaim-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:claimsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedClaim creates an item owned by ownerID and a pending claim on it by
// (claimerID, claimerEmail). Use empty strings for anonymous parties.
func seedClaim(t *testing.T, db *gorm.DB, ownerID, claimerID, claimerEmail string) *domain.Claim {
	t.Helper()
	ctx := context.Background()

	var owner *string
	if ownerID != "" {
		owner = &ownerID
	}
	item, err := repo.CreateItem(ctx, db, owner, "black umbrella")
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}

	var claimer *string
	if claimerID != "" {
		claimer = &claimerID
	}
	claim, err := repo.CreateClaim(ctx, db, item.ID, claimer, claimerEmail)
	if err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	got, err := repo.GetClaim(ctx, db, claim.ID)
	if err != nil {
		t.Fatalf("reload claim: %v", err)
	}
	return got
}

// forceStatus moves a claim to status directly, bypassing the service, for
// tests that need a mid-lifecycle starting point.
func forceStatus(t *testing.T, db *gorm.DB, claimID string, status domain.ClaimStatus) {
	t.Helper()
	if err := db.Model(&domain.Claim{}).Where("id = ?", claimID).Update("status", status).Error; err != nil {
		t.Fatalf("force status: %v", err)
	}
}

func TestClaimService_CreateItem_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)

	if _, err := svc.CreateItem(context.Background(), nil, "   "); err == nil {
		t.Fatal("expected error for blank title")
	}

	owner := "owner-1"
	item, err := svc.CreateItem(context.Background(), &owner, "  blue scarf  ")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Title != "blue scarf" {
		t.Fatalf("Title = %q, want trimmed", item.Title)
	}
	if item.IsClaimed {
		t.Fatal("new items must start unclaimed")
	}
}

func TestClaimService_Create_RequiresIdentity(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")

	if _, err := svc.Create(context.Background(), claim.ItemID, nil, "  "); !errors.Is(err, ErrEmptyClaim) {
		t.Fatalf("expected ErrEmptyClaim, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "missing-item", nil, "x@example.com"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestClaimService_Create_MintsDistinctRooms(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	first := seedClaim(t, db, "owner-1", "claimer-1", "a@example.com")

	second, err := svc.Create(context.Background(), first.ItemID, nil, "b@example.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.RoomID == "" || second.RoomID == first.RoomID {
		t.Fatalf("each claim must mint its own room, got %q vs %q", second.RoomID, first.RoomID)
	}
	if second.Status != domain.ClaimPending {
		t.Fatalf("Status = %q, want pending", second.Status)
	}
}

func TestClaimService_Accept_OwnerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")

	if _, err := svc.Accept(context.Background(), claim.ID, "claimer-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("claimer accept: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Accept(context.Background(), claim.ID, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous accept: expected ErrForbidden, got %v", err)
	}

	got, err := svc.Accept(context.Background(), claim.ID, "owner-1")
	if err != nil {
		t.Fatalf("owner accept: %v", err)
	}
	if got.Status != domain.ClaimAccepted {
		t.Fatalf("Status = %q, want accepted", got.Status)
	}

	item, err := repo.GetItem(context.Background(), db, claim.ItemID)
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if !item.IsClaimed {
		t.Fatal("accept must mark the item claimed")
	}
}

func TestClaimService_Accept_Repeat_IsSilentSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")

	if _, err := svc.Accept(context.Background(), claim.ID, "owner-1"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	got, err := svc.Accept(context.Background(), claim.ID, "owner-1")
	if err != nil {
		t.Fatalf("repeat accept: %v", err)
	}
	if got.Status != domain.ClaimAccepted {
		t.Fatalf("Status = %q, want accepted", got.Status)
	}
}

func TestClaimService_Accept_SecondClaimOnClaimedItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	first := seedClaim(t, db, "owner-1", "claimer-1", "a@example.com")

	second, err := svc.Create(context.Background(), first.ItemID, nil, "b@example.com")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if _, err := svc.Accept(context.Background(), first.ID, "owner-1"); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	if _, err := svc.Accept(context.Background(), second.ID, "owner-1"); !errors.Is(err, ErrItemAlreadyClaimed) {
		t.Fatalf("expected ErrItemAlreadyClaimed, got %v", err)
	}

	got, err := repo.GetClaim(context.Background(), db, second.ID)
	if err != nil {
		t.Fatalf("reload second: %v", err)
	}
	if got.Status != domain.ClaimPending {
		t.Fatalf("losing claim Status = %q, want pending untouched", got.Status)
	}
}

func TestClaimService_Reject_KeepsItemUnclaimed(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")

	got, err := svc.Reject(context.Background(), claim.ID, "owner-1")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != domain.ClaimRejected {
		t.Fatalf("Status = %q, want rejected", got.Status)
	}

	item, _ := repo.GetItem(context.Background(), db, claim.ItemID)
	if item.IsClaimed {
		t.Fatal("reject must not mark the item claimed")
	}

	// Rejected claims do not block new claims on the same item.
	if _, err := svc.Create(context.Background(), claim.ItemID, nil, "again@example.com"); err != nil {
		t.Fatalf("new claim after reject: %v", err)
	}
}

func TestClaimService_TransitionLegality(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	ctx := context.Background()

	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")

	// Shipping a pending claim is illegal.
	if _, err := svc.MarkShipped(ctx, claim.ID, "owner-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ship pending: expected ErrInvalidTransition, got %v", err)
	}

	// Rejecting an accepted claim is illegal; there is no way backward.
	forceStatus(t, db, claim.ID, domain.ClaimAccepted)
	if _, err := svc.Reject(ctx, claim.ID, "owner-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject accepted: expected ErrInvalidTransition, got %v", err)
	}

	// paid → shipped → delivered walks forward, with delivery open to
	// either participant.
	forceStatus(t, db, claim.ID, domain.ClaimPaid)
	if _, err := svc.MarkShipped(ctx, claim.ID, "owner-1"); err != nil {
		t.Fatalf("ship paid: %v", err)
	}
	if _, err := svc.MarkDelivered(ctx, claim.ID, "", "c@example.com"); err != nil {
		t.Fatalf("deliver by claimer email: %v", err)
	}

	got, _ := repo.GetClaim(ctx, db, claim.ID)
	if got.Status != domain.ClaimDelivered {
		t.Fatalf("Status = %q, want delivered", got.Status)
	}

	// Delivered is terminal.
	if _, err := svc.MarkShipped(ctx, claim.ID, "owner-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ship delivered: expected ErrInvalidTransition, got %v", err)
	}
}

func TestClaimService_MarkDelivered_StrangerForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")
	forceStatus(t, db, claim.ID, domain.ClaimShipped)

	if _, err := svc.MarkDelivered(context.Background(), claim.ID, "stranger", "s@example.com"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestClaimService_GetAndList_ParticipantGated(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	ctx := context.Background()
	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")

	if _, err := svc.Get(ctx, claim.ID, "stranger", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger get: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, "missing", "owner-1", ""); !errors.Is(err, ErrClaimNotFound) {
		t.Fatalf("missing get: expected ErrClaimNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, claim.ID, "", "C@EXAMPLE.COM"); err != nil {
		t.Fatalf("claimer by folded email: %v", err)
	}
	if _, err := svc.GetByRoom(ctx, claim.RoomID, "owner-1", ""); err != nil {
		t.Fatalf("owner by room: %v", err)
	}

	owned, err := svc.List(ctx, "owner-1", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != claim.ID {
		t.Fatalf("owner list = %d claims, want the seeded one", len(owned))
	}
	if got, _ := svc.List(ctx, "stranger", "nobody@example.com"); len(got) != 0 {
		t.Fatalf("stranger list = %d claims, want 0", len(got))
	}
}

func TestClaimService_DeleteItem_Cascades(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db)
	ctx := context.Background()
	claim := seedClaim(t, db, "owner-1", "claimer-1", "c@example.com")

	if _, err := repo.CreateMessage(ctx, db, "", claim.RoomID, nil, "Claimer", "c@example.com", "is it mine?"); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	if err := svc.DeleteItem(ctx, "claimer-1", claim.ItemID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner delete: expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteItem(ctx, "owner-1", claim.ItemID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	if _, err := repo.GetClaim(ctx, db, claim.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("claim should be gone, got %v", err)
	}
	var msgs int64
	db.Model(&domain.ChatMessage{}).Where("room_id = ?", claim.RoomID).Count(&msgs)
	if msgs != 0 {
		t.Fatalf("messages left after cascade: %d", msgs)
	}
	if err := svc.DeleteItem(ctx, "owner-1", claim.ItemID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("double delete: expected ErrItemNotFound, got %v", err)
	}
}
