// Package services – ClaimService
//
// This file implements the ClaimService, which owns the claim lifecycle:
// reporting items, filing claims (each minting its own chat room), and the
// owner-driven transitions accept/reject/ship/deliver. Legality of every
// transition is decided by the domain transition table; this service adds
// authorization, the item-claimed invariant, and compare-and-set application
// so that concurrent actors cannot double-apply a step.
//
// The paid transition is deliberately absent here: it belongs exclusively to
// the settlement engine, driven by processor outcomes.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// claim/item identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
	"github.com/reclaimhq/go-reclaim-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ClaimService coordinates item and claim persistence and enforces the
// lifecycle and authorization rules around them.
type ClaimService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// TitleMaxLen caps stored item titles by rune length.
	TitleMaxLen int
}

// NewClaimService constructs a ClaimService with sane defaults.
func NewClaimService(db *gorm.DB) *ClaimService {
	return &ClaimService{DB: db, TitleMaxLen: 255}
}

// CreateItem registers a found item. ownerUserID may be nil for
// unauthenticated finders; such items can be claimed and chatted about but
// never paid out.
func (s *ClaimService) CreateItem(ctx context.Context, ownerUserID *string, title string) (*domain.Item, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "CreateItem")
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyClaim
	}
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		title = string([]rune(title)[:s.TitleMaxLen])
	}
	return repo.CreateItem(ctx, s.DB, ownerUserID, title)
}

// DeleteItem removes an item together with its claims, rooms, messages, and
// payments in one transaction. Only the item owner may delete.
func (s *ClaimService) DeleteItem(ctx context.Context, callerID, itemID string) error {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "DeleteItem",
		trace.WithAttributes(attribute.String("item.id", itemID)),
	)
	defer span.End()

	item, err := repo.GetItem(ctx, s.DB, itemID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	if callerID == "" || item.OwnerUserID == nil || *item.OwnerUserID != callerID {
		return ErrForbidden
	}
	return repo.DeleteItemCascade(ctx, s.DB, itemID)
}

// Create files a new claim on an item and mints the claim's chat room. A
// claimer identifies with a user id, an email, or both; a claim with neither
// is rejected. Rejected prior claims do not block new ones.
func (s *ClaimService) Create(ctx context.Context, itemID string, claimerUserID *string, claimerEmail string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("item.id", itemID)),
	)
	defer span.End()

	claimerEmail = strings.TrimSpace(claimerEmail)
	if (claimerUserID == nil || *claimerUserID == "") && claimerEmail == "" {
		return nil, ErrEmptyClaim
	}

	if _, err := repo.GetItem(ctx, s.DB, itemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	return repo.CreateClaim(ctx, s.DB, itemID, claimerUserID, claimerEmail)
}

// Get fetches a claim, with its item preloaded, for a participant. Callers
// outside the claim's room receive ErrForbidden regardless of whether the
// claim exists beyond the 404 case.
func (s *ClaimService) Get(ctx context.Context, claimID, callerID, callerEmail string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if !IsParticipant(claim, callerID, callerEmail) {
		return nil, ErrForbidden
	}
	return claim, nil
}

// GetByRoom resolves a room id to its backing claim, participant-gated the
// same way Get is.
func (s *ClaimService) GetByRoom(ctx context.Context, roomID, callerID, callerEmail string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "GetByRoom",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	claim, err := repo.GetClaimByRoom(ctx, s.DB, roomID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if !IsParticipant(claim, callerID, callerEmail) {
		return nil, ErrForbidden
	}
	return claim, nil
}

// List returns every claim the caller participates in, as item owner or as
// claimer, newest first.
func (s *ClaimService) List(ctx context.Context, callerID, callerEmail string) ([]domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListParticipantClaims(ctx, s.DB, callerID, callerEmail)
}

// Accept moves a pending claim to accepted and marks the item claimed, both
// in one transaction. Only the item owner may accept, and an item can carry
// at most one accepted claim, ever. Repeating an accept on an already
// accepted claim is a silent success.
func (s *ClaimService) Accept(ctx context.Context, claimID, callerID string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Accept",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := s.ownedClaim(ctx, claimID, callerID)
	if err != nil {
		return nil, err
	}
	if claim.Status == domain.ClaimAccepted {
		return claim, nil
	}
	if !claim.Status.CanTransition(domain.ClaimAccepted) {
		return nil, ErrInvalidTransition
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkItemClaimed(ctx, tx, claim.ItemID); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrItemAlreadyClaimed
			}
			return err
		}
		ok, err := repo.TransitionClaim(ctx, tx, claimID, domain.ClaimPending, domain.ClaimAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		// A lost race against a concurrent accept of the same claim is
		// still a success for this caller.
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrItemAlreadyClaimed) {
			if cur, gerr := repo.GetClaim(ctx, s.DB, claimID); gerr == nil && cur.Status == domain.ClaimAccepted {
				return cur, nil
			}
		}
		return nil, err
	}
	claim.Status = domain.ClaimAccepted
	return claim, nil
}

// Reject moves a pending claim to rejected. Only the item owner may reject.
// The room stays open for conversation; the claim is terminal for payment.
func (s *ClaimService) Reject(ctx context.Context, claimID, callerID string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Reject",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := s.ownedClaim(ctx, claimID, callerID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, claim, domain.ClaimRejected)
}

// MarkShipped moves a paid claim to shipped. Only the item owner ships.
func (s *ClaimService) MarkShipped(ctx context.Context, claimID, callerID string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "MarkShipped",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := s.ownedClaim(ctx, claimID, callerID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, claim, domain.ClaimShipped)
}

// MarkDelivered moves a shipped claim to delivered. Either participant may
// confirm delivery.
func (s *ClaimService) MarkDelivered(ctx context.Context, claimID, callerID, callerEmail string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "MarkDelivered",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if !IsParticipant(claim, callerID, callerEmail) {
		return nil, ErrForbidden
	}
	return s.transition(ctx, claim, domain.ClaimDelivered)
}

// ownedClaim loads a claim and verifies the caller owns the claimed item.
func (s *ClaimService) ownedClaim(ctx context.Context, claimID, callerID string) (*domain.Claim, error) {
	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if callerID == "" || claim.Item.OwnerUserID == nil || *claim.Item.OwnerUserID != callerID {
		return nil, ErrForbidden
	}
	return claim, nil
}

// transition applies a single compare-and-set lifecycle step. Repeating a
// step whose target equals the current state is a silent success; any other
// illegal step is ErrInvalidTransition.
func (s *ClaimService) transition(ctx context.Context, claim *domain.Claim, to domain.ClaimStatus) (*domain.Claim, error) {
	if claim.Status == to {
		return claim, nil
	}
	if !claim.Status.CanTransition(to) {
		return nil, ErrInvalidTransition
	}
	ok, err := repo.TransitionClaim(ctx, s.DB, claim.ID, claim.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Raced with another actor; same-target races still succeed.
		cur, gerr := repo.GetClaim(ctx, s.DB, claim.ID)
		if gerr == nil && cur.Status == to {
			return cur, nil
		}
		return nil, ErrInvalidTransition
	}
	claim.Status = to
	return claim, nil
}
