// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Item and Claim.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service layer
// and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation.
var ErrDuplicate = errors.New("duplicate")

// IsDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey. glebarez/sqlite often returns plain-text
// errors for UNIQUE violations.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// CreateItem inserts a new Item row. ownerUserID may be nil for
// unauthenticated finders.
func CreateItem(ctx context.Context, db *gorm.DB, ownerUserID *string, title string) (*domain.Item, error) {
	it := &domain.Item{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Title:       title,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(it).Error; err != nil {
		return nil, err
	}
	return it, nil
}

// GetItem fetches a single item by ID, or ErrNotFound if missing.
func GetItem(ctx context.Context, db *gorm.DB, id string) (*domain.Item, error) {
	var it domain.Item
	if err := db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// MarkItemClaimed flips IsClaimed for an item only when it is not claimed
// yet. Returns ErrDuplicate when the item was already claimed, so callers can
// treat a lost race as the invariant violation it is.
func MarkItemClaimed(ctx context.Context, db *gorm.DB, itemID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ? AND is_claimed = ?", itemID, false).
		Update("is_claimed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(&domain.Item{}).Where("id = ?", itemID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrDuplicate
	}
	return nil
}

// CreateClaim inserts a new Claim in status pending with a freshly minted
// room id. The room id is unique and never reused across claims.
func CreateClaim(ctx context.Context, db *gorm.DB, itemID string, claimerUserID *string, claimerEmail string) (*domain.Claim, error) {
	c := &domain.Claim{
		ID:            uuid.NewString(),
		ItemID:        itemID,
		ClaimerUserID: claimerUserID,
		ClaimerEmail:  claimerEmail,
		RoomID:        uuid.NewString(),
		Status:        domain.ClaimPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetClaim fetches a claim by ID with its Item preloaded (needed for the
// participant check), or ErrNotFound.
func GetClaim(ctx context.Context, db *gorm.DB, id string) (*domain.Claim, error) {
	var c domain.Claim
	err := db.WithContext(ctx).
		Preload("Item").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClaimByRoom fetches the claim backing a room, with Item preloaded.
func GetClaimByRoom(ctx context.Context, db *gorm.DB, roomID string) (*domain.Claim, error) {
	var c domain.Claim
	err := db.WithContext(ctx).
		Preload("Item").
		Where("room_id = ?", roomID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClaimsForItem returns all claims on an item, newest first.
func ListClaimsForItem(ctx context.Context, db *gorm.DB, itemID string) ([]domain.Claim, error) {
	var out []domain.Claim
	err := db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListParticipantClaims returns every claim where the caller is a
// participant: claims on items the caller owns, plus claims the caller filed
// (by user id or case-insensitive email match). Items are preloaded.
func ListParticipantClaims(ctx context.Context, db *gorm.DB, userID, email string) ([]domain.Claim, error) {
	q := db.WithContext(ctx).Preload("Item").
		Joins("JOIN items ON items.id = claims.item_id AND items.deleted_at IS NULL")

	switch {
	case userID != "" && email != "":
		q = q.Where("items.owner_user_id = ? OR claims.claimer_user_id = ? OR LOWER(claims.claimer_email) = LOWER(?)",
			userID, userID, email)
	case userID != "":
		q = q.Where("items.owner_user_id = ? OR claims.claimer_user_id = ?", userID, userID)
	case email != "":
		q = q.Where("LOWER(claims.claimer_email) = LOWER(?)", email)
	default:
		return []domain.Claim{}, nil
	}

	var out []domain.Claim
	err := q.Order("claims.created_at desc").Find(&out).Error
	return out, err
}

// TransitionClaim applies a status change with compare-and-set semantics:
// the UPDATE only matches while the claim is still in from. A zero
// RowsAffected means the claim is missing or some other writer got there
// first; callers reload and decide whether the race was benign.
func TransitionClaim(ctx context.Context, db *gorm.DB, id string, from, to domain.ClaimStatus) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteItemCascade hard-deletes an item together with its claims, their
// chat messages, and their payments, in one transaction. This is the only
// hard-delete path in the system.
func DeleteItemCascade(ctx context.Context, db *gorm.DB, itemID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rooms []string
		if err := tx.Model(&domain.Claim{}).Where("item_id = ?", itemID).Pluck("room_id", &rooms).Error; err != nil {
			return err
		}
		var claimIDs []string
		if err := tx.Model(&domain.Claim{}).Where("item_id = ?", itemID).Pluck("id", &claimIDs).Error; err != nil {
			return err
		}
		if len(rooms) > 0 {
			if err := tx.Unscoped().Where("room_id IN ?", rooms).Delete(&domain.ChatMessage{}).Error; err != nil {
				return err
			}
		}
		if len(claimIDs) > 0 {
			if err := tx.Unscoped().Where("claim_id IN ?", claimIDs).Delete(&domain.Payment{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("claim_id IN ?", claimIDs).Delete(&domain.ShippingConfig{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("item_id = ?", itemID).Delete(&domain.Claim{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id = ?", itemID).Delete(&domain.Item{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
