// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for ShippingConfig
// rows at their two persisted scopes (claim override, user default).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

// GetClaimShippingConfig returns the claim-scoped override, or ErrNotFound.
func GetClaimShippingConfig(ctx context.Context, db *gorm.DB, claimID string) (*domain.ShippingConfig, error) {
	var cfg domain.ShippingConfig
	if err := db.WithContext(ctx).Where("claim_id = ?", claimID).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetUserShippingConfig returns a user's default config (the row with no
// claim scope), or ErrNotFound.
func GetUserShippingConfig(ctx context.Context, db *gorm.DB, userID string) (*domain.ShippingConfig, error) {
	var cfg domain.ShippingConfig
	err := db.WithContext(ctx).
		Where("user_id = ? AND claim_id IS NULL", userID).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpsertShippingConfig creates or replaces the config at the given scope.
// Exactly one of claimID/userID scoping applies: when claimID is non-nil the
// row is a claim override, otherwise it is the user's default.
func UpsertShippingConfig(ctx context.Context, db *gorm.DB, userID *string, claimID *string, in domain.ShippingConfig) (*domain.ShippingConfig, error) {
	var existing domain.ShippingConfig
	q := db.WithContext(ctx)
	if claimID != nil {
		q = q.Where("claim_id = ?", *claimID)
	} else if userID != nil {
		q = q.Where("user_id = ? AND claim_id IS NULL", *userID)
	} else {
		return nil, gorm.ErrInvalidData
	}

	err := q.First(&existing).Error
	switch {
	case err == nil:
		existing.DefaultFeeCents = in.DefaultFeeCents
		existing.MinFeeCents = in.MinFeeCents
		existing.MaxFeeCents = in.MaxFeeCents
		existing.AllowCustomFee = in.AllowCustomFee
		existing.AllowTipping = in.AllowTipping
		existing.Notes = in.Notes
		if err := db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case err == gorm.ErrRecordNotFound:
		cfg := domain.ShippingConfig{
			ID:              uuid.NewString(),
			UserID:          userID,
			ClaimID:         claimID,
			DefaultFeeCents: in.DefaultFeeCents,
			MinFeeCents:     in.MinFeeCents,
			MaxFeeCents:     in.MaxFeeCents,
			AllowCustomFee:  in.AllowCustomFee,
			AllowTipping:    in.AllowTipping,
			Notes:           in.Notes,
			CreatedAt:       time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &cfg, nil
	default:
		return nil, err
	}
}
