// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the settlement-event ledger used to make
// webhook reconciliation idempotent under at-least-once delivery.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

// RecordSettlementEvent inserts a ledger row for an external intent id.
// The unique index on intent_id serializes concurrent deliveries of the same
// notification: the first insert wins and every later one returns
// ErrDuplicate, which the settlement engine treats as "already applied".
func RecordSettlementEvent(ctx context.Context, db *gorm.DB, intentID, claimID, outcome string) (*domain.SettlementEvent, error) {
	rec := &domain.SettlementEvent{
		ID:       uuid.NewString(),
		IntentID: intentID,
		ClaimID:  claimID,
		Outcome:  outcome,
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteSettlementEvent removes the ledger row for an intent id. Used when a
// delivery races ahead of intent attachment: without the row a redelivery can
// re-attempt the apply once the payment is visible.
func DeleteSettlementEvent(ctx context.Context, db *gorm.DB, intentID string) error {
	return db.WithContext(ctx).Where("intent_id = ?", intentID).Delete(&domain.SettlementEvent{}).Error
}

// GetSettlementEvent returns the recorded outcome for an intent id, or
// ErrNotFound when the notification was never applied.
func GetSettlementEvent(ctx context.Context, db *gorm.DB, intentID string) (*domain.SettlementEvent, error) {
	var rec domain.SettlementEvent
	if err := db.WithContext(ctx).Where("intent_id = ?", intentID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
