// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Payment and
// PayoutAccount rows, plus the settlement-event idempotency ledger.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

// CreatePayment inserts a pending Payment row. The external intent id is
// attached afterwards via AttachIntent once the processor accepts the intent.
func CreatePayment(ctx context.Context, db *gorm.DB, claimID string, payerUserID *string, recipientUserID string, amount, platformFee, transfer int64) (*domain.Payment, error) {
	p := &domain.Payment{
		ID:               uuid.NewString(),
		ClaimID:          claimID,
		PayerUserID:      payerUserID,
		RecipientUserID:  recipientUserID,
		AmountCents:      amount,
		PlatformFeeCents: platformFee,
		TransferCents:    transfer,
		Status:           domain.PaymentPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// AttachIntent records the external intent id on a payment.
func AttachIntent(ctx context.Context, db *gorm.DB, paymentID, intentID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", paymentID).
		Update("external_intent_id", intentID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePayment hard-deletes a payment row. Used by the compensating path
// when intent creation fails, so no orphaned pending Payment survives.
func DeletePayment(ctx context.Context, db *gorm.DB, paymentID string) error {
	return db.WithContext(ctx).Unscoped().Where("id = ?", paymentID).Delete(&domain.Payment{}).Error
}

// GetPaymentByIntent fetches a payment by its external intent id.
func GetPaymentByIntent(ctx context.Context, db *gorm.DB, intentID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("external_intent_id = ?", intentID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestPayment returns the most recent payment for a claim, or ErrNotFound.
func LatestPayment(ctx context.Context, db *gorm.DB, claimID string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountSucceededPayments returns how many payments for a claim already
// settled successfully. The at-most-one-settlement invariant requires this
// to be 0 before a new intent may be created.
func CountSucceededPayments(ctx context.Context, db *gorm.DB, claimID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("claim_id = ? AND status = ?", claimID, domain.PaymentSucceeded).
		Count(&n).Error
	return n, err
}

// UpdatePaymentStatus sets a payment's settlement state with compare-and-set
// semantics against non-terminal states only: a payment that already reached
// succeeded or failed is never rewritten. Returns whether a row changed.
func UpdatePaymentStatus(ctx context.Context, db *gorm.DB, paymentID string, to domain.PaymentStatus) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status = ?", paymentID, domain.PaymentPending).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpsertPayoutAccount creates or updates the payout account for a user.
func UpsertPayoutAccount(ctx context.Context, db *gorm.DB, userID, externalAccountID string, enabled, onboarded bool) (*domain.PayoutAccount, error) {
	var acc domain.PayoutAccount
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error
	switch {
	case err == nil:
		acc.ExternalAccountID = externalAccountID
		acc.Enabled = enabled
		acc.Onboarded = onboarded
		if err := db.WithContext(ctx).Save(&acc).Error; err != nil {
			return nil, err
		}
		return &acc, nil
	case err == gorm.ErrRecordNotFound:
		acc = domain.PayoutAccount{
			ID:                uuid.NewString(),
			UserID:            userID,
			ExternalAccountID: externalAccountID,
			Enabled:           enabled,
			Onboarded:         onboarded,
			CreatedAt:         time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&acc).Error; err != nil {
			return nil, err
		}
		return &acc, nil
	default:
		return nil, err
	}
}

// GetPayoutAccount fetches a user's payout account, or ErrNotFound.
func GetPayoutAccount(ctx context.Context, db *gorm.DB, userID string) (*domain.PayoutAccount, error) {
	var acc domain.PayoutAccount
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetPayoutAccountByExternal fetches a payout account by the processor-side
// account id (how webhook account events identify their subject).
func GetPayoutAccountByExternal(ctx context.Context, db *gorm.DB, externalAccountID string) (*domain.PayoutAccount, error) {
	var acc domain.PayoutAccount
	if err := db.WithContext(ctx).Where("external_account_id = ?", externalAccountID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// SetPayoutAccountStatus updates the cached enabled/onboarded flags.
func SetPayoutAccountStatus(ctx context.Context, db *gorm.DB, externalAccountID string, enabled, onboarded bool) error {
	res := db.WithContext(ctx).
		Model(&domain.PayoutAccount{}).
		Where("external_account_id = ?", externalAccountID).
		Updates(map[string]any{"enabled": enabled, "onboarded": onboarded})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
