// Package domain defines the persistence models for items, claims, payments,
// chat messages, and payout accounts. These types are mapped with GORM and
// form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Item represents a found item reported by a finder. The owner (when
// authenticated) is the payment recipient once a claim is accepted.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerUserID: identifier of the reporting finder; nil for unauthenticated
//     finders (who can chat but cannot receive payouts).
//   - Title: short human-readable description of the item.
//   - IsClaimed: set once a claim on this item reaches "accepted"; at most one
//     non-rejected claim may ever be accepted.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Item struct {
	ID          string         `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerUserID *string        `json:"owner_user_id" gorm:"type:varchar(64);index:idx_owner_items"`
	Title       string         `json:"title"         gorm:"type:varchar(255);not null"`
	IsClaimed   bool           `json:"is_claimed"    gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "items" }

// Claim represents a claimer's assertion of ownership over an item. Each
// claim owns exactly one chat room; RoomID is the only external handle into
// the messaging channel and is never reused across claims.
//
// Status is a closed enumeration (see status.go); rows are mutated only
// through the claim state machine and hard-deleted only via the item-owner
// cascade delete.
type Claim struct {
	ID            string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ItemID        string         `json:"item_id"         gorm:"type:char(36);not null;index:idx_item_claims"`
	ClaimerUserID *string        `json:"claimer_user_id" gorm:"type:varchar(64);index:idx_claimer_claims"`
	ClaimerEmail  string         `json:"claimer_email"   gorm:"type:varchar(255);not null;index"`
	RoomID        string         `json:"room_id"         gorm:"type:char(36);not null;uniqueIndex:ux_claim_room"`
	Status        ClaimStatus    `json:"status"          gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','accepted','rejected','paid','shipped','delivered')"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"               gorm:"index"`

	// Item is the claimed item. Claims are cascade-deleted if the item
	// is removed.
	Item Item `json:"-" gorm:"foreignKey:ItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// Messages is the claim's chat room. Declared on this side so the
	// foreign key lands on chat_messages referencing the unique
	// claims.room_id; messages are cascade-deleted with the claim.
	Messages []ChatMessage `json:"-" gorm:"foreignKey:RoomID;references:RoomID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Claim.
func (Claim) TableName() string { return "claims" }

// Payment records one settlement attempt for a claim. Amounts are integer
// minor-currency units (cents); the fee split is computed server-side and is
// immutable once the external intent exists. Renegotiation means a new
// Payment row tied to a cancelled prior intent.
type Payment struct {
	ID               string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	ClaimID          string         `json:"claim_id"           gorm:"type:char(36);not null;index:idx_claim_payments"`
	PayerUserID      *string        `json:"payer_user_id"      gorm:"type:varchar(64)"`
	RecipientUserID  string         `json:"recipient_user_id"  gorm:"type:varchar(64);not null"`
	AmountCents      int64          `json:"amount_cents"       gorm:"not null"`
	PlatformFeeCents int64          `json:"platform_fee_cents" gorm:"not null"`
	TransferCents    int64          `json:"transfer_cents"     gorm:"not null"`
	// ExternalIntentID is nil until the processor intent is attached;
	// NULLs keep concurrent pre-attach rows out of the unique index.
	ExternalIntentID *string        `json:"external_intent_id" gorm:"type:varchar(128);uniqueIndex:ux_payment_intent"`
	Status           PaymentStatus  `json:"status"             gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','succeeded','failed')"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                  gorm:"index"`

	// Claim is the settled claim. Payments are cascade-deleted if the
	// claim is removed.
	Claim Claim `json:"-" gorm:"foreignKey:ClaimID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// ChatMessage is a single utterance within a claim's room. Messages are
// append-only: only IsRead mutates after creation, in one batch, and never
// by the author (a sender's own messages are implicitly read).
//
// The ID may be supplied by the sending client so that realtime-received and
// history-fetched copies of the same message de-duplicate.
type ChatMessage struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	RoomID      string         `json:"room_id"      gorm:"type:char(36);not null;index:idx_room_msgs,priority:1"`
	SenderID    *string        `json:"sender_id"    gorm:"type:varchar(64)"`
	SenderName  string         `json:"sender_name"  gorm:"type:varchar(128);not null"`
	SenderEmail string         `json:"sender_email" gorm:"type:varchar(255)"`
	Body        string         `json:"body"         gorm:"type:text;not null"`
	IsRead      bool           `json:"is_read"      gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at"   gorm:"index:idx_room_msgs,priority:2"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// ShippingConfig holds the fee policy consulted before a payment is created.
// A row is scoped either to a single claim (ClaimID set) or to a user's
// default (UserID set, ClaimID nil); resolution walks claim-specific →
// item-owner default → system default.
//
// Invariant: MinFeeCents <= DefaultFeeCents <= MaxFeeCents. The Allow flags
// carry no column default: GORM omits zero-value fields that have one, and a
// stored false must round-trip as false.
type ShippingConfig struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID          *string        `json:"user_id"           gorm:"type:varchar(64);index"`
	ClaimID         *string        `json:"claim_id"          gorm:"type:char(36);uniqueIndex:ux_shipcfg_claim"`
	DefaultFeeCents int64          `json:"default_fee_cents" gorm:"not null"`
	MinFeeCents     int64          `json:"min_fee_cents"     gorm:"not null"`
	MaxFeeCents     int64          `json:"max_fee_cents"     gorm:"not null"`
	AllowCustomFee  bool           `json:"allow_custom_fee"  gorm:"not null"`
	AllowTipping    bool           `json:"allow_tipping"     gorm:"not null"`
	Notes           string         `json:"notes"             gorm:"type:varchar(500)"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`
}

// TableName returns the database table name for ShippingConfig.
func (ShippingConfig) TableName() string { return "shipping_configs" }

// PayoutAccount represents a finder's ability to receive destination
// transfers. A claim cannot progress to a created Payment unless the item
// owner's account is Enabled; Enabled flips only when the external processor
// reports charges, details, and payouts all ready.
type PayoutAccount struct {
	ID                string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	UserID            string         `json:"user_id"             gorm:"type:varchar(64);not null;uniqueIndex:ux_payout_user"`
	ExternalAccountID string         `json:"external_account_id" gorm:"type:varchar(128);not null;uniqueIndex:ux_payout_external"`
	Enabled           bool           `json:"enabled"             gorm:"not null;default:false"`
	Onboarded         bool           `json:"onboarded"           gorm:"not null;default:false"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-"                   gorm:"index"`
}

// TableName returns the database table name for PayoutAccount.
func (PayoutAccount) TableName() string { return "payout_accounts" }

// SettlementEvent records an already-applied settlement notification, keyed
// by the external intent id. Inserting the row first serializes concurrent
// deliveries of the same notification: the unique index makes every delivery
// after the first a detectable no-op.
type SettlementEvent struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	IntentID  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_settlement_intent"`
	ClaimID   string    `gorm:"type:TEXT NOT NULL;index"`
	Outcome   string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (SettlementEvent) TableName() string { return "settlement_events" }
