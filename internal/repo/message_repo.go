// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for ChatMessage:
// the durable message log per room, ordered reads, and the batch read-flag
// update.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

// CreateMessage appends a message to a room's durable log. id may be supplied
// by the sending client (for realtime/history de-duplication); when empty a
// new UUID is minted. A duplicate id returns ErrDuplicate, which callers map
// to the already-stored row.
func CreateMessage(ctx context.Context, db *gorm.DB, id, roomID string, senderID *string, senderName, senderEmail, body string) (*domain.ChatMessage, error) {
	if id == "" {
		id = uuid.NewString()
	}
	m := &domain.ChatMessage{
		ID:          id,
		RoomID:      roomID,
		SenderID:    senderID,
		SenderName:  senderName,
		SenderEmail: senderEmail,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a room's messages ordered deterministically
// (CreatedAt ASC, ID ASC). Durable-log reads are the only ordered view of a
// room; realtime fan-out makes no ordering promise.
func ListMessages(ctx context.Context, db *gorm.DB, roomID string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	q := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM chat_messages WHERE room_id = ? AND deleted_at IS NULL", roomID).
		Scan(&total).Error
	return total, err
}

// notAuthoredBy scopes a query to messages NOT authored by the given caller.
// A message is the caller's own when sender_id matches their user id, or,
// for unauthenticated claimers, when sender_email matches case-insensitively.
func notAuthoredBy(q *gorm.DB, callerID, callerEmail string) *gorm.DB {
	if callerID != "" {
		q = q.Where("(sender_id IS NULL OR sender_id <> ?)", callerID)
	}
	if callerEmail != "" {
		q = q.Where("(sender_email IS NULL OR sender_email = '' OR LOWER(sender_email) <> LOWER(?))", callerEmail)
	}
	return q
}

// MarkRoomRead flips IsRead for every currently-unread message in the room
// that the caller did not author, in a single UPDATE (never per-message, to
// avoid write amplification on channel open). It returns the number of
// messages marked.
func MarkRoomRead(ctx context.Context, db *gorm.DB, roomID, callerID, callerEmail string) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("room_id = ? AND is_read = ?", roomID, false)
	q = notAuthoredBy(q, callerID, callerEmail)
	res := q.Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread returns the number of unread messages in a room with respect
// to the caller (unread = is_read false AND not authored by the caller).
func CountUnread(ctx context.Context, db *gorm.DB, roomID, callerID, callerEmail string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("room_id = ? AND is_read = ?", roomID, false)
	q = notAuthoredBy(q, callerID, callerEmail)
	err := q.Count(&total).Error
	return total, err
}
