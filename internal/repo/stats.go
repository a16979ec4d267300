// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the unread
// tracker: per-room unread counts across every room where a caller is a
// participant. Each function is context-aware and safe to call from services
// or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// RoomUnread is one row of the per-room unread aggregate.
type RoomUnread struct {
	RoomID string
	Unread int64
}

// participantRooms composes the participant scope: rooms of claims on items
// the caller owns, plus rooms of claims the caller filed (user id or
// case-insensitive email).
func participantRooms(db *gorm.DB, userID, email string) *gorm.DB {
	q := db.Table("claims").
		Select("claims.room_id").
		Joins("JOIN items ON items.id = claims.item_id AND items.deleted_at IS NULL").
		Where("claims.deleted_at IS NULL")
	switch {
	case userID != "" && email != "":
		return q.Where("items.owner_user_id = ? OR claims.claimer_user_id = ? OR LOWER(claims.claimer_email) = LOWER(?)",
			userID, userID, email)
	case userID != "":
		return q.Where("items.owner_user_id = ? OR claims.claimer_user_id = ?", userID, userID)
	default:
		return q.Where("LOWER(claims.claimer_email) = LOWER(?)", email)
	}
}

// ParticipantRoomIDs returns every room id the caller may read, newest claim
// first. A caller with neither identity gets an empty slice.
func ParticipantRoomIDs(ctx context.Context, db *gorm.DB, userID, email string) ([]string, error) {
	if userID == "" && email == "" {
		return []string{}, nil
	}
	var rooms []string
	err := participantRooms(db.WithContext(ctx), userID, email).
		Order("claims.created_at desc").
		Pluck("claims.room_id", &rooms).Error
	return rooms, err
}

// UnreadByRoom returns unread counts grouped by room for every participant
// room of the caller. Rooms with zero unread messages are omitted; callers
// merge against ParticipantRoomIDs when a dense map is needed. A message
// counts as unread when is_read is false and the caller did not author it.
func UnreadByRoom(ctx context.Context, db *gorm.DB, userID, email string) ([]RoomUnread, error) {
	if userID == "" && email == "" {
		return []RoomUnread{}, nil
	}
	rooms := participantRooms(db.WithContext(ctx), userID, email)

	q := db.WithContext(ctx).
		Table("chat_messages").
		Select("chat_messages.room_id AS room_id, COUNT(*) AS unread").
		Where("chat_messages.deleted_at IS NULL").
		Where("chat_messages.is_read = ?", false).
		Where("chat_messages.room_id IN (?)", rooms)
	q = notAuthoredBy(q, userID, email)

	var out []RoomUnread
	err := q.Group("chat_messages.room_id").Scan(&out).Error
	return out, err
}
