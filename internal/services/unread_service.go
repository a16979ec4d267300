// Package services – UnreadService
//
// This file implements unread aggregation across every room the caller
// participates in. Counts are computed from the durable message log on each
// call; realtime unread pushes are a latency optimization layered on top and
// interval polling of this service is the degraded-mode fallback.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UnreadSummary is the aggregate unread state for one caller.
type UnreadSummary struct {
	// ByRoom maps room id to that room's unread count. Rooms with zero
	// unread messages are present with an explicit 0 so clients can clear
	// stale badges.
	ByRoom map[string]int64 `json:"unread_counts_by_room"`
	// Total is the sum over ByRoom.
	Total int64 `json:"total_unread"`
}

// UnreadService aggregates unread counts across participant rooms.
type UnreadService struct {
	DB *gorm.DB
}

// NewUnreadService constructs an UnreadService.
func NewUnreadService(db *gorm.DB) *UnreadService {
	return &UnreadService{DB: db}
}

// Counts returns per-room and total unread counts for the caller. A message
// is unread for the caller when it is not yet marked read and the caller did
// not author it; rooms are those the caller participates in as item owner or
// claimer.
func (s *UnreadService) Counts(ctx context.Context, callerID, callerEmail string) (*UnreadSummary, error) {
	tr := otel.Tracer("services/UnreadService")
	ctx, span := tr.Start(ctx, "Counts",
		trace.WithAttributes(attribute.String("user.id", callerID)),
	)
	defer span.End()

	rooms, err := repo.ParticipantRoomIDs(ctx, s.DB, callerID, callerEmail)
	if err != nil {
		return nil, err
	}

	out := &UnreadSummary{ByRoom: make(map[string]int64, len(rooms))}
	for _, r := range rooms {
		out.ByRoom[r] = 0
	}

	counts, err := repo.UnreadByRoom(ctx, s.DB, callerID, callerEmail)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		out.ByRoom[c.RoomID] = c.Unread
		out.Total += c.Unread
	}
	return out, nil
}
