// Package services – ChatService
//
// This file implements the ChatService, which owns messaging inside a
// claim's room. Persistence is the contract: a send has happened only once
// the message row is durable, and the realtime publish that follows is pure
// notification. Clients may supply their own message ids so that a
// realtime-received copy and a later history-fetched copy de-duplicate, and
// so that at-least-once resends collapse onto the stored row.
//
// Reading history is also the read receipt: fetching a room's log marks
// every message the caller had not yet read, in one batch.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
	"github.com/reclaimhq/go-reclaim-backend/internal/realtime"
	"github.com/reclaimhq/go-reclaim-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PostMessageInput carries one inbound message. ID is optional; when the
// client supplies one, resends with the same id are idempotent.
type PostMessageInput struct {
	ID         string
	SenderName string
	Body       string
}

// ChatService coordinates message persistence, read tracking, and realtime
// fan-out for claim rooms.
type ChatService struct {
	DB  *gorm.DB
	Bus realtime.Bus

	// MaxBodyRunes caps message bodies by rune length (0 disables the cap).
	MaxBodyRunes int

	// NameLocale drives display-name casing.
	NameLocale language.Tag
}

// NewChatService constructs a ChatService with sane defaults.
func NewChatService(db *gorm.DB, bus realtime.Bus) *ChatService {
	return &ChatService{
		DB:           db,
		Bus:          bus,
		MaxBodyRunes: 4000,
		NameLocale:   language.English,
	}
}

// Post appends a message to the room's durable log and then notifies
// realtime subscribers. Persistence failure is the failure of the whole
// send; a resend carrying an already-stored id returns the stored row.
func (s *ChatService) Post(ctx context.Context, roomID, callerID, callerEmail string, in PostMessageInput) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Post",
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
		return nil, ErrNotParticipant
	}

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrMessageTooLong
	}

	var senderID *string
	if callerID != "" {
		senderID = &callerID
	}
	name := s.displayName(in.SenderName, callerEmail)

	msg, err := repo.CreateMessage(ctx, s.DB, strings.TrimSpace(in.ID), roomID, senderID, name, callerEmail, body)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// At-least-once resend: the first delivery already persisted
			// and published, so hand back the stored row and stop.
			return repo.GetMessage(ctx, s.DB, strings.TrimSpace(in.ID))
		}
		return nil, err
	}

	s.publishMessage(ctx, claim, msg, callerID, callerEmail)
	return msg, nil
}

// History marks every message the caller had not read, then returns the
// room's log in stable order (created_at, then id). The batch mark is the
// read receipt; counterparts learn about it through a room-scoped read
// event.
func (s *ChatService) History(ctx context.Context, roomID, callerID, callerEmail string, limit int) ([]domain.ChatMessage, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "History",
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
		return nil, ErrNotParticipant
	}

	marked, err := repo.MarkRoomRead(ctx, s.DB, roomID, callerID, callerEmail)
	if err != nil {
		return nil, err
	}
	if marked > 0 && s.Bus != nil {
		s.Bus.Publish(roomID, realtime.Event{
			Type: realtime.EventRead,
			Payload: map[string]any{
				"reader_id":    callerID,
				"reader_email": callerEmail,
				"marked":       marked,
			},
		})
		if callerID != "" {
			s.pushUnread(ctx, callerID, callerEmail, roomID)
		}
	}

	return repo.ListMessages(ctx, s.DB, roomID, limit)
}

// publishMessage fans the stored message out to the room and nudges the
// counterpart's inbox with their fresh unread count. Publish failures do not
// exist: the hub never blocks and the durable log already holds the truth.
func (s *ChatService) publishMessage(ctx context.Context, claim *domain.Claim, msg *domain.ChatMessage, callerID, callerEmail string) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(msg.RoomID, realtime.Event{
		Type:    realtime.EventMessage,
		Payload: msg,
	})

	// The counterpart is whichever participant did not send this message.
	// Email-only claimers have no inbox stream and rely on polling.
	if cpID, cpEmail := counterpart(claim, callerID, callerEmail); cpID != "" {
		s.pushUnread(ctx, cpID, cpEmail, msg.RoomID)
	}
}

// pushUnread publishes the user's current unread count for room to their
// inbox stream.
func (s *ChatService) pushUnread(ctx context.Context, userID, email, roomID string) {
	n, err := repo.CountUnread(ctx, s.DB, roomID, userID, email)
	if err != nil {
		return
	}
	s.Bus.Publish(realtime.InboxKey(userID), realtime.Event{
		Type:   realtime.EventUnread,
		RoomID: roomID,
		Payload: map[string]any{
			"room_id": roomID,
			"unread":  n,
		},
	})
}

// counterpart resolves the other participant of a claim relative to the
// sender. Returns empty strings when the counterpart has no user id.
func counterpart(claim *domain.Claim, senderID, senderEmail string) (userID, email string) {
	ownerIs := senderID != "" && claim.Item.OwnerUserID != nil && *claim.Item.OwnerUserID == senderID
	if ownerIs {
		if claim.ClaimerUserID != nil {
			return *claim.ClaimerUserID, claim.ClaimerEmail
		}
		return "", claim.ClaimerEmail
	}
	if claim.Item.OwnerUserID != nil {
		return *claim.Item.OwnerUserID, ""
	}
	return "", ""
}

// displayName normalizes a sender's display name: whitespace collapsed,
// title-cased, falling back to the email local part and finally "Guest".
func (s *ChatService) displayName(name, email string) string {
	name = nameSpaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" && email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			name = email[:at]
		}
	}
	if name == "" {
		return "Guest"
	}
	locale := s.NameLocale
	if locale == language.Und {
		locale = language.English
	}
	return cases.Title(locale).String(name)
}

// nameSpaceRE collapses consecutive whitespace to a single space.
var nameSpaceRE = regexp.MustCompile(`\s+`)
