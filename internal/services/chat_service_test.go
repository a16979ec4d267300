package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
	"github.com/reclaimhq/go-reclaim-backend/internal/realtime"
	"github.com/reclaimhq/go-reclaim-backend/internal/repo"
)

func recvEvent(t *testing.T, c chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case ev, ok := <-c:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return realtime.Event{}
}

func newChatService(t *testing.T) (*ChatService, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(16)
	return NewChatService(newTestDB(t), hub), hub
}

func TestChatService_Post_ParticipantGated(t *testing.T) {
	svc, _ := newChatService(t)
	claim := seedClaim(t, svc.DB, "owner-1", "claimer-1", "c@example.com")
	ctx := context.Background()

	if _, err := svc.Post(ctx, "no-such-room", "owner-1", "", PostMessageInput{Body: "hi"}); !errors.Is(err, ErrClaimNotFound) {
		t.Fatalf("missing room: expected ErrClaimNotFound, got %v", err)
	}
	if _, err := svc.Post(ctx, claim.RoomID, "stranger", "s@example.com", PostMessageInput{Body: "hi"}); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("stranger: expected ErrNotParticipant, got %v", err)
	}
	if _, err := svc.Post(ctx, claim.RoomID, "owner-1", "", PostMessageInput{Body: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank body: expected ErrEmptyMessage, got %v", err)
	}

	svc.MaxBodyRunes = 5
	if _, err := svc.Post(ctx, claim.RoomID, "owner-1", "", PostMessageInput{Body: "too long now"}); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("long body: expected ErrMessageTooLong, got %v", err)
	}
}

func TestChatService_Post_DurableThenPublished(t *testing.T) {
	svc, hub := newChatService(t)
	claim := seedClaim(t, svc.DB, "owner-1", "claimer-1", "c@example.com")
	ctx := context.Background()

	sub := hub.Subscribe(claim.RoomID)
	defer sub.Close()
	inbox := hub.Subscribe(realtime.InboxKey("owner-1"))
	defer inbox.Close()

	msg, err := svc.Post(ctx, claim.RoomID, "claimer-1", "c@example.com", PostMessageInput{
		SenderName: "  jane   doe ",
		Body:       "  found near the station  ",
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if msg.Body != "found near the station" {
		t.Fatalf("Body = %q, want trimmed", msg.Body)
	}
	if msg.SenderName != "Jane Doe" {
		t.Fatalf("SenderName = %q, want normalized", msg.SenderName)
	}
	if msg.IsRead {
		t.Fatal("new messages start unread")
	}

	// The row must be durable regardless of realtime delivery.
	if _, err := repo.GetMessage(ctx, svc.DB, msg.ID); err != nil {
		t.Fatalf("message not persisted: %v", err)
	}

	ev := recvEvent(t, sub.C)
	if ev.Type != realtime.EventMessage {
		t.Fatalf("room event Type = %q, want message", ev.Type)
	}
	got, ok := ev.Payload.(*domain.ChatMessage)
	if !ok || got.ID != msg.ID {
		t.Fatalf("room event payload = %#v, want the stored message", ev.Payload)
	}

	// The owner, as the counterpart, gets an unread nudge on their inbox.
	uev := recvEvent(t, inbox.C)
	if uev.Type != realtime.EventUnread || uev.RoomID != claim.RoomID {
		t.Fatalf("inbox event = %+v, want unread for room", uev)
	}
}

func TestChatService_Post_DuplicateIDReturnsStoredRow(t *testing.T) {
	svc, hub := newChatService(t)
	claim := seedClaim(t, svc.DB, "owner-1", "claimer-1", "c@example.com")
	ctx := context.Background()

	first, err := svc.Post(ctx, claim.RoomID, "claimer-1", "c@example.com", PostMessageInput{
		ID:   "msg-fixed-id",
		Body: "original",
	})
	if err != nil {
		t.Fatalf("first Post: %v", err)
	}

	sub := hub.Subscribe(claim.RoomID)
	defer sub.Close()

	again, err := svc.Post(ctx, claim.RoomID, "claimer-1", "c@example.com", PostMessageInput{
		ID:   "msg-fixed-id",
		Body: "resend with different body",
	})
	if err != nil {
		t.Fatalf("resend Post: %v", err)
	}
	if again.ID != first.ID || again.Body != "original" {
		t.Fatalf("resend returned %q/%q, want the stored row", again.ID, again.Body)
	}

	// Resends are not re-published.
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event on resend: %+v", ev)
	default:
	}

	var count int64
	svc.DB.Model(&domain.ChatMessage{}).Where("room_id = ?", claim.RoomID).Count(&count)
	if count != 1 {
		t.Fatalf("message count = %d, want 1", count)
	}
}

func TestChatService_History_MarksReadOnce(t *testing.T) {
	svc, hub := newChatService(t)
	claim := seedClaim(t, svc.DB, "owner-1", "claimer-1", "c@example.com")
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		if _, err := svc.Post(ctx, claim.RoomID, "claimer-1", "c@example.com", PostMessageInput{Body: body}); err != nil {
			t.Fatalf("seed post: %v", err)
		}
	}
	if _, err := svc.Post(ctx, claim.RoomID, "owner-1", "", PostMessageInput{SenderName: "Owner", Body: "mine"}); err != nil {
		t.Fatalf("owner post: %v", err)
	}

	sub := hub.Subscribe(claim.RoomID)
	defer sub.Close()

	msgs, err := svc.History(ctx, claim.RoomID, "owner-1", "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("history len = %d, want 4", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatal("history out of order")
		}
	}

	// The three claimer messages were marked; a read event went out.
	ev := recvEvent(t, sub.C)
	if ev.Type != realtime.EventRead {
		t.Fatalf("event Type = %q, want read", ev.Type)
	}

	unread, err := repo.CountUnread(ctx, svc.DB, claim.RoomID, "owner-1", "")
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("unread after history = %d, want 0", unread)
	}

	// Second fetch marks nothing and publishes nothing.
	if _, err := svc.History(ctx, claim.RoomID, "owner-1", "", 0); err != nil {
		t.Fatalf("second History: %v", err)
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event on no-op history: %+v", ev)
	default:
	}

	// The claimer still has the owner's message unread; the claimer's own
	// messages were never unread for them.
	claimerUnread, _ := repo.CountUnread(ctx, svc.DB, claim.RoomID, "claimer-1", "c@example.com")
	if claimerUnread != 1 {
		t.Fatalf("claimer unread = %d, want 1", claimerUnread)
	}
}

func TestChatService_History_Gated(t *testing.T) {
	svc, _ := newChatService(t)
	claim := seedClaim(t, svc.DB, "owner-1", "claimer-1", "c@example.com")
	ctx := context.Background()

	if _, err := svc.History(ctx, "missing-room", "owner-1", "", 0); !errors.Is(err, ErrClaimNotFound) {
		t.Fatalf("missing room: expected ErrClaimNotFound, got %v", err)
	}
	if _, err := svc.History(ctx, claim.RoomID, "stranger", "", 0); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("stranger: expected ErrNotParticipant, got %v", err)
	}
}

func TestChatService_DisplayNameFallbacks(t *testing.T) {
	svc, _ := newChatService(t)

	cases := []struct {
		name  string
		email string
		want  string
	}{
		{"jane doe", "", "Jane Doe"},
		{"", "finder@example.com", "Finder"},
		{"", "", "Guest"},
		{"  spaced   out  ", "", "Spaced Out"},
	}
	for _, tc := range cases {
		if got := svc.displayName(tc.name, tc.email); got != tc.want {
			t.Fatalf("displayName(%q, %q) = %q, want %q", tc.name, tc.email, got, tc.want)
		}
	}
}

func TestChatService_AnonymousClaimerHasNoInboxPush(t *testing.T) {
	svc, hub := newChatService(t)
	claim := seedClaim(t, svc.DB, "owner-1", "", "anon@example.com")
	ctx := context.Background()

	inbox := hub.Subscribe(realtime.InboxKey(""))
	defer inbox.Close()

	if _, err := svc.Post(ctx, claim.RoomID, "owner-1", "", PostMessageInput{SenderName: "Owner", Body: "hello"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	select {
	case ev := <-inbox.C:
		t.Fatalf("email-only claimers must not get inbox pushes, got %+v", ev)
	default:
	}
}

func TestChatService_HistoryOrderIsStable(t *testing.T) {
	svc, _ := newChatService(t)
	claim := seedClaim(t, svc.DB, "owner-1", "claimer-1", "c@example.com")
	ctx := context.Background()

	// Same-timestamp rows tie-break on id; ids chosen out of insert order.
	for _, id := range []string{"b-second", "a-first"} {
		if _, err := repo.CreateMessage(ctx, svc.DB, id, claim.RoomID, nil, "Claimer", "c@example.com", "x"); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	svc.DB.Model(&domain.ChatMessage{}).Where("room_id = ?", claim.RoomID).
		Update("created_at", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	msgs, err := svc.History(ctx, claim.RoomID, "owner-1", "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, ",") != "a-first,b-second" {
		t.Fatalf("order = %v, want id tie-break ascending", ids)
	}
}
