package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

func newMessageRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("message_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.ChatMessage{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateMessage_MintsIDWhenAbsent(t *testing.T) {
	db := newMessageRepoDB(t)
	m, err := CreateMessage(context.Background(), db, "", "room1", strptr("u1"), "Jane", "", "hello")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected minted id")
	}
	if m.IsRead {
		t.Fatalf("new message must start unread")
	}
}

func TestCreateMessage_DuplicateID(t *testing.T) {
	db := newMessageRepoDB(t)
	ctx := context.Background()
	if _, err := CreateMessage(ctx, db, "m1", "room1", strptr("u1"), "Jane", "", "hello"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	// Callers branch on the sentinel, not on driver text.
	_, err := CreateMessage(ctx, db, "m1", "room1", strptr("u1"), "Jane", "", "hello again")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// The durable row keeps the original body.
	got, err := GetMessage(ctx, db, "m1")
	if err != nil || got.Body != "hello" {
		t.Fatalf("stored row mutated: %v / %+v", err, got)
	}
}

func TestListMessages_OrderAndLimit(t *testing.T) {
	db := newMessageRepoDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2", "m3"} {
		if _, err := CreateMessage(ctx, db, id, "room1", strptr("u1"), "Jane", "", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
		if err := db.Model(&domain.ChatMessage{}).Where("id = ?", id).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error; err != nil {
			t.Fatalf("backdate %s: %v", id, err)
		}
	}
	// Tie on created_at between m4 and m5 resolves by id.
	for _, id := range []string{"m5", "m4"} {
		if _, err := CreateMessage(ctx, db, id, "room1", strptr("u1"), "Jane", "", "tie"); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
		if err := db.Model(&domain.ChatMessage{}).Where("id = ?", id).
			Update("created_at", base.Add(time.Hour)).Error; err != nil {
			t.Fatalf("backdate %s: %v", id, err)
		}
	}

	got, err := ListMessages(ctx, db, "room1", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	var order []string
	for _, m := range got {
		order = append(order, m.ID)
	}
	want := []string{"m1", "m2", "m3", "m4", "m5"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}

	limited, err := ListMessages(ctx, db, "room1", 2)
	if err != nil || len(limited) != 2 || limited[0].ID != "m1" {
		t.Fatalf("limited list: %v / %+v", err, limited)
	}
}

func TestMarkRoomRead_SkipsOwnMessages(t *testing.T) {
	db := newMessageRepoDB(t)
	ctx := context.Background()

	// Two from the counterpart, one authored by the caller.
	CreateMessage(ctx, db, "a1", "room1", strptr("owner"), "Owner", "", "hi")
	CreateMessage(ctx, db, "a2", "room1", strptr("owner"), "Owner", "", "still there?")
	CreateMessage(ctx, db, "b1", "room1", strptr("claimer"), "Claimer", "", "yes")

	n, err := CountUnread(ctx, db, "room1", "claimer", "")
	if err != nil || n != 2 {
		t.Fatalf("CountUnread before = %d (%v), want 2", n, err)
	}

	marked, err := MarkRoomRead(ctx, db, "room1", "claimer", "")
	if err != nil || marked != 2 {
		t.Fatalf("MarkRoomRead = %d (%v), want 2", marked, err)
	}

	// Second pass is a no-op.
	marked, err = MarkRoomRead(ctx, db, "room1", "claimer", "")
	if err != nil || marked != 0 {
		t.Fatalf("repeat MarkRoomRead = %d (%v), want 0", marked, err)
	}

	// The caller's own message stays unread from the counterpart's view.
	n, err = CountUnread(ctx, db, "room1", "owner", "")
	if err != nil || n != 1 {
		t.Fatalf("owner unread = %d (%v), want 1", n, err)
	}
}

func TestMarkRoomRead_EmailAuthorship(t *testing.T) {
	db := newMessageRepoDB(t)
	ctx := context.Background()

	// Email-only claimer authored one message; the owner authored another.
	CreateMessage(ctx, db, "e1", "room1", nil, "Guest", "anon@example.com", "mine")
	CreateMessage(ctx, db, "o1", "room1", strptr("owner"), "Owner", "", "theirs")

	// Case-folded email match excludes the claimer's own message.
	n, err := CountUnread(ctx, db, "room1", "", "ANON@Example.com")
	if err != nil || n != 1 {
		t.Fatalf("claimer unread = %d (%v), want 1", n, err)
	}

	marked, err := MarkRoomRead(ctx, db, "room1", "", "ANON@Example.com")
	if err != nil || marked != 1 {
		t.Fatalf("MarkRoomRead = %d (%v), want 1", marked, err)
	}

	got, _ := GetMessage(ctx, db, "e1")
	if got.IsRead {
		t.Fatalf("claimer's own message must not be marked read by their fetch")
	}
}

func TestCountMessages_ErrorWithoutTable(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "no_table.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if _, err := CountMessages(context.Background(), db, "room1"); err == nil {
		t.Fatalf("expected error without table")
	}
}
