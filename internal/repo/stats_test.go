package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
)

func newStatsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("stats_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.Item{}, &domain.Claim{}, &domain.ChatMessage{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedStatsWorld: owner has one item with two claims (two rooms); a second
// owner's item carries a claim filed by "owner" acting as claimer.
func seedStatsWorld(t *testing.T, db *gorm.DB) (roomA, roomB, roomC string) {
	t.Helper()
	ctx := context.Background()

	itemMine, _ := CreateItem(ctx, db, strptr("owner"), "umbrella")
	itemOther, _ := CreateItem(ctx, db, strptr("other-owner"), "wallet")

	ca, err := CreateClaim(ctx, db, itemMine.ID, strptr("claimer1"), "")
	if err != nil {
		t.Fatalf("seed claim A: %v", err)
	}
	cb, err := CreateClaim(ctx, db, itemMine.ID, nil, "anon@example.com")
	if err != nil {
		t.Fatalf("seed claim B: %v", err)
	}
	cc, err := CreateClaim(ctx, db, itemOther.ID, strptr("owner"), "")
	if err != nil {
		t.Fatalf("seed claim C: %v", err)
	}
	return ca.RoomID, cb.RoomID, cc.RoomID
}

func TestParticipantRoomIDs(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	roomA, roomB, roomC := seedStatsWorld(t, db)

	rooms, err := ParticipantRoomIDs(ctx, db, "owner", "")
	if err != nil {
		t.Fatalf("ParticipantRoomIDs: %v", err)
	}
	got := map[string]bool{}
	for _, r := range rooms {
		got[r] = true
	}
	if len(rooms) != 3 || !got[roomA] || !got[roomB] || !got[roomC] {
		t.Fatalf("owner rooms = %v, want {%s %s %s}", rooms, roomA, roomB, roomC)
	}

	// Email-only claimer sees exactly their room, case-insensitively.
	rooms, err = ParticipantRoomIDs(ctx, db, "", "ANON@Example.com")
	if err != nil || len(rooms) != 1 || rooms[0] != roomB {
		t.Fatalf("email rooms = %v (%v), want [%s]", rooms, err, roomB)
	}

	// No identity: empty, not an error.
	rooms, err = ParticipantRoomIDs(ctx, db, "", "")
	if err != nil || len(rooms) != 0 {
		t.Fatalf("anonymous rooms = %v (%v)", rooms, err)
	}
}

func TestUnreadByRoom_ExcludesOwnMessages(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	roomA, roomB, roomC := seedStatsWorld(t, db)

	// Counterpart traffic: two unread in room A, one in room C.
	CreateMessage(ctx, db, "", roomA, strptr("claimer1"), "Claimer", "", "found it?")
	CreateMessage(ctx, db, "", roomA, strptr("claimer1"), "Claimer", "", "hello?")
	CreateMessage(ctx, db, "", roomC, strptr("other-owner"), "Finder", "", "it is yours")
	// Owner's own message never counts against them.
	CreateMessage(ctx, db, "", roomA, strptr("owner"), "Owner", "", "yes")

	rows, err := UnreadByRoom(ctx, db, "owner", "")
	if err != nil {
		t.Fatalf("UnreadByRoom: %v", err)
	}
	byRoom := map[string]int64{}
	for _, r := range rows {
		byRoom[r.RoomID] = r.Unread
	}
	if byRoom[roomA] != 2 || byRoom[roomC] != 1 {
		t.Fatalf("unread = %v, want roomA=2 roomC=1", byRoom)
	}
	// Quiet rooms are omitted from the aggregate.
	if _, ok := byRoom[roomB]; ok {
		t.Fatalf("room with no unread must be omitted, got %v", byRoom)
	}
}

func TestUnreadByRoom_ScopedToParticipantRooms(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	roomA, _, _ := seedStatsWorld(t, db)

	CreateMessage(ctx, db, "", roomA, strptr("claimer1"), "Claimer", "", "ping")

	// A stranger sees nothing even though messages exist.
	rows, err := UnreadByRoom(ctx, db, "stranger", "")
	if err != nil || len(rows) != 0 {
		t.Fatalf("stranger unread = %v (%v), want none", rows, err)
	}

	// Anonymous caller short-circuits to empty.
	rows, err = UnreadByRoom(ctx, db, "", "")
	if err != nil || len(rows) != 0 {
		t.Fatalf("anonymous unread = %v (%v)", rows, err)
	}
}
