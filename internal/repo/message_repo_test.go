package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
)

// test DB helper
func newMsgRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("msg_repo_%d.db", time.Now().UnixNano()))
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
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateMessage_InsertsAndStoresModel(t *testing.T) {
	db := newMsgRepoDB(t, &domain.Conversation{}, &domain.ChatMessage{})

	// seed conversation in case you enforce FK in your schema
	if err := db.Create(&domain.Conversation{ID: "c1", UserID: "u1", Title: "t"}).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	msg, err := CreateMessage(db, "c1", "assistant", "hello", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if msg.ID == "" || msg.ConversationID != "c1" || msg.Role != "assistant" || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Model != "gpt-4o-mini" {
		t.Fatalf("model not stored correctly: %+v", msg)
	}
	if msg.CreatedAt.IsZero() || time.Since(msg.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", msg.CreatedAt)
	}

	// read it back
	got, err := GetMessage(db, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.ID != msg.ID {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, msg)
	}
}

func TestListMessages_OrderAndLimit(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})

	// craft deterministic ordering:
	// same CreatedAt for first two; ID "a" should come before "b"
	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(1 * time.Second)

	mA := domain.ChatMessage{ID: "a", ConversationID: "c2", Role: "user", Content: "x", CreatedAt: t0}
	mB := domain.ChatMessage{ID: "b", ConversationID: "c2", Role: "user", Content: "y", CreatedAt: t0}
	mZ := domain.ChatMessage{ID: "z", ConversationID: "c2", Role: "assistant", Content: "z", CreatedAt: t1}
	if err := db.Create(&mB).Error; err != nil { // insert out of order on purpose
		t.Fatalf("seed mB: %v", err)
	}
	if err := db.Create(&mA).Error; err != nil {
		t.Fatalf("seed mA: %v", err)
	}
	if err := db.Create(&mZ).Error; err != nil {
		t.Fatalf("seed mZ: %v", err)
	}

	// limit <= 0 → all
	all, err := ListMessages(db, "c2", 0)
	if err != nil {
		t.Fatalf("ListMessages(all) error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "z" {
		t.Fatalf("unexpected order/all: %+v", all)
	}

	// limit > 0
	top2, err := ListMessages(db, "c2", 2)
	if err != nil {
		t.Fatalf("ListMessages(limit) error: %v", err)
	}
	if len(top2) != 2 || top2[0].ID != "a" || top2[1].ID != "b" {
		t.Fatalf("unexpected order/limit: %+v", top2)
	}
}

func TestCountMessages_Error_NoTable(t *testing.T) {
	db := newMsgRepoDB(t /* no migration for ChatMessage */)
	if _, err := CountMessages(db, "cx"); err == nil {
		t.Fatalf("expected error due to missing chat_messages table")
	}
}

func TestCountMessages_Success(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})

	// two messages in cx, one in cy
	if err := db.Create(&domain.ChatMessage{ID: "m1", ConversationID: "cx", Role: "user", Content: "1"}).Error; err != nil {
		t.Fatalf("seed m1: %v", err)
	}
	if err := db.Create(&domain.ChatMessage{ID: "m2", ConversationID: "cx", Role: "assistant", Content: "2"}).Error; err != nil {
		t.Fatalf("seed m2: %v", err)
	}
	if err := db.Create(&domain.ChatMessage{ID: "m3", ConversationID: "cy", Role: "user", Content: "3"}).Error; err != nil {
		t.Fatalf("seed m3: %v", err)
	}

	total, err := CountMessages(db, "cx")
	if err != nil {
		t.Fatalf("CountMessages error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2, got %d", total)
	}
}

func TestListMessagesPage_Pagination(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})

	// five messages with ascending CreatedAt + IDs
	base := time.Date(2025, 7, 1, 11, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		m := domain.ChatMessage{
			ID:             string(rune('a' + i - 1)),
			ConversationID: "c3",
			Role:           "user",
			Content:        "x",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed m%d: %v", i, err)
		}
	}

	out, err := ListMessagesPage(db, "c3", 1, 2) // expect 2nd and 3rd in order
	if err != nil {
		t.Fatalf("ListMessagesPage error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "c" {
		t.Fatalf("unexpected page slice: %+v", out)
	}
}

func TestGetMessage_FoundAndNotFound(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})

	// not found
	if _, err := GetMessage(db, "nope"); err == nil {
		t.Fatalf("expected gorm.ErrRecordNotFound")
	}

	// insert & get
	msg := &domain.ChatMessage{ID: "mid", ConversationID: "c9", Role: "user", Content: "hi"}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	got, err := GetMessage(db, "mid")
	if err != nil {
		t.Fatalf("GetMessage error: %v", err)
	}
	if got.ID != "mid" || got.ConversationID != "c9" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

// sanity: the repository funcs accept a *gorm.DB that may have context/tx set;
// ensure they work with a context-scoped DB too
func TestRepoWithContextHandles(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})
	ctx := context.WithValue(context.Background(), ctxKey("k"), "v")
	tdb := db.WithContext(ctx)

	if _, err := CreateMessage(tdb, "cX", "user", "hello", ""); err != nil {
		t.Fatalf("CreateMessage with context: %v", err)
	}
	if _, err := ListMessages(tdb, "cX", 10); err != nil {
		t.Fatalf("ListMessages with context: %v", err)
	}
	if _, err := CountMessages(tdb, "cX"); err != nil {
		t.Fatalf("CountMessages with context: %v", err)
	}
	if _, err := ListMessagesPage(tdb, "cX", 0, 1); err != nil {
		t.Fatalf("ListMessagesPage with context: %v", err)
	}
}

type ctxKey string
