package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Document{}).TableName():            "documents",
		(DocumentChunk{}).TableName():       "document_chunks",
		(SearchCacheEntry{}).TableName():    "search_cache",
		(Conversation{}).TableName():        "conversations",
		(ChatMessage{}).TableName():         "chat_messages",
		(ConversationSummary{}).TableName(): "conversation_summaries",
		(Guest{}).TableName():               "guests",
		(Event{}).TableName():               "events",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(
		&Document{}, &DocumentChunk{}, &SearchCacheEntry{},
		&Conversation{}, &ChatMessage{}, &ConversationSummary{},
		&Guest{}, &Event{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Document{}, &DocumentChunk{}, &SearchCacheEntry{}, &Conversation{}, &ChatMessage{}, &ConversationSummary{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	if !m.HasIndex(&DocumentChunk{}, "idx_doc_chunks") {
		t.Fatalf("expected index idx_doc_chunks on document_chunks")
	}
	if !m.HasIndex(&ChatMessage{}, "idx_conv_msgs") {
		t.Fatalf("expected index idx_conv_msgs on chat_messages")
	}
	if !m.HasIndex(&ConversationSummary{}, "ux_summary_conversation") {
		t.Fatalf("expected unique index ux_summary_conversation on conversation_summaries")
	}

	now := time.Now().UTC()

	doc := &Document{ID: "d1", Filename: "venues.txt", FileType: "text/plain", FileSize: 10, UploadedBy: "u1", Status: DocumentStatusProcessing, UploadedAt: now}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("insert document: %v", err)
	}
	ck := &DocumentChunk{ID: "k1", DocumentID: "d1", ChunkIndex: 0, Content: "hello", Embedding: "[0.1]", TokenCount: 2, CharacterStart: 0, CharacterEnd: 5, CreatedAt: now}
	if err := db.Create(ck).Error; err != nil {
		t.Fatalf("insert chunk: %v", err)
	}

	// CASCADE: deleting the document should delete its chunks.
	if err := db.Unscoped().Delete(&Document{}, "id = ?", "d1").Error; err != nil {
		t.Fatalf("delete document: %v", err)
	}
	var cnt int64
	if err := db.Model(&DocumentChunk{}).Where("document_id = ?", "d1").Count(&cnt).Error; err != nil {
		t.Fatalf("count chunks after document delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected chunks to cascade-delete when document deleted, got count=%d", cnt)
	}

	// CASCADE: deleting a conversation should delete its messages.
	conv := &Conversation{ID: "c1", UserID: "u1", Title: "T", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	msg := &ChatMessage{ID: "m1", ConversationID: "c1", Role: RoleUser, Content: "hi", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if err := db.Unscoped().Delete(&Conversation{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if err := db.Model(&ChatMessage{}).Where("conversation_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages after conversation delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete when conversation deleted, got count=%d", cnt)
	}
}

func TestSummaryUniquePerConversation(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Conversation{}, &ConversationSummary{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()
	s1 := &ConversationSummary{ID: "s1", ConversationID: "c1", UserID: "u1", Summary: "a", KeyTopics: "[]", ImportanceScore: 5, MessageCount: 4, CreatedAt: now}
	if err := db.Create(s1).Error; err != nil {
		t.Fatalf("insert first summary: %v", err)
	}
	s2 := &ConversationSummary{ID: "s2", ConversationID: "c1", UserID: "u1", Summary: "b", KeyTopics: "[]", ImportanceScore: 5, MessageCount: 6, CreatedAt: now}
	if err := db.Create(s2).Error; err == nil {
		t.Fatalf("expected unique constraint violation for second summary of same conversation")
	}
}
