// Package domain defines the persistence models for the wedding-assistant
// backend: knowledge-base documents and their embedded chunks, the web-search
// cache, chat conversations with their messages, cross-conversation memory
// summaries, and the guest/event records the admin tools read. These types
// are mapped with GORM and form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Document status values. A document starts in processing, and ends either
// completed (all chunks embedded and stored) or failed (with ErrorMessage set).
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// Document represents one uploaded knowledge-base file. Its extracted text is
// stored as DocumentChunk rows; the Document row only tracks metadata and the
// ingestion lifecycle.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Filename / FileType / FileSize: upload metadata.
//   - UploadedBy: identifier of the uploading admin user; indexed.
//   - Status: processing | completed | failed (see constants above).
//   - ErrorMessage: set only when Status is failed.
//   - UploadedAt: creation timestamp.
type Document struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Filename     string    `json:"filename"      gorm:"type:varchar(255);not null"`
	FileType     string    `json:"file_type"     gorm:"type:varchar(128);not null"`
	FileSize     int64     `json:"file_size"     gorm:"not null"`
	UploadedBy   string    `json:"uploaded_by"   gorm:"type:varchar(64);not null;index"`
	Status       string    `json:"status"        gorm:"type:varchar(16);not null;default:'processing';check:status IN ('processing','completed','failed')"`
	ErrorMessage string    `json:"error_message,omitempty" gorm:"type:text"`
	UploadedAt   time.Time `json:"uploaded_at"`

	// Chunks are cascade-deleted when the document is removed.
	Chunks []DocumentChunk `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// DocumentChunk is a contiguous slice of a document's extracted text plus its
// embedding vector. Chunks are produced by a fixed-size-with-overlap split,
// so CharacterStart strictly increases with ChunkIndex and consecutive chunks
// overlap by a fixed number of characters (except possibly the last chunk).
// Chunks are immutable once created and removed only via document cascade.
//
// The embedding is stored as a JSON-encoded array of float32 in a TEXT
// column (the pgvector-as-string convention of the original schema); the
// repo layer decodes it for similarity scans.
type DocumentChunk struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	DocumentID     string    `json:"document_id"     gorm:"type:char(36);not null;index:idx_doc_chunks,priority:1"`
	ChunkIndex     int       `json:"chunk_index"     gorm:"not null;index:idx_doc_chunks,priority:2"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	Embedding      string    `json:"-"               gorm:"type:text;not null"`
	TokenCount     int       `json:"token_count"     gorm:"not null"`
	CharacterStart int       `json:"character_start" gorm:"not null"`
	CharacterEnd   int       `json:"character_end"   gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`

	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DocumentChunk.
func (DocumentChunk) TableName() string { return "document_chunks" }

// SearchCacheEntry is a TTL-bounded cache row for the web-search tool, keyed
// by a SHA-256 hash of the normalized query. Rows past ExpiresAt are treated
// as absent by the cache service even though they still physically exist.
// HitCount and LastAccessedAt change only on confirmed cache hits.
type SearchCacheEntry struct {
	ID             string     `json:"id"               gorm:"type:char(36);primaryKey"`
	Query          string     `json:"query"            gorm:"type:text;not null"`
	QueryHash      string     `json:"query_hash"       gorm:"type:char(64);not null;index"`
	Results        string     `json:"results"          gorm:"type:text;not null"`
	HitCount       int        `json:"hit_count"        gorm:"not null;default:0"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"       gorm:"not null;index"`
}

// TableName returns the database table name for SearchCacheEntry.
func (SearchCacheEntry) TableName() string { return "search_cache" }

// Conversation represents one chat session owned by a user. Each conversation
// has a generated title and contains the messages exchanged between the user
// and the assistant.
type Conversation struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_convs"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New conversation'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Chat message roles as sent to the chat-completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage represents a single utterance within a conversation. Only user
// and assistant turns are persisted; system prompts and tool-result messages
// live solely inside the agent loop's working message array.
type ChatMessage struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Role           string         `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	Model          string         `json:"model,omitempty" gorm:"type:varchar(64)"`
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Conversation is the parent session. Messages are cascade-deleted if
	// their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// ConversationSummary is a compressed memory of one finished conversation,
// used to give the assistant continuity context across sessions without
// replaying full transcripts. At most one summary exists per conversation
// (unique index on ConversationID). Summaries are never mutated after
// creation; they are deletable by user action.
type ConversationSummary struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	ConversationID  string    `json:"conversation_id"  gorm:"type:char(36);not null;uniqueIndex:ux_summary_conversation"`
	UserID          string    `json:"user_id"          gorm:"type:varchar(64);not null;index"`
	Summary         string    `json:"summary"          gorm:"type:text;not null"`
	KeyTopics       string    `json:"-"                gorm:"column:key_topics;type:text;not null;default:'[]'"`
	ImportanceScore int       `json:"importance_score" gorm:"not null;check:importance_score BETWEEN 1 AND 10"`
	MessageCount    int       `json:"message_count"    gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for ConversationSummary.
func (ConversationSummary) TableName() string { return "conversation_summaries" }

// Guest attendance values as stored by the RSVP flow.
const (
	AttendingYes     = "yes"
	AttendingNo      = "no"
	AttendingPerhaps = "perhaps"
)

// Guest represents one invited party on the wedding guest list. The RSVP UI
// writes these rows; the chat agent's guest tools only read them.
//
// Attending is empty until the guest responds, then one of yes | no | perhaps.
// TotalGuests counts the people covered by the invitation (party size).
type Guest struct {
	ID              string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	Name            string         `json:"name"               gorm:"type:varchar(255);not null;index"`
	Email           string         `json:"email,omitempty"    gorm:"type:varchar(255)"`
	Phone           string         `json:"phone,omitempty"    gorm:"type:varchar(64)"`
	Language        string         `json:"language,omitempty" gorm:"type:varchar(8)"`
	TotalGuests     int            `json:"total_guests"       gorm:"not null;default:1"`
	Attending       string         `json:"attending,omitempty" gorm:"type:varchar(16);check:attending IN ('','yes','no','perhaps')"`
	SaveTheDateSent bool           `json:"save_the_date_sent" gorm:"not null;default:false"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Guest.
func (Guest) TableName() string { return "guests" }

// Event represents one wedding event (ceremony, reception, brunch, ...).
type Event struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(255);not null"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Venue       string         `json:"venue,omitempty"       gorm:"type:varchar(255)"`
	EventDate   time.Time      `json:"event_date"  gorm:"not null;index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "events" }
