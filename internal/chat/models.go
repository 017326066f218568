package chat

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type Thread struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	ThreadID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"thread_id"`
	UserID   string `gorm:"size:36;index:idx_chat_thread_user_activity,priority:1;not null" json:"-"`
	Title    string `gorm:"type:varchar(255)" json:"title"`
	// unix nanoseconds, compared numerically on every driver
	LastActivity int64     `gorm:"not null;index:idx_chat_thread_user_activity,priority:2" json:"-"`
	ExpiresAt    int64     `gorm:"not null;index" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Thread) TableName() string { return "chat_threads" }

func (t Thread) LastUpdated() time.Time { return time.Unix(0, t.LastActivity).UTC() }

type MessageMetadata struct {
	ToolsUsed []string `json:"tools_used,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

type Message struct {
	ID           uint64           `gorm:"primaryKey;autoIncrement" json:"-"`
	ThreadID     string           `gorm:"type:varchar(64);index;not null" json:"-"`
	Role         string           `gorm:"type:varchar(16);not null" json:"role"`
	Content      string           `gorm:"type:text;not null" json:"content"`
	MetadataJSON string           `gorm:"column:metadata;type:text" json:"-"`
	Metadata     *MessageMetadata `gorm:"-" json:"metadata,omitempty"`
	CreatedAt    time.Time        `json:"timestamp"`
}

func (Message) TableName() string { return "chat_messages" }

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.Metadata == nil {
		return nil
	}
	b, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}
	m.MetadataJSON = string(b)
	return nil
}

func (m *Message) AfterFind(*gorm.DB) error {
	if m.MetadataJSON == "" {
		return nil
	}
	var meta MessageMetadata
	if err := json.Unmarshal([]byte(m.MetadataJSON), &meta); err != nil {
		// unreadable metadata never hides the message itself
		return nil
	}
	m.Metadata = &meta
	return nil
}

// ThreadSummary is one row of a thread listing.
type ThreadSummary struct {
	ThreadID    string    `json:"thread_id"`
	Title       string    `json:"title,omitempty"`
	Preview     string    `json:"preview"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}
