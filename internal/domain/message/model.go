package message

import "github.com/nethira/chatcore/internal/database"

// Roles a message can carry
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Statuses of an exchange
const (
	StatusCompleted = "completed"
	StatusStreaming = "streaming"
	StatusFailed    = "failed"
)

// Message is append-only except for two sanctioned in-place writes: editing
// a user message's content, and regeneration overwriting an assistant
// message while preserving its ID.
type Message struct {
	database.BaseModel
	ConversationID string `gorm:"column:conversation_id;type:uuid;not null;index"`
	Role           string `gorm:"column:role;not null"`
	Content        string `gorm:"column:content;type:text;not null"`
	TokenCount     int    `gorm:"column:token_count;default:0"`
	LatencyMs      int64  `gorm:"column:latency_ms;default:0"`
	Status         string `gorm:"column:status;default:completed"`
	Model          string `gorm:"column:model"`
}

func (Message) TableName() string {
	return "messages"
}

// Version is a snapshot of an assistant message taken immediately before
// regeneration overwrites it. Append-only.
type Version struct {
	database.BaseModel
	MessageID  string `gorm:"column:message_id;type:uuid;not null;index"`
	Content    string `gorm:"column:content;type:text;not null"`
	Model      string `gorm:"column:model"`
	TokenCount int    `gorm:"column:token_count;default:0"`
}

func (Version) TableName() string {
	return "message_versions"
}
