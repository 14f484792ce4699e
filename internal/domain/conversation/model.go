package conversation

import "github.com/nethira/chatcore/internal/database"

// Visibility values
const (
	VisibilityPrivate = "private"
	VisibilityShared  = "shared"
)

// Conversation is owned exclusively by its creator and is archived, never
// deleted.
type Conversation struct {
	database.BaseModel
	UserID       string `gorm:"column:user_id;type:uuid;not null;index"`
	Title        string `gorm:"column:title;default:New Chat"`
	Model        string `gorm:"column:model"`
	SystemPrompt string `gorm:"column:system_prompt;type:text"`
	Visibility   string `gorm:"column:visibility;default:private"`
	IsArchived   bool   `gorm:"column:is_archived;default:false"`
}

func (Conversation) TableName() string {
	return "conversations"
}
