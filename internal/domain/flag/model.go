package flag

import "github.com/nethira/chatcore/internal/database"

// Moderation actions an admin can take on a flag
const (
	ActionNone  = "none"
	ActionMask  = "masked"
	ActionBlock = "blocked"
)

// MaskedContent replaces the offending message body when a flag is masked
const MaskedContent = "[removed by moderation]"

// ContentFlag is an append-only record of a moderation hit. MessageID links
// the flagged message, which is persisted as failed; the text is also copied
// onto the row so the record survives a later masking of the message.
type ContentFlag struct {
	database.BaseModel
	UserID         string `gorm:"column:user_id;type:uuid;not null;index"`
	ConversationID string `gorm:"column:conversation_id;type:uuid;index"`
	MessageID      string `gorm:"column:message_id;type:uuid;index"`
	Content        string `gorm:"column:content;type:text;not null"`
	Category       string `gorm:"column:category;not null"`
	Severity       string `gorm:"column:severity;not null"`
	ActionTaken    string `gorm:"column:action_taken;default:none"`
}

func (ContentFlag) TableName() string {
	return "content_flags"
}
