package flag

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/domain/moderation"
)

var (
	ErrNotFound      = errors.New("flag not found")
	ErrInvalidAction = errors.New("invalid moderation action")
)

type Service struct {
	db       *gorm.DB
	messages message.Repository
}

func NewService(db *gorm.DB, messages message.Repository) *Service {
	return &Service{db: db, messages: messages}
}

// Record persists a moderation hit against the flagged message. Called
// inline from the chat path, so failures surface to the caller rather than
// being swallowed.
func (s *Service) Record(userID, conversationID, messageID, content string, verdict *moderation.Verdict) (*ContentFlag, error) {
	f := &ContentFlag{
		UserID:         userID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Content:        content,
		Category:       verdict.Category,
		Severity:       verdict.Severity,
		ActionTaken:    ActionNone,
	}
	if err := s.db.Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) Get(id uuid.UUID) (*ContentFlag, error) {
	var f ContentFlag
	err := s.db.Where("id = ?", id).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// List returns flags newest-first, optionally scoped to one category
func (s *Service) List(category string, limit int) ([]ContentFlag, error) {
	q := s.db.Order("created_at DESC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var flags []ContentFlag
	if err := q.Find(&flags).Error; err != nil {
		return nil, err
	}
	return flags, nil
}

// Act applies an admin decision to a flag. Masking rewrites the linked
// message body in place; blocking marks the linked message failed. Flags
// with no linked message only record the decision.
func (s *Service) Act(id uuid.UUID, action string) (*ContentFlag, error) {
	if action != ActionNone && action != ActionMask && action != ActionBlock {
		return nil, ErrInvalidAction
	}

	f, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if f.MessageID != "" {
		msgID, err := uuid.Parse(f.MessageID)
		if err == nil {
			if err := s.applyToMessage(msgID, action); err != nil {
				return nil, err
			}
		}
	}

	f.ActionTaken = action
	if err := s.db.Save(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) applyToMessage(msgID uuid.UUID, action string) error {
	msg, err := s.messages.FindByID(msgID)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			return nil
		}
		return err
	}

	switch action {
	case ActionMask:
		msg.Content = MaskedContent
	case ActionBlock:
		msg.Content = MaskedContent
		msg.Status = message.StatusFailed
	default:
		return nil
	}
	return s.messages.Update(msg)
}
