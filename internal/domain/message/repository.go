package message

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned for missing messages and, at the service
	// layer, for ownership mismatches
	ErrNotFound = errors.New("message not found")
)

type Repository interface {
	Create(msg *Message) error
	FindByID(id uuid.UUID) (*Message, error)
	ListByConversation(conversationID string) ([]Message, error)
	Update(msg *Message) error
	CreateVersion(v *Version) error
	ListVersions(messageID string) ([]Version, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(msg *Message) error {
	return r.db.Create(msg).Error
}

func (r *repository) FindByID(id uuid.UUID) (*Message, error) {
	var msg Message
	err := r.db.Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListByConversation returns the conversation's messages in turn order
func (r *repository) ListByConversation(conversationID string) ([]Message, error) {
	var msgs []Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *repository) Update(msg *Message) error {
	return r.db.Save(msg).Error
}

func (r *repository) CreateVersion(v *Version) error {
	return r.db.Create(v).Error
}

// ListVersions returns a message's snapshots newest-first for display
func (r *repository) ListVersions(messageID string) ([]Version, error) {
	var versions []Version
	err := r.db.Where("message_id = ?", messageID).
		Order("created_at DESC").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}
