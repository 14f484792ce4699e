package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound covers both true absence and ownership mismatch, so a
	// caller can never distinguish another user's conversation from a
	// nonexistent one.
	ErrNotFound = errors.New("conversation not found")
)

type Repository interface {
	Create(conv *Conversation) error
	FindOwned(id uuid.UUID, userID string) (*Conversation, error)
	ListByOwner(userID string, includeArchived bool) ([]Conversation, error)
	Update(conv *Conversation) error
	Archive(id uuid.UUID, userID string) error
	Touch(id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(conv *Conversation) error {
	return r.db.Create(conv).Error
}

// FindOwned loads a conversation scoped to its owner
func (r *repository) FindOwned(id uuid.UUID, userID string) (*Conversation, error) {
	var conv Conversation
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *repository) ListByOwner(userID string, includeArchived bool) ([]Conversation, error) {
	q := r.db.Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("is_archived = false")
	}

	var convs []Conversation
	if err := q.Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *repository) Update(conv *Conversation) error {
	return r.db.Save(conv).Error
}

func (r *repository) Archive(id uuid.UUID, userID string) error {
	res := r.db.Model(&Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_archived", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch bumps updated_at after a completed exchange
func (r *repository) Touch(id uuid.UUID) error {
	return r.db.Model(&Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}
