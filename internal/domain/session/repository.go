package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(sess *Session) error
	FindByID(id uuid.UUID) (*Session, error)
	UpdateRefresh(id uuid.UUID, oldHash, newHash string, newExpiry time.Time) (bool, error)
	Revoke(id uuid.UUID, at time.Time) error
	UpdateLastUsed(id uuid.UUID, t time.Time) error
	FindByUserID(userID uuid.UUID) ([]Session, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(sess *Session) error {
	return r.db.Create(sess).Error
}

func (r *repository) FindByID(id uuid.UUID) (*Session, error) {
	var sess Session
	err := r.db.Where("id = ?", id).First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateRefresh performs the rotation write: a single conditional
// match-and-replace on the stored refresh hash. Of N racing rotations with
// the same old hash exactly one observes RowsAffected == 1.
func (r *repository) UpdateRefresh(id uuid.UUID, oldHash, newHash string, newExpiry time.Time) (bool, error) {
	res := r.db.Model(&Session{}).
		Where("id = ? AND refresh_hash = ? AND is_valid = true", id, oldHash).
		Updates(map[string]any{
			"refresh_hash": newHash,
			"expires_at":   newExpiry,
			"last_used_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// Revoke marks the session invalid. Already-revoked rows are untouched,
// keeping the original RevokedAt for the audit trail.
func (r *repository) Revoke(id uuid.UUID, at time.Time) error {
	return r.db.Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]any{
			"revoked_at": at,
			"is_valid":   false,
		}).Error
}

func (r *repository) UpdateLastUsed(id uuid.UUID, t time.Time) error {
	return r.db.Model(&Session{}).
		Where("id = ? AND is_valid = true", id).
		Update("last_used_at", t).Error
}

func (r *repository) FindByUserID(userID uuid.UUID) ([]Session, error) {
	var sessions []Session
	err := r.db.Where("user_id = ? AND is_valid = true", userID.String()).Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
