package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nethira/chatcore/internal/database"
)

// Session anchors one refresh-token lineage to one login. Rows are never
// deleted; logout only sets RevokedAt.
type Session struct {
	database.BaseModel

	UserID      string     `gorm:"column:user_id;type:uuid;not null;index"`
	RefreshHash string     `gorm:"column:refresh_hash;not null"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt   *time.Time `gorm:"column:revoked_at"`
	IsValid     bool       `gorm:"column:is_valid;default:true"`

	IPAddress string `gorm:"column:ip_address;type:text"`
	UserAgent string `gorm:"column:user_agent;type:text"`

	LastUsedAt time.Time `gorm:"column:last_used_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// BeforeSave keeps the revocation invariant: a revoked session can never
// read as valid again.
func (s *Session) BeforeSave(tx *gorm.DB) error {
	if s.RevokedAt != nil {
		s.IsValid = false
	}
	return nil
}

// New builds an unsaved session row with its ID assigned, so tokens can be
// minted against the ID before the row is inserted.
func New(userID uuid.UUID, userAgent, ip string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	sess := &Session{
		UserID:     userID.String(),
		ExpiresAt:  now.Add(ttl),
		IsValid:    true,
		UserAgent:  userAgent,
		IPAddress:  ip,
		LastUsedAt: now,
	}
	sess.ID = uuid.New()
	return sess
}
