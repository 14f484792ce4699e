package audit

import "github.com/nethira/chatcore/internal/database"

// Log is one audit trail entry
type Log struct {
	database.BaseModel
	ActorID  string `gorm:"column:actor_id;type:uuid;index"`
	Action   string `gorm:"column:action;not null"`
	Entity   string `gorm:"column:entity"`
	EntityID string `gorm:"column:entity_id"`
	Metadata string `gorm:"column:metadata;type:text"`
}

func (Log) TableName() string {
	return "audit_logs"
}

// Actions recorded by the auth flows
const (
	ActionUserLoggedIn   = "USER_LOGGED_IN"
	ActionUserLoggedOut  = "USER_LOGGED_OUT"
	ActionUserRegistered = "USER_REGISTERED"
)
