package audit

import (
	"encoding/json"
	"log/slog"

	"gorm.io/gorm"
)

// Recorder writes audit entries. Implementations must never fail the
// primary operation: errors are logged and swallowed.
type Recorder interface {
	Record(actorID, action, entity, entityID string, metadata map[string]any)
}

type recorder struct {
	db *gorm.DB
}

// NewRecorder creates a database-backed audit recorder
func NewRecorder(db *gorm.DB) Recorder {
	return &recorder{db: db}
}

// Record persists one audit entry. A write failure is logged and dropped.
func (r *recorder) Record(actorID, action, entity, entityID string, metadata map[string]any) {
	var meta string
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			meta = string(data)
		}
	}

	entry := &Log{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Metadata: meta,
	}

	if err := r.db.Create(entry).Error; err != nil {
		slog.Error("Audit log write failed", "error", err, "action", action, "actor_id", actorID)
	}
}

// NopRecorder discards all entries; used by tests
type NopRecorder struct{}

func (NopRecorder) Record(actorID, action, entity, entityID string, metadata map[string]any) {}
