package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/nethira/chatcore/internal/domain/audit"
	"github.com/nethira/chatcore/internal/domain/conversation"
	"github.com/nethira/chatcore/internal/domain/flag"
	"github.com/nethira/chatcore/internal/domain/message"
	"github.com/nethira/chatcore/internal/domain/preference"
	"github.com/nethira/chatcore/internal/domain/session"
	"github.com/nethira/chatcore/internal/domain/usage"
	"github.com/nethira/chatcore/internal/domain/user"
)

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&user.User{},
		&session.Session{},
		&conversation.Conversation{},
		&message.Message{},
		&message.Version{},
		&flag.ContentFlag{},
		&usage.Metric{},
		&preference.Preference{},
		&audit.Log{},
	); err != nil {
		return fmt.Errorf("failed to make migrations: %w", err)
	}
	return nil
}
