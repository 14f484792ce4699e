package preference

import "github.com/nethira/chatcore/internal/database"

// Tone and theme values
const (
	ToneFormal = "formal"
	ToneCasual = "casual"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Preference holds a user's chat defaults. One row per user, created
// lazily with defaults on first read.
type Preference struct {
	database.BaseModel
	UserID       string  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DefaultModel string  `gorm:"column:default_model"`
	Temperature  float64 `gorm:"column:temperature;default:0.7"`
	Tone         string  `gorm:"column:tone;default:formal"`
	Theme        string  `gorm:"column:theme;default:light"`
}

func (Preference) TableName() string {
	return "user_preferences"
}
