package usage

import (
	"time"

	"github.com/nethira/chatcore/internal/database"
)

// Metric accumulates one user's consumption for one calendar month. One
// row per (user, period); all writes are atomic increments.
type Metric struct {
	database.BaseModel
	UserID        string    `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_usage_user_period"`
	PeriodStart   time.Time `gorm:"column:period_start;not null;uniqueIndex:idx_usage_user_period"`
	PeriodEnd     time.Time `gorm:"column:period_end;not null"`
	TotalTokens   int64     `gorm:"column:total_tokens;default:0"`
	TotalMessages int64     `gorm:"column:total_messages;default:0"`
	TotalCost     float64   `gorm:"column:total_cost;default:0"`
}

func (Metric) TableName() string {
	return "usage_metrics"
}

// PeriodStart truncates t to the first instant of its calendar month in UTC.
// Pure function of the clock, so concurrent writers always agree on the row.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd is the first instant of the following month
func PeriodEnd(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 1, 0)
}
