package usage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrQuotaExceeded is returned when a user's monthly token total has
// reached the plan limit.
var ErrQuotaExceeded = errors.New("monthly token quota exceeded")

// Ledger owns the per-user monthly usage rows
type Ledger struct {
	db    *gorm.DB
	limit int64
	now   func() time.Time
}

func NewLedger(db *gorm.DB, monthlyTokenLimit int64) *Ledger {
	return &Ledger{db: db, limit: monthlyTokenLimit, now: time.Now}
}

// Increment adds one completed exchange to the current period. The write
// is a single upsert with additive assignments, never read-modify-write,
// so concurrent exchanges cannot lose updates.
func (l *Ledger) Increment(userID string, tokens int64, cost float64) error {
	row := &Metric{
		UserID:        userID,
		PeriodStart:   PeriodStart(l.now()),
		PeriodEnd:     PeriodEnd(l.now()),
		TotalTokens:   tokens,
		TotalMessages: 1,
		TotalCost:     cost,
	}

	return l.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_tokens":   gorm.Expr("usage_metrics.total_tokens + ?", tokens),
			"total_messages": gorm.Expr("usage_metrics.total_messages + 1"),
			"total_cost":     gorm.Expr("usage_metrics.total_cost + ?", cost),
			"updated_at":     time.Now().UTC(),
		}),
	}).Create(row).Error
}

// CheckLimit enforces the monthly cap. A user with no row this period has
// used nothing and passes. The check reads committed usage only, so it is
// advisory under concurrency; slight overshoot is accepted.
func (l *Ledger) CheckLimit(userID string) error {
	current, err := l.Current(userID)
	if err != nil {
		return err
	}
	if current != nil && current.TotalTokens >= l.limit {
		return ErrQuotaExceeded
	}
	return nil
}

// Current returns the metric row for the running period, or nil if the
// user has no usage yet.
func (l *Ledger) Current(userID string) (*Metric, error) {
	var m Metric
	err := l.db.Where("user_id = ? AND period_start = ?", userID, PeriodStart(l.now())).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// History returns a user's metric rows newest period first
func (l *Ledger) History(userID string) ([]Metric, error) {
	var rows []Metric
	err := l.db.Where("user_id = ?", userID).
		Order("period_start DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPeriod returns every user's row for the running period (admin view)
func (l *Ledger) ListPeriod() ([]Metric, error) {
	var rows []Metric
	err := l.db.Where("period_start = ?", PeriodStart(l.now())).
		Order("total_tokens DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Limit exposes the configured monthly cap for reporting
func (l *Ledger) Limit() int64 {
	return l.limit
}
