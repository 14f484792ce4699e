package preference

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidTone        = errors.New("invalid tone")
	ErrInvalidTheme       = errors.New("invalid theme")
	ErrInvalidTemperature = errors.New("temperature out of range")
)

// Service owns the per-user preference rows
type Service struct {
	db           *gorm.DB
	defaultModel string
}

func NewService(db *gorm.DB, defaultModel string) *Service {
	return &Service{db: db, defaultModel: defaultModel}
}

// Get returns the user's preferences, creating the default row on first use
func (s *Service) Get(userID string) (*Preference, error) {
	var p Preference
	err := s.db.Where("user_id = ?", userID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p = Preference{
		UserID:       userID,
		DefaultModel: s.defaultModel,
		Temperature:  0.7,
		Tone:         ToneFormal,
		Theme:        ThemeLight,
	}
	// A concurrent first read may have created the row already; the unique
	// index on user_id guarantees one winner either way.
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return nil, err
	}
	if err := s.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Updates carries the fields a user may change; nil fields are untouched
type Updates struct {
	DefaultModel *string
	Temperature  *float64
	Tone         *string
	Theme        *string
}

func (s *Service) Update(userID string, u Updates) (*Preference, error) {
	if u.Tone != nil && *u.Tone != ToneFormal && *u.Tone != ToneCasual {
		return nil, ErrInvalidTone
	}
	if u.Theme != nil && *u.Theme != ThemeLight && *u.Theme != ThemeDark {
		return nil, ErrInvalidTheme
	}
	if u.Temperature != nil && (*u.Temperature < 0 || *u.Temperature > 2) {
		return nil, ErrInvalidTemperature
	}

	p, err := s.Get(userID)
	if err != nil {
		return nil, err
	}

	if u.DefaultModel != nil {
		p.DefaultModel = *u.DefaultModel
	}
	if u.Temperature != nil {
		p.Temperature = *u.Temperature
	}
	if u.Tone != nil {
		p.Tone = *u.Tone
	}
	if u.Theme != nil {
		p.Theme = *u.Theme
	}

	if err := s.db.Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultModelFor resolves the user's preferred model for conversations
// that do not pin one. Lookup failures read as no preference.
func (s *Service) DefaultModelFor(userID string) string {
	p, err := s.Get(userID)
	if err != nil {
		return ""
	}
	return p.DefaultModel
}
