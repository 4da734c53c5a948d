package ledger

import (
	"context"
	"errors"
	"strconv"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Recognized setting keys. Unknown keys are stored and surfaced back
// unchanged; only reading.max_usage_jump is consumed by the core.
const (
	SettingDefaultReadingDay  = "reading.default_day"
	SettingReadingDateFormat  = "reading.date_format"
	SettingMaxUsageJump       = "reading.max_usage_jump"
	SettingAutoBackup         = "system.auto_backup"
	SettingBackupIntervalDays = "system.backup_interval_days"
	SettingLanguage           = "system.language"
	SettingLastBackupDate     = "system.last_backup_date"
)

// Defaults applied when a key is absent.
var settingDefaults = map[string]string{
	SettingDefaultReadingDay:  "25",
	SettingReadingDateFormat:  "2006-01-02",
	SettingMaxUsageJump:       "200",
	SettingAutoBackup:         "false",
	SettingBackupIntervalDays: "7",
	SettingLanguage:           "zh-CN",
}

// Settings is the DB-backed key/value configuration store.
type Settings struct {
	DB *gorm.DB
}

func NewSettings(db *gorm.DB) *Settings {
	return &Settings{DB: db}
}

// Get returns the stored value, or the default for a recognized key.
func (s *Settings) Get(ctx context.Context, key string) (string, error) {
	var row models.Setting
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return settingDefaults[key], nil
		}
		return "", storeErr("setting", key, err)
	}
	return row.Value, nil
}

// Put upserts one option.
func (s *Settings) Put(ctx context.Context, caller *Caller, key, value string) error {
	if err := requireCaller(caller, "setting"); err != nil {
		return err
	}
	if key == "" {
		return apperr.InvalidField("setting", "key", "键不能为空")
	}
	row := models.Setting{Key: key, Value: value}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return storeErr("setting", key, err)
	}
	return nil
}

// All returns every stored option merged over the defaults.
func (s *Settings) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(settingDefaults))
	for k, v := range settingDefaults {
		out[k] = v
	}
	var rows []models.Setting
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, storeErr("setting", "", err)
	}
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// MaxUsageJump returns the anomaly threshold, falling back to the
// default when the stored value does not parse.
func (s *Settings) MaxUsageJump(ctx context.Context) (decimal.Decimal, error) {
	raw, err := s.Get(ctx, SettingMaxUsageJump)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		d, _ = decimal.NewFromString(settingDefaults[SettingMaxUsageJump])
	}
	return d, nil
}

// DefaultReadingDay returns the nominal reading day of month.
func (s *Settings) DefaultReadingDay(ctx context.Context) (int, error) {
	raw, err := s.Get(ctx, SettingDefaultReadingDay)
	if err != nil {
		return 0, err
	}
	day, err := strconv.Atoi(raw)
	if err != nil || day < 1 || day > 31 {
		day, _ = strconv.Atoi(settingDefaults[SettingDefaultReadingDay])
	}
	return day, nil
}
