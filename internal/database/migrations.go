package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationStripProviderPrefix    = "2024-03-01_strip_provider_prefix_from_user_ids"
	migrationClearDisabledReminders = "2024-03-08_clear_disabled_reminder_times"
	migrationResetOrphanedToday     = "2024-04-02_reset_completed_today_without_history"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationStripProviderPrefix, apply: stripProviderPrefix},
		{name: migrationClearDisabledReminders, apply: clearDisabledReminderTimes},
		{name: migrationResetOrphanedToday, apply: resetCompletedTodayWithoutHistory},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return fmt.Errorf("%s: %w", migration.name, err)
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// stripProviderPrefix rewrites owner ids stored before identities were canonicalized.
func stripProviderPrefix(db *gorm.DB) error {
	const prefix = "google:"
	start := len(prefix) + 1
	for _, table := range []string{"habits", "notifications"} {
		statement := fmt.Sprintf("UPDATE %s SET user_id = substr(user_id, %d) WHERE user_id LIKE '%s%%'", table, start, prefix)
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}

func clearDisabledReminderTimes(db *gorm.DB) error {
	return db.Table("habits").
		Where("reminder_enabled = ? AND reminder_time <> ''", false).
		Update("reminder_time", "").Error
}

func resetCompletedTodayWithoutHistory(db *gorm.DB) error {
	return db.Table("habits").
		Where("completed_today = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM habit_completions WHERE habit_completions.habit_id = habits.id)").
		Update("completed_today", false).Error
}
