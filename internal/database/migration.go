package database

import (
	"fmt"

	"meter-billing/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
// Migrations are additive only: missing tables and columns are created
// with their defaults (e.g. meter_readings.remark TEXT DEFAULT '');
// existing columns are never dropped or narrowed.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Tenant{},
		&models.Meter{},
		&models.Price{},
		&models.MeterReading{},
		&models.Charge{},
		&models.Payment{},
		&models.Settlement{},
		&models.Setting{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
