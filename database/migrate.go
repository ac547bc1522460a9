package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/sei-platform/seibackend/models"
)

// AutoMigrateModels creates or updates every table the application uses.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Researcher{},
		&models.Institution{},
		&models.Connection{},
		&models.Message{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}
