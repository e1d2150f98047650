package repository

import (
	"fmt"

	"gorm.io/gorm"

	"gigearn-link/internal/models"
)

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.TokenEntry{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
