package db

import (
	"slipforge/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Match{},
		&models.Prediction{},
		&models.MarketOdds{},
		&models.TeamForm{},
		&models.HeadToHead{},
		&models.MasterSlip{},
		&models.GeneratedSlip{},
		&models.SlipLeg{},
		&models.Job{},
		&models.ScheduledRetry{},
	)
}
