package models

import (
	"log"

	"github.com/mmdatafocus/fluxo_backend/config"
	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Company{}, &PartyEntity{}, &ChartAccount{}, &BankAccount{},
		&LedgerEntry{},
		&RealizedSummary{}, &ForecastSummary{},
	)
}

func MigrateTable() {
	if err := AutoMigrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
