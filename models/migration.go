package models

import (
	"log"

	"github.com/mmdatafocus/ledger_engine/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Account{},
		&JournalEntry{}, &JournalLine{},
		&InventoryLayer{}, &InventoryTransaction{}, &LayerConsumption{},
		&FixedAsset{},
		&RepairRun{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
