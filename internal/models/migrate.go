package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate создает таблицы в БД
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Organization{},
		&User{},
		&Vendor{},
		&Project{},
		&Episode{},
		&Cut{},
		&PurchaseOrder{},
		&Settlement{},
		&DocumentSequence{},
	)
	if err != nil {
		log.Printf("⚠️ AutoMigrate: %v", err)
		return err
	}
	return nil
}
