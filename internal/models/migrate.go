package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates all tables
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&User{},
		&VerificationCode{},
		&TempToken{},
		&Plan{},
		&Server{},
		&Transaction{},
		&Ticket{},
		&TicketMessage{},
		&Review{},
		&WorkflowRun{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migrations completed successfully")
	return nil
}
