package repository

import (
	"gorm.io/gorm"

	"github.com/mailsink/mailsink/interfaces"
	"github.com/mailsink/mailsink/internal/models"
)

type Repositories struct {
	LedgerRepository interfaces.LedgerRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		LedgerRepository: NewLedgerRepository(db),
	}
}

// MigrateDB creates or updates the ledger schema. The composite primary key
// on ledger_entries is what enforces the at-most-one-row invariant.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.LedgerEntry{},
	)
}
