package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dispatch-center/internal/domain"
)

// MigrateDB runs all schema migrations using the provided GORM DB instance.
// AutoMigrate creates the unique indexes the invariants depend on: the
// active-key index on queue_sessions and the (call_id, member_id) index on
// call_assignments.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.Call{},
		&domain.CallAssignment{},
		&domain.QueueSession{},
		&domain.AuditEntry{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
