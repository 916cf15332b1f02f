package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/pkg/migration"
)

func init() {
	migration.Register("20260301000000_create_users_table", createTable(&models.User{}))
	migration.Register("20260301000001_create_listings_table", createTable(&models.Listing{}))
	migration.Register("20260301000002_create_orders_table", createTable(&models.Order{}, &models.OrderItem{}))
	migration.Register("20260301000003_create_admin_logs_table", createTable(&models.AdminLog{}))
}

// tables creates its models on Up and drops them in reverse on Down.
type tables []any

func createTable(models ...any) tables { return tables(models) }

func (t tables) Up(db *gorm.DB) error {
	return db.AutoMigrate(t...)
}

func (t tables) Down(db *gorm.DB) error {
	for i := len(t) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(t[i]); err != nil {
			return err
		}
	}
	return nil
}
