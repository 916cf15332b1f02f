package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/shashiranjanraj/phonedeals/database/migrations"
	"github.com/shashiranjanraj/phonedeals/pkg/migration"
	"github.com/shashiranjanraj/phonedeals/pkg/testkit"
)

func TestSchemaUpAndDown(t *testing.T) {
	db := testkit.DB(t)
	runner := migration.New(db)

	ran, err := runner.Run()
	require.NoError(t, err)
	assert.Len(t, ran, 4)
	for _, table := range []string{"users", "listings", "orders", "order_items", "admin_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	again, err := runner.Run()
	require.NoError(t, err)
	assert.Empty(t, again)

	rolled, err := runner.Rollback()
	require.NoError(t, err)
	assert.Len(t, rolled, 4)
	assert.False(t, db.Migrator().HasTable("listings"))
	assert.False(t, db.Migrator().HasTable("users"))
}
