package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type thing struct{ ID uint }

type createThings struct{}

func (createThings) Up(db *gorm.DB) error   { return db.AutoMigrate(&thing{}) }
func (createThings) Down(db *gorm.DB) error { return db.Migrator().DropTable(&thing{}) }

func TestRunRollbackStatus(t *testing.T) {
	saved := registry
	registry = nil
	defer func() { registry = saved }()

	Register("20250101000001_create_things", createThings{})

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	r := New(db)

	applied, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"20250101000001_create_things"}, applied)
	assert.True(t, db.Migrator().HasTable(&thing{}))

	applied, err = r.Run()
	require.NoError(t, err)
	assert.Empty(t, applied)

	st, err := r.Status()
	require.NoError(t, err)
	require.Len(t, st, 1)
	assert.True(t, st[0].Ran)
	assert.Equal(t, 1, st[0].Batch)

	reverted, err := r.Rollback()
	require.NoError(t, err)
	assert.Equal(t, []string{"20250101000001_create_things"}, reverted)
	assert.False(t, db.Migrator().HasTable(&thing{}))
}
