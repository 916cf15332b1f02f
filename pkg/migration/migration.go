// Package migration runs registered schema migrations in batches and records
// them in the schema_migrations table.
//
//	func init() {
//	    migration.Register("20250101000000_create_users_table", &CreateUsersTable{})
//	}
package migration

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/pkg/logger"
)

// Migration is implemented by every migration.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "schema_migrations" }

type entry struct {
	name string
	m    Migration
}

var registry []entry

// Register adds m under a timestamp-prefixed name. Names sort to run order.
func Register(name string, m Migration) {
	registry = append(registry, entry{name: name, m: m})
}

// Status is one row of Runner.Status.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

type Runner struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Runner {
	return &Runner{db: db}
}

func sorted() []entry {
	out := append([]entry(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *Runner) ran() (map[string]record, error) {
	if err := r.db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}
	var rows []record
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]record, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

// Run applies every pending migration as one batch and returns their names.
func (r *Runner) Run() ([]string, error) {
	done, err := r.ran()
	if err != nil {
		return nil, err
	}

	batch := 1
	for _, rec := range done {
		if rec.Batch >= batch {
			batch = rec.Batch + 1
		}
	}

	var applied []string
	for _, e := range sorted() {
		if _, ok := done[e.name]; ok {
			continue
		}
		logger.Info("migration: running", "name", e.name)
		if err := e.m.Up(r.db); err != nil {
			return applied, fmt.Errorf("migration: %s up: %w", e.name, err)
		}
		if err := r.db.Create(&record{Name: e.name, Batch: batch}).Error; err != nil {
			return applied, fmt.Errorf("migration: record %s: %w", e.name, err)
		}
		applied = append(applied, e.name)
	}
	return applied, nil
}

// Rollback reverts the most recent batch, newest first.
func (r *Runner) Rollback() ([]string, error) {
	done, err := r.ran()
	if err != nil {
		return nil, err
	}

	last := 0
	for _, rec := range done {
		if rec.Batch > last {
			last = rec.Batch
		}
	}
	if last == 0 {
		return nil, nil
	}

	entries := sorted()
	var reverted []string
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		rec, ok := done[e.name]
		if !ok || rec.Batch != last {
			continue
		}
		logger.Info("migration: rolling back", "name", e.name)
		if err := e.m.Down(r.db); err != nil {
			return reverted, fmt.Errorf("migration: %s down: %w", e.name, err)
		}
		if err := r.db.Delete(&rec).Error; err != nil {
			return reverted, err
		}
		reverted = append(reverted, e.name)
	}
	return reverted, nil
}

// Status lists every registered migration and whether it has run.
func (r *Runner) Status() ([]Status, error) {
	done, err := r.ran()
	if err != nil {
		return nil, err
	}
	var out []Status
	for _, e := range sorted() {
		rec, ok := done[e.name]
		out = append(out, Status{Name: e.name, Ran: ok, Batch: rec.Batch})
	}
	return out, nil
}
