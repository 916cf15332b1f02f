// Package migrations registers the schema history. Import it for side
// effects wherever the migration runner is used.
package migrations
