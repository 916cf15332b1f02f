// Package repositories holds the gorm (and mongo) data access for the
// marketplace models. Missing rows come back as apperr NotFound errors so
// services can return them unchanged.
package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
)

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

func duplicate(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict(msg).Wrap(err)
	}
	return err
}

// likeEscape follows every LIKE built from like. Not a backslash: MySQL
// reads that as a string escape.
const likeEscape = ` ESCAPE '!'`

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_", "[", "![")

// like builds a case-insensitive substring pattern for s with wildcard
// characters taken literally. Callers compare against LOWER(column) and
// append likeEscape.
func like(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
