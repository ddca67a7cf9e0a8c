// Package dialect abstracts the SQL differences between the audit store's
// supported backends: sqlite for local and test use, postgres for hosted
// deployments.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect is the set of SQL variations the audit store needs.
type Dialect interface {
	// Name returns the dialect name ("sqlite" or "postgres").
	Name() string

	// DriverName returns the database/sql driver to open.
	DriverName() string

	// Rebind converts ? placeholders to the dialect's format.
	Rebind(query string) string

	// AutoIncrementClause returns the column clause for an auto-increment
	// integer primary key.
	AutoIncrementClause() string

	// UpsertClause returns the conflict clause for an insert-or-update on
	// conflictColumn. setExprs are raw SET expressions so callers can write
	// increments against the stored row, not just excluded values.
	UpsertClause(conflictColumn string, setExprs ...string) string

	// DateOf returns the expression extracting the calendar date from a
	// timestamp column.
	DateOf(column string) string

	// InitStatements returns statements run once after opening a
	// connection (PRAGMA for sqlite; none for postgres).
	InitStatements() []string
}

// FromDriverName returns the dialect for a driver name.
func FromDriverName(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return &sqliteDialect{}, nil
	case "postgres", "pgx":
		return &postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

type sqliteDialect struct{}

func (d *sqliteDialect) Name() string       { return "sqlite" }
func (d *sqliteDialect) DriverName() string { return "sqlite" }

func (d *sqliteDialect) Rebind(query string) string { return query }

func (d *sqliteDialect) AutoIncrementClause() string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d *sqliteDialect) UpsertClause(conflictColumn string, setExprs ...string) string {
	if len(setExprs) == 0 {
		return fmt.Sprintf("ON CONFLICT(%s) DO NOTHING", conflictColumn)
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", conflictColumn, strings.Join(setExprs, ", "))
}

func (d *sqliteDialect) DateOf(column string) string {
	return fmt.Sprintf("date(%s)", column)
}

func (d *sqliteDialect) InitStatements() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
}

type postgresDialect struct{}

func (d *postgresDialect) Name() string       { return "postgres" }
func (d *postgresDialect) DriverName() string { return "pgx" }

func (d *postgresDialect) Rebind(query string) string {
	var result strings.Builder
	idx := 1
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&result, "$%d", idx)
			idx++
		} else {
			result.WriteRune(ch)
		}
	}
	return result.String()
}

func (d *postgresDialect) AutoIncrementClause() string {
	return "BIGSERIAL PRIMARY KEY"
}

func (d *postgresDialect) UpsertClause(conflictColumn string, setExprs ...string) string {
	if len(setExprs) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", conflictColumn)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", conflictColumn, strings.Join(setExprs, ", "))
}

func (d *postgresDialect) DateOf(column string) string {
	return fmt.Sprintf("%s::date", column)
}

func (d *postgresDialect) InitStatements() []string { return nil }
