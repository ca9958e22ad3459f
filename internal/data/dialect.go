package data

import (
	"fmt"
	"sort"
	"strings"

	"opsboard/internal/core"

	// Drivers
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type idStyle int

const (
	idLastInsert idStyle = iota // sql.Result.LastInsertId
	idReturning                 // INSERT ... RETURNING col
	idOutput                    // INSERT ... OUTPUT INSERTED.col VALUES ...
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name        string // config name and migrations directory
	Driver      string // database/sql driver name
	Goose       string // goose dialect
	Placeholder core.PlaceholderFunc
	ids         idStyle
}

var dialects = map[string]*Dialect{
	"sqlite": {
		Name:        "sqlite",
		Driver:      "sqlite",
		Goose:       "sqlite3",
		Placeholder: core.QuestionMark,
		ids:         idLastInsert,
	},
	"postgres": {
		Name:        "postgres",
		Driver:      "postgres",
		Goose:       "postgres",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		ids:         idReturning,
	},
	"mysql": {
		Name:        "mysql",
		Driver:      "mysql",
		Goose:       "mysql",
		Placeholder: core.QuestionMark,
		ids:         idLastInsert,
	},
	"sqlserver": {
		Name:        "sqlserver",
		Driver:      "sqlserver",
		Goose:       "mssql",
		Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		ids:         idOutput,
	},
}

// LookupDialect resolves a configured driver name. "sqlite3", "pgx" style aliases are accepted.
func LookupDialect(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	case "postgres", "postgresql", "pg":
		return dialects["postgres"], nil
	case "mysql", "mariadb":
		return dialects["mysql"], nil
	case "sqlserver", "mssql":
		return dialects["sqlserver"], nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", name)
}

// insertSQL builds an INSERT for the given columns using {name} parameters.
// Columns are sorted so identical inserts share one parsed statement.
func (d *Dialect) insertSQL(table, idColumn string, values core.Params) string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = "{" + c + "}"
	}

	colList := strings.Join(cols, ", ")
	valList := strings.Join(params, ", ")

	switch d.ids {
	case idReturning:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s", table, colList, valList, idColumn)
	case idOutput:
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.%s VALUES (%s)", table, colList, idColumn, valList)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, colList, valList)
	}
}
