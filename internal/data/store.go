package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"opsboard/internal/core"
	"opsboard/internal/metrics"
)

// DefaultTimeout bounds a single store call when none is configured.
const DefaultTimeout = 5 * time.Second

// ScanFunc scans the current row into dest.
type ScanFunc func(dest ...any) error

// Querier is the query boundary shared by the store and its transactions.
type Querier interface {
	Exec(ctx context.Context, query string, params core.Params) (int64, error)
	FetchOne(ctx context.Context, query string, params core.Params, dest ...any) (bool, error)
	FetchAll(ctx context.Context, query string, params core.Params, fn func(scan ScanFunc) error) error
	Insert(ctx context.Context, table, idColumn string, values core.Params) (int64, error)
}

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type runner struct {
	conn    conn
	dialect *Dialect
	parser  *core.SQLParser
	timeout time.Duration
}

// Store is the Record Store: parameterized reads and writes against one database.
type Store struct {
	runner
	db *sql.DB
}

// Open connects to the database described by driver and dsn and pings it once.
func Open(ctx context.Context, driver, dsn string, timeout time.Duration) (*Store, error) {
	dialect, err := LookupDialect(driver)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch dialect.Name {
	case "sqlite":
		dsn = sqliteDSN(dsn)
	case "mysql":
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect.Name == "sqlite" {
		// SQLite is single-writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		runner: runner{
			conn:    db,
			dialect: dialect,
			parser:  core.NewSQLParser(dialect.Placeholder),
			timeout: timeout,
		},
		db: db,
	}, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "opsboard.db"
	}
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// mysqlDSN turns on clientFoundRows so affected-row counts include matched
// rows whose values did not change.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying pool for migrations and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports which database the store talks to.
func (s *Store) Dialect() *Dialect {
	return s.dialect
}

// Ping checks connectivity within the store timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// InTx runs fn inside one transaction. It rolls back when fn returns an error
// or panics and commits otherwise.
func (s *Store) InTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txRunner := &runner{conn: tx, dialect: s.dialect, parser: s.parser, timeout: s.timeout}
	if err := fn(txRunner); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback transaction (original error: %w): %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Exec runs a write statement and reports the number of affected rows.
func (r *runner) Exec(ctx context.Context, query string, params core.Params) (n int64, err error) {
	defer metrics.ObserveStore("exec", time.Now(), &err)

	stmt, args, err := r.parser.Bind(query, params)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// FetchOne scans the first row into dest. It returns false when there is no row.
func (r *runner) FetchOne(ctx context.Context, query string, params core.Params, dest ...any) (found bool, err error) {
	defer metrics.ObserveStore("fetch_one", time.Now(), &err)

	stmt, args, err := r.parser.Bind(query, params)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err = r.conn.QueryRowContext(ctx, stmt, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch one: %w", err)
	}
	return true, nil
}

// FetchAll calls fn once per result row.
func (r *runner) FetchAll(ctx context.Context, query string, params core.Params, fn func(scan ScanFunc) error) (err error) {
	defer metrics.ObserveStore("fetch_all", time.Now(), &err)

	stmt, args, err := r.parser.Bind(query, params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("fetch all: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows.Scan); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Insert writes one row and returns the id the database assigned to idColumn.
func (r *runner) Insert(ctx context.Context, table, idColumn string, values core.Params) (id int64, err error) {
	defer metrics.ObserveStore("insert", time.Now(), &err)

	stmt, args, err := r.parser.Bind(r.dialect.insertSQL(table, idColumn, values), values)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.dialect.ids == idLastInsert {
		res, err := r.conn.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		return id, nil
	}

	if err := r.conn.QueryRowContext(ctx, stmt, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}
