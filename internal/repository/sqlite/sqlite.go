// Package sqlite implements the repository interfaces on top of SQLite.
//
// DRIVER:
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. It registers itself with database/sql as "sqlite".
//
// SCHEMA:
// The schema lives in migrations/*.sql, embedded into the binary and applied with
// golang-migrate on startup. Databases created by older versions of the blog (which
// had no schema_migrations table and sometimes no posts.author_id column) are
// upgraded in place: every statement in the first migration is IF NOT EXISTS.
//
// CONNECTIONS:
// sql.DB is a pool. Pragmas that are per-connection (foreign_keys, busy_timeout) are
// passed through the DSN so every pooled connection gets them; without
// foreign_keys=ON the post_tags cascade would silently not happen.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sakif/markdown-blog/internal/timefmt"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// querier is the subset of *sql.DB and *sql.Tx the repository methods need, so
// helpers can run either inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath and brings the schema up to date.
//
// dbPath examples:
//   - "data/blog.db" → file-based database (persistent)
//   - ":memory:"     → in-memory database, pinned to a single connection
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// journal_mode is persistent in the database file, so once is enough.
	if !isMemory(dbPath) {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// dsn turns a plain path into a URI carrying the per-connection pragmas.
func dsn(path string) string {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}

// migrate applies every pending migration from migrations/.
func (db *DB) migrate() error {
	if err := db.upgradeLegacyPosts(); err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	defer src.Close()

	driver, err := sqlitemigrate.WithInstance(db.conn, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	// m.Close() would also close db.conn through the driver, so it is not called.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, table := range []string{"posts", "users"} {
		if err := db.normalizeTimestamps(table); err != nil {
			return err
		}
	}
	return nil
}

// storageGlob matches created_at values already in timefmt.StorageLayout.
const storageGlob = "[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9] [0-9][0-9]:[0-9][0-9]:[0-9][0-9]"

// normalizeTimestamps rewrites created_at values written in other encodings
// (ISO "T...Z", fractional seconds, date only) into StorageLayout. The feed
// orders by the TEXT column, so mixed encodings would not sort chronologically.
// Values timefmt cannot parse are left alone.
func (db *DB) normalizeTimestamps(table string) error {
	rows, err := db.conn.Query(
		`SELECT id, CAST(created_at AS TEXT) FROM ` + table +
			` WHERE created_at IS NOT NULL AND created_at NOT GLOB ?`, storageGlob,
	)
	if err != nil {
		return fmt.Errorf("scanning %s timestamps: %w", table, err)
	}

	type fix struct {
		id    int64
		value string
	}
	var fixes []fix
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("reading %s timestamp: %w", table, err)
		}
		if t, ok := timefmt.Normalize(raw); ok {
			fixes = append(fixes, fix{id: id, value: t.Format(timefmt.StorageLayout)})
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("closing %s timestamps: %w", table, err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s timestamps: %w", table, err)
	}
	if len(fixes) == 0 {
		return nil
	}

	return db.withTx(context.Background(), func(tx *sql.Tx) error {
		for _, f := range fixes {
			if _, err := tx.Exec(`UPDATE `+table+` SET created_at = ? WHERE id = ?`, f.value, f.id); err != nil {
				return fmt.Errorf("normalizing %s %d created_at: %w", table, f.id, err)
			}
		}
		return nil
	})
}

// upgradeLegacyPosts adds posts.author_id to databases created before posts had
// authors. It must run before the index migration, which references the column.
func (db *DB) upgradeLegacyPosts() error {
	var tables int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'posts'`,
	).Scan(&tables)
	if err != nil {
		return fmt.Errorf("checking for posts table: %w", err)
	}
	if tables == 0 {
		return nil
	}

	if err := db.addColumnIfNotExists("posts", "author_id",
		"INTEGER REFERENCES users (id)"); err != nil {
		return fmt.Errorf("adding author_id to posts: %w", err)
	}
	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent; safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// withTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, so callers never see partial writes.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// table.column.
func isUniqueViolation(err error, table, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") &&
		strings.Contains(msg, table+"."+column)
}

// nullableID converts an optional foreign key for the driver.
func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// idPtr is the inverse of nullableID.
func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	id := n.Int64
	return &id
}

// timestampText returns a created_at column as text. Columns declared TIMESTAMP
// in databases created by older versions come back from the driver as time.Time.
func timestampText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(timefmt.StorageLayout)
	default:
		return fmt.Sprint(t)
	}
}
