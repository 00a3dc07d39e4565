// Package db manages the SQLite database: opening connections, running the
// schema, and hand-written queries for users, sessions, and notes.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

const (
	// MaxOpenConns is the maximum number of open connections.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2
)

// DB wraps the sql.DB connection.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the application database at path.
// If hexKey is non-empty the file is encrypted with SQLCipher.
func Open(path, hexKey string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := path
	if hexKey != "" {
		// Format: file.db?_pragma_key=x'HEX_KEY'&_pragma_cipher_page_size=4096
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, hexKey)
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	return openDSN(dsn)
}

// OpenInMemory opens a fresh in-memory database. Used by tests.
// Each call gets its own named shared-cache database so that the
// connection pool sees one store but separate calls stay isolated.
func OpenInMemory() (*DB, error) {
	n := inMemorySeq.Add(1)
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", n)
	return openDSN(appendSQLiteParams(dsn, sqliteCommonParams()))
}

var inMemorySeq atomic.Int64

func openDSN(dsn string) (*DB, error) {
	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{db: sqlDB}, nil
}

// DB returns the underlying sql.DB for direct access when needed.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func sqliteCommonParams() string {
	// WAL + NORMAL provides good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
