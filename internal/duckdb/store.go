// Package duckdb persists Hi-C contacts and scored interactions in DuckDB.
// Contacts imported from a pairs file are stored once and reloaded into an
// in-memory contact store; interaction results are append-only and
// queryable.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"

	goduckdb "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for an in-memory database.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			chrom1 VARCHAR,
			start1 BIGINT,
			end1 BIGINT,
			chrom2 VARCHAR,
			start2 BIGINT,
			end2 BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS contact_sources (
			path VARCHAR PRIMARY KEY,
			size BIGINT,
			mod_time TIMESTAMP,
			read_length BIGINT,
			pairs BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			probe1 VARCHAR,
			chrom1 VARCHAR,
			start1 BIGINT,
			end1 BIGINT,
			index1 INTEGER,
			probe2 VARCHAR,
			chrom2 VARCHAR,
			start2 BIGINT,
			end2 BIGINT,
			index2 INTEGER,
			cis BOOLEAN,
			distance BIGINT,
			obs_exp DOUBLE,
			p_value DOUBLE,
			absolute INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// appender holds a dedicated connection and a DuckDB appender on it.
type appender struct {
	conn *sql.Conn
	*goduckdb.Appender
}

// newAppender opens an appender for bulk inserts into table.
func (s *Store) newAppender(table string) (*appender, error) {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	var a *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		a, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create appender: %w", err)
	}
	return &appender{conn: conn, Appender: a}, nil
}

// Close flushes and closes the appender and releases its connection.
func (a *appender) Close() error {
	err := a.Appender.Close()
	if cerr := a.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
