package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DatabaseFile is the sqlite file created inside the data directory
const DatabaseFile = "archery_analyzer.db"

// DB represents the database connection with pooling
type DB struct {
	*sqlx.DB
	pool *ConnectionPool
}

// ConnectionPool records the pool limits applied to the sql.DB
type ConnectionPool struct {
	db           *sqlx.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies pool limits to db
func NewConnectionPool(db *sqlx.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB opens (creating if needed) the session history database in dataDir and migrates it
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite serialises writers; a small pool avoids SQLITE_BUSY storms
	pool := NewConnectionPool(db, 4, 2, 5*time.Minute)

	database := &DB{
		DB:   db,
		pool: pool,
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"path", dbPath,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS target_sessions (
			id TEXT PRIMARY KEY,
			archer_id TEXT NOT NULL,
			target_type TEXT NOT NULL,
			distance REAL NOT NULL,
			arrow_count INTEGER NOT NULL,
			total_score INTEGER NOT NULL,
			average_score REAL NOT NULL,
			no_arrow_detected BOOLEAN NOT NULL DEFAULT FALSE,
			dispersion REAL, -- NULL when fewer than two arrows
			result TEXT NOT NULL, -- JSON target analysis
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS arrow_records (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			archer_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			ring INTEGER NOT NULL,
			distance REAL NOT NULL, -- normalized distance from target center
			center_x REAL NOT NULL,
			center_y REAL NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES target_sessions(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS pose_sessions (
			id TEXT PRIMARY KEY,
			archer_id TEXT NOT NULL,
			frames_sampled INTEGER NOT NULL,
			frames_skipped INTEGER NOT NULL,
			stability REAL NOT NULL,
			consistency REAL NOT NULL,
			accuracy REAL NOT NULL,
			result TEXT NOT NULL, -- JSON pose analysis
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_target_sessions_archer ON target_sessions(archer_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_arrow_records_archer ON arrow_records(archer_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_arrow_records_session ON arrow_records(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pose_sessions_archer ON pose_sessions(archer_id, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
