// Package db manages the PostgreSQL connection pool behind the review store.
package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hsliang/redboard/internal/persistence"
	"github.com/hsliang/redboard/internal/persistence/postgres"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// DefaultConfig returns pool defaults. Persistence stays disabled until a
// DSN is configured; the service then falls back to the in-memory store.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Manager owns the connection pool and the review store built on it.
type Manager struct {
	db     *sqlx.DB
	config Config
	store  persistence.ReviewStore
}

// NewManager opens and verifies the connection, applies the schema and
// wires the review store. A disabled config yields a manager without a
// store; callers check IsEnabled.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config}, nil
	}

	dsn := config.DSN
	if env := os.Getenv("PG_DSN"); env != "" {
		dsn = env
	}
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{
		db:     db,
		config: config,
		store:  postgres.NewReviewRepo(db, config.QueryTimeout),
	}, nil
}

// Store returns the review store, or nil when persistence is disabled.
func (m *Manager) Store() persistence.ReviewStore {
	return m.store
}

// DB exposes the pool for health checks.
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// IsEnabled reports whether PostgreSQL persistence is active.
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

// Ping tests connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Close closes the pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
