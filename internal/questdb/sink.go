package questdb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	"bgzfiltra/internal/stats"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Config holds the QuestDB PostgreSQL-wire connection settings.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string

	// Driver is a database/sql driver name: "postgres" (lib/pq) or "pgx".
	Driver  string
	SSLMode string
}

// Drivers that can talk to QuestDB's PostgreSQL endpoint.
var Drivers = []string{"postgres", "pgx"}

// DSN renders the connection URL understood by both drivers.
func (c Config) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// Open connects to QuestDB and verifies the connection.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open questdb connection: %w", err)
	}
	// One connection, reused for every write of the run.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping questdb at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	log.Info().Str("host", cfg.Host).Str("port", cfg.Port).Str("driver", driver).Msg("Connected to QuestDB")
	return db, nil
}

// table describes the time-series table of one aggregate view.
type table struct {
	Name   string
	Column string
}

var tables = map[stats.Dimension]table{
	stats.DimStatus:    {"bugs_per_status", "status"},
	stats.DimComponent: {"bugs_per_component", "component"},
	stats.DimL3:        {"bugs_l3", "status"},
	stats.DimL3Cases:   {"bugs_l3_cases", "status"},
	stats.DimPriority:  {"bugs_priority", "priority"},
	stats.DimAssigned:  {"bugs_assigned", "email"},
}

// TableFor returns the table name backing a dimension.
func TableFor(d stats.Dimension) (string, bool) {
	t, ok := tables[d]
	return t.Name, ok
}

// PersistenceError wraps a failed DDL or insert.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("questdb write to %s failed: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Sink writes aggregate rows, one committed transaction per row.
type Sink struct {
	db *sql.DB
}

// NewSink wraps an open connection.
func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db}
}

// SetupTables creates the six tables if they are missing.
func (s *Sink) SetupTables(ctx context.Context) error {
	for _, d := range stats.Dimensions {
		t := tables[d]
		ddl := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (product symbol, %s symbol, bugs double, created_at timestamp) timestamp(created_at)",
			t.Name, t.Column,
		)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return &PersistenceError{Table: t.Name, Err: err}
		}
	}
	log.Debug().Int("tables", len(tables)).Msg("QuestDB tables ready")
	return nil
}

// Insert appends a single row and commits it immediately. Earlier rows stay
// committed if a later insert fails.
func (s *Sink) Insert(ctx context.Context, d stats.Dimension, row stats.Row, ts time.Time) error {
	t, ok := tables[d]
	if !ok {
		return &PersistenceError{Table: string(d), Err: fmt.Errorf("unknown dimension %q", d)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Table: t.Name, Err: err}
	}

	query := fmt.Sprintf("INSERT INTO %s VALUES ($1, $2, $3, $4)", t.Name)
	if _, err := tx.ExecContext(ctx, query, row.Product, row.Value, float64(row.Count), ts.UTC()); err != nil {
		_ = tx.Rollback()
		return &PersistenceError{Table: t.Name, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Table: t.Name, Err: err}
	}
	return nil
}

// Close releases the connection.
func (s *Sink) Close() error {
	return s.db.Close()
}
