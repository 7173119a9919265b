package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/internal/storage"
	"github.com/cryptobuddy/pkg/config"
)

// MySQLClient owns the MySQL connection pool backing the KV store
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewMySQLClient opens and pings a MySQL connection pool
func NewMySQLClient(cfg *config.MySQLConfig, logger *logrus.Logger) (*MySQLClient, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return NewMySQLClientFromDB(db, logger), nil
}

// NewMySQLClientFromDB wraps an already opened pool
func NewMySQLClientFromDB(db *sql.DB, logger *logrus.Logger) *MySQLClient {
	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
	}
}

// DB returns the underlying pool
func (mc *MySQLClient) DB() *sql.DB {
	return mc.db
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

// Migration is one versioned schema change
type Migration struct {
	Version   int
	Name      string
	SQL       string
	Applied   bool
	AppliedAt *time.Time
}

var migrations = []Migration{
	{Version: 1, Name: "create_kv_store", SQL: storage.KVSchema},
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INT NOT NULL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migrate applies every pending migration in version order and returns
// the ones it applied
func (mc *MySQLClient) Migrate(ctx context.Context, dryRun bool) ([]Migration, error) {
	status, err := mc.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, m := range status {
		if m.Applied {
			continue
		}

		log := mc.logger.WithFields(logrus.Fields{"version": m.Version, "name": m.Name})
		if dryRun {
			log.Info("Would apply migration")
			applied = append(applied, m)
			continue
		}

		if err := mc.apply(ctx, m); err != nil {
			return applied, err
		}
		log.Info("Applied migration")
		applied = append(applied, m)
	}

	return applied, nil
}

func (mc *MySQLClient) apply(ctx context.Context, m Migration) error {
	tx, err := mc.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationStatus lists every known migration with its applied state
func (mc *MySQLClient) MigrationStatus(ctx context.Context) ([]Migration, error) {
	if _, err := mc.db.ExecContext(ctx, migrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := mc.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		done[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	status := make([]Migration, len(migrations))
	copy(status, migrations)
	for i := range status {
		if at, ok := done[status[i].Version]; ok {
			at := at
			status[i].Applied = true
			status[i].AppliedAt = &at
		}
	}
	return status, nil
}
