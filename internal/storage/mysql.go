package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KVSchema creates the table used by MySQLStore
const KVSchema = `CREATE TABLE IF NOT EXISTS kv_store (
	k VARCHAR(255) NOT NULL PRIMARY KEY,
	v MEDIUMBLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// MySQLStore keeps values in the kv_store table
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a store over an open connection pool
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := m.db.QueryRowContext(ctx, "SELECT v FROM kv_store WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return v, nil
}

func (m *MySQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO kv_store (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (m *MySQLStore) Delete(ctx context.Context, key string) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM kv_store WHERE k = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
