package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"botfeed/internal/model"
)

// Repository defines the standard interface for journal storage.
type Repository interface {
	LogEntry(ctx context.Context, entry model.LogEntry) error
	LogPoolTransaction(ctx context.Context, tx model.PoolTransaction) error
	Migrate(ctx context.Context) error
}

// PostgresRepository is a Postgres implementation of Repository.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects to dsn and verifies the connection.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS log_entries (
	id BIGSERIAL PRIMARY KEY,
	entry_id VARCHAR(36) NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	entity_id VARCHAR(64) NOT NULL,
	entity_label VARCHAR(64) NOT NULL,
	category VARCHAR(16) NOT NULL,
	message TEXT NOT NULL,
	data JSONB,
	importance VARCHAR(8) NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_transactions (
	id BIGSERIAL PRIMARY KEY,
	transaction_id VARCHAR(36) NOT NULL,
	pool_id VARCHAR(32) NOT NULL,
	type VARCHAR(32) NOT NULL,
	amount NUMERIC(24, 6) NOT NULL,
	balance_before NUMERIC(24, 6) NOT NULL,
	balance_after NUMERIC(24, 6) NOT NULL,
	reference_hash CHAR(66) NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	description TEXT NOT NULL
);`

// Migrate creates the journal tables when they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}

// LogEntry stores one feed line.
func (r *PostgresRepository) LogEntry(ctx context.Context, entry model.LogEntry) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO log_entries (entry_id, timestamp, entity_id, entity_label, category, message, data, importance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Timestamp, entry.EntityID, entry.EntityLabel,
		string(entry.Category), entry.Message, entry.Data, string(entry.Importance),
	)
	if err != nil {
		return fmt.Errorf("insert log entry %s: %w", entry.ID, err)
	}
	return nil
}

// LogPoolTransaction stores one ledger movement.
func (r *PostgresRepository) LogPoolTransaction(ctx context.Context, tx model.PoolTransaction) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO pool_transactions (transaction_id, pool_id, type, amount, balance_before, balance_after, reference_hash, timestamp, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.ID, tx.PoolID, tx.Type, tx.Amount, tx.BalanceBefore, tx.BalanceAfter,
		tx.ReferenceHash, tx.Timestamp, tx.Description,
	)
	if err != nil {
		return fmt.Errorf("insert pool transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}
