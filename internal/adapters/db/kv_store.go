// internal/adapters/db/kv_store.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// DefaultCartTable is the table created by the embedded migrations
const DefaultCartTable = "cart_storage"

// KVStore is a DurableStore kept in a Postgres key/value table
type KVStore struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.DurableStore = (*KVStore)(nil)

// NewKVStore creates a table-backed durable store
func NewKVStore(db *sql.DB, table string, logger *slog.Logger) *KVStore {
	if table == "" {
		table = DefaultCartTable
	}
	return &KVStore{
		db:     db,
		table:  table,
		logger: logger.With(slog.String("component", "kv_store")),
		now:    time.Now,
	}
}

func (s *KVStore) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).RunWith(s.db)
}

func (s *KVStore) GetItem(ctx context.Context, key string) (string, error) {
	var payload string
	err := s.builder().
		Select("payload").
		From(s.table).
		Where(squirrel.Eq{"storage_key": key}).
		QueryRowContext(ctx).
		Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ports.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return payload, nil
}

func (s *KVStore) SetItem(ctx context.Context, key, value string) error {
	_, err := s.builder().
		Insert(s.table).
		Columns("storage_key", "payload", "updated_at").
		Values(key, value, s.now().UTC()).
		Suffix("ON CONFLICT (storage_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at").
		ExecContext(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to write cart",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) RemoveItem(ctx context.Context, key string) error {
	_, err := s.builder().
		Delete(s.table).
		Where(squirrel.Eq{"storage_key": key}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// PurgeOlderThan deletes every entry not written since cutoff
func (s *KVStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.builder().
		Delete(s.table).
		Where(squirrel.Lt{"updated_at": cutoff.UTC()}).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", s.table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}
	return n, nil
}

// Ping verifies the table is reachable
func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
