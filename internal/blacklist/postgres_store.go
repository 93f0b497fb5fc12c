package blacklist

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresProvider reads blacklist entries from PostgreSQL.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider creates a PostgreSQL-backed blacklist provider.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Lookup(ctx context.Context, entryType, value string) (*Entry, error) {
	e := &Entry{}
	err := p.db.QueryRowContext(ctx, `
		SELECT type, value, COALESCE(reason, ''), created_at
		FROM blacklist_entries
		WHERE type = $1 AND value = $2
	`, entryType, value).Scan(&e.Type, &e.Value, &e.Reason, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up blacklist entry: %w", err)
	}
	return e, nil
}
