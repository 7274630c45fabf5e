package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps blobs in a bytea column, keyed by content ID.
// Adequate for evidence files up to the API body limit; larger media would
// move to object storage behind the same interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put implements Store. Duplicate bytes are a no-op thanks to the content
// ID primary key.
func (s *PostgresStore) Put(ctx context.Context, data []byte) (string, error) {
	id := ContentID(data)
	_, err := s.db.Exec(ctx,
		`INSERT INTO content_blobs (content_id, data, size_bytes, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (content_id) DO NOTHING`,
		id, data, len(data),
	)
	if err != nil {
		return "", fmt.Errorf("insert blob: %w", err)
	}
	return id, nil
}

// Fetch implements Store.
func (s *PostgresStore) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM content_blobs WHERE content_id = $1`, contentID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", contentID, err)
	}
	if ContentID(data) != contentID {
		return nil, ErrCorrupted
	}
	return data, nil
}
