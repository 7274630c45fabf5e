package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists evidence records to PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, ev *Evidence) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	if ev.Status == "" {
		ev.Status = "ingested"
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO evidence (id, case_id, kind, content_id, data_hash, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.CaseID, ev.Kind, ev.ContentID, ev.DataHash, ev.Status, ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Evidence, error) {
	ev := &Evidence{}
	var blockchain, crossChain []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, case_id, kind, content_id, data_hash, status,
		        blockchain_data, cross_chain_data, created_at, updated_at, deleted_at
		 FROM evidence WHERE id = $1`, id,
	).Scan(
		&ev.ID, &ev.CaseID, &ev.Kind, &ev.ContentID, &ev.DataHash, &ev.Status,
		&blockchain, &crossChain, &ev.CreatedAt, &ev.UpdatedAt, &ev.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get evidence %s: %w", id, err)
	}

	if len(blockchain) > 0 {
		ev.BlockchainData = &Anchor{}
		if err := json.Unmarshal(blockchain, ev.BlockchainData); err != nil {
			return nil, fmt.Errorf("decode blockchain data: %w", err)
		}
	}
	if len(crossChain) > 0 {
		ev.CrossChainData = &BridgeRecord{}
		if err := json.Unmarshal(crossChain, ev.CrossChainData); err != nil {
			return nil, fmt.Errorf("decode cross-chain data: %w", err)
		}
	}
	return ev, nil
}

// SetAnchor implements Store. The anchors table carries a unique
// (evidence_id, network) constraint and the evidence update is conditional
// on blockchain_data still being NULL, so two racing submissions cannot
// both commit an anchor — the loser gets ErrAnchorExists.
func (s *PostgresStore) SetAnchor(ctx context.Context, id uuid.UUID, anchor *Anchor) error {
	payload, err := json.Marshal(anchor)
	if err != nil {
		return fmt.Errorf("marshal anchor: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`INSERT INTO evidence_anchors (evidence_id, network, chain_id, transaction_hash, block_number, contract_address, anchored_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (evidence_id, network) DO NOTHING`,
		id, anchor.Network, anchor.ChainID, anchor.TransactionHash,
		anchor.BlockNumber, anchor.ContractAddress, anchor.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert anchor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnchorExists
	}

	tag, err = tx.Exec(ctx,
		`UPDATE evidence SET blockchain_data = $2, updated_at = now()
		 WHERE id = $1 AND blockchain_data IS NULL`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("update evidence anchor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if exists, err := s.exists(ctx, id); err != nil {
			return err
		} else if !exists {
			return ErrNotFound
		}
		return ErrAnchorExists
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit anchor: %w", err)
	}
	return nil
}

// SetBridge implements Store.
func (s *PostgresStore) SetBridge(ctx context.Context, id uuid.UUID, bridge *BridgeRecord) error {
	payload, err := json.Marshal(bridge)
	if err != nil {
		return fmt.Errorf("marshal bridge record: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE evidence SET cross_chain_data = $2, updated_at = now() WHERE id = $1`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("update evidence bridge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete implements Store. Custody events are intentionally untouched.
func (s *PostgresStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE evidence SET deleted_at = now(), status = 'deleted', updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("soft delete evidence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM evidence WHERE id = $1`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check evidence existence: %w", err)
	}
	return n > 0, nil
}
