package custody

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store persists custody chains to PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// lockKey derives a stable advisory lock key from the evidence ID so that
// concurrent appends for the same evidence serialise without blocking
// appends for other evidence.
func lockKey(evidenceID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(evidenceID))
	return int64(h.Sum64())
}

// Append implements Appender. It acquires a per-evidence advisory lock,
// reads the chain tail, computes the new event hash, and inserts — all
// within one transaction, so the previous-hash link can never skew under
// concurrent appends.
func (s *Store) Append(ctx context.Context, evidenceID, dataHash string, base Event) (*Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(evidenceID)); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var prev *string
	var seq int
	var tail string
	err = tx.QueryRow(ctx,
		"SELECT seq, event_hash FROM custody_events WHERE evidence_id = $1 ORDER BY seq DESC LIMIT 1",
		evidenceID,
	).Scan(&seq, &tail)
	switch {
	case err == pgx.ErrNoRows:
		seq = -1
	case err != nil:
		return nil, fmt.Errorf("read chain tail: %w", err)
	default:
		prev = &tail
	}

	event := BuildEvent(evidenceID, dataHash, prev, base)

	from, err := marshalActor(event.From)
	if err != nil {
		return nil, err
	}
	to, err := marshalActor(event.To)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO custody_events (
			evidence_id, seq, event_type, from_actor, to_actor, purpose,
			notes, occurred_at, prev_event_hash, event_hash, signature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		evidenceID, seq+1, event.Type, from, to, event.Purpose,
		event.Notes, event.Timestamp, event.Integrity.PreviousEventHash,
		event.Integrity.EventHash, event.Integrity.Signature,
	); err != nil {
		return nil, fmt.Errorf("insert custody event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit custody event: %w", err)
	}

	s.logger.Debug("custody event appended",
		zap.String("evidence_id", evidenceID),
		zap.Int("seq", seq+1),
		zap.String("event_type", string(event.Type)),
	)
	return &event, nil
}

// Load returns the evidence's chain ordered by sequence number. A missing
// chain is an empty slice, not an error.
func (s *Store) Load(ctx context.Context, evidenceID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_type, from_actor, to_actor, purpose, notes, occurred_at,
		        prev_event_hash, event_hash, signature
		 FROM custody_events WHERE evidence_id = $1 ORDER BY seq ASC`,
		evidenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query custody events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var from, to []byte
		if err := rows.Scan(
			&e.Type, &from, &to, &e.Purpose, &e.Notes, &e.Timestamp,
			&e.Integrity.PreviousEventHash, &e.Integrity.EventHash, &e.Integrity.Signature,
		); err != nil {
			return nil, fmt.Errorf("scan custody event: %w", err)
		}
		if e.From, err = unmarshalActor(from); err != nil {
			return nil, err
		}
		if e.To, err = unmarshalActor(to); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func marshalActor(a *ActorRef) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal actor: %w", err)
	}
	return b, nil
}

func unmarshalActor(b []byte) (*ActorRef, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a ActorRef
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("unmarshal actor: %w", err)
	}
	return &a, nil
}
