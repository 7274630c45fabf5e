// Package evidence defines the persisted evidence record and its stores.
//
// The anchoring core touches three fields of this record: DataHash (the
// content fingerprint computed at ingestion), BlockchainData (the primary
// ledger anchor) and CrossChainData (the mirror onto the secondary
// network). Custody events live in their own append-only table and are
// never removed, even after a soft delete of the evidence itself.
package evidence

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the evidence record does not exist.
	ErrNotFound = errors.New("evidence not found")

	// ErrAnchorExists is returned by SetAnchor when the record already
	// holds a ledger anchor; the write is conditional so that two racing
	// submissions cannot both persist one.
	ErrAnchorExists = errors.New("evidence already anchored")
)

// Anchor records a successful on-chain submission on one network.
type Anchor struct {
	Network         string    `json:"network"`
	ChainID         int64     `json:"chainId"`
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     uint64    `json:"blockNumber"`
	ContractAddress string    `json:"contractAddress"`
	Timestamp       time.Time `json:"timestamp"`
}

// BridgeRecord records a successful mirror write onto a secondary network.
type BridgeRecord struct {
	Bridged               bool      `json:"bridged"`
	TargetChainID         int64     `json:"targetChainId"`
	BridgeTransactionHash string    `json:"bridgeTransactionHash"`
	BridgeTimestamp       time.Time `json:"bridgeTimestamp"`
}

// Evidence is the persisted evidence record.
type Evidence struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"caseId"`
	Kind      string    `json:"kind"` // image, video, document, audio, other
	ContentID string    `json:"contentId"`
	DataHash  string    `json:"dataHash"` // SHA-256 fingerprint, hex
	Status    string    `json:"status"`

	BlockchainData *Anchor       `json:"blockchainData,omitempty"`
	CrossChainData *BridgeRecord `json:"crossChainData,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}
