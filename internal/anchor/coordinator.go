// Package anchor orchestrates on-chain anchoring of evidence fingerprints:
// submission to a primary network, mirroring onto a secondary network
// ("bridging" — a mirrored write, not a locked-asset bridge), and
// verification across either network with on-demand bridging on a miss.
//
// A Coordinator owns one ledger client per tracked network, passed in at
// construction. There is no shared global client state.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casetrace/casetrace/internal/custody"
	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/ledger"
	"github.com/casetrace/casetrace/internal/notify"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var (
	// ErrUnknownNetwork means no ledger client is configured for the
	// requested network.
	ErrUnknownNetwork = errors.New("no ledger client for network")

	// ErrDuplicateSubmission is returned when the evidence already has a
	// ledger anchor or a submission is in flight. It is raised before
	// any network call is made.
	ErrDuplicateSubmission = errors.New("evidence already anchored")

	// ErrNoFingerprint means the evidence record has no content
	// fingerprint to anchor.
	ErrNoFingerprint = errors.New("evidence has no data hash")
)

// LedgerClient is the per-network ledger surface the coordinator consumes.
// *ledger.Client satisfies it.
type LedgerClient interface {
	Network() string
	ChainID() int64
	ContractAddress() string
	Submit(ctx context.Context, contentID, fingerprint string, kind ledger.Kind) (*ledger.SubmitResult, error)
	Exists(ctx context.Context, fingerprint string) (bool, error)
	TransactionConfirmed(ctx context.Context, txHash string) (bool, error)
}

// Notifier publishes evidence lifecycle events. *notify.Publisher
// satisfies it; nil disables publishing.
type Notifier interface {
	Publish(ctx context.Context, subject string, payload any)
}

// Config holds the coordinator's bridging policy.
type Config struct {
	// AutoBridge mirrors every primary submission onto TargetNetwork and
	// enables on-demand bridging when a cross-chain verification misses.
	AutoBridge bool
	// TargetNetwork is the secondary network for mirrored writes.
	TargetNetwork string
	// SettleDelay is the pause between an on-demand bridge and the
	// verification re-check. Default 2s.
	SettleDelay time.Duration
	// DedupTTL bounds how long an in-flight submission blocks concurrent
	// duplicates. Default 1m.
	DedupTTL time.Duration
}

// SubmitOutcome is the result of a primary submission, including the
// bridge result when auto-bridging was attempted and succeeded.
type SubmitOutcome struct {
	Anchor *evidence.Anchor       `json:"anchor"`
	Bridge *evidence.BridgeRecord `json:"bridge,omitempty"`
}

// Verification is the result of a presence check for one network.
// Absence is a normal outcome (Verified=false), never an error.
type Verification struct {
	Verified bool             `json:"verified"`
	OnChain  bool             `json:"onChain"`
	Network  string           `json:"network"`
	Anchor   *evidence.Anchor `json:"anchor,omitempty"`
}

// Coordinator drives anchoring, bridging and verification for evidence.
type Coordinator struct {
	clients map[string]LedgerClient
	store   evidence.Store
	chain   custody.Appender
	events  Notifier // nil = disabled
	dedup   *cache.Cache
	cfg     Config
	logger  *zap.Logger
}

// New creates a Coordinator over the given per-network clients.
// chain may be nil to disable custody event appends (tests only).
func New(clients map[string]LedgerClient, store evidence.Store, chain custody.Appender, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = time.Minute
	}
	return &Coordinator{
		clients: clients,
		store:   store,
		chain:   chain,
		dedup:   cache.New(cfg.DedupTTL, 2*cfg.DedupTTL),
		cfg:     cfg,
		logger:  logger,
	}
}

// SetNotifier configures the event publisher. Nil disables publishing.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.events = n
}

func (c *Coordinator) client(network string) (LedgerClient, error) {
	client, ok := c.clients[network]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	return client, nil
}

// Submit anchors the evidence fingerprint on the given network. It rejects
// duplicates before touching the network, persists the anchor with a
// conditional write, appends a custody event, and — when auto-bridge is on
// and a distinct target network is configured — mirrors the fingerprint
// there. A bridge failure is logged, never allowed to fail the primary
// submission.
func (c *Coordinator) Submit(ctx context.Context, evidenceID uuid.UUID, network string) (*SubmitOutcome, error) {
	client, err := c.client(network)
	if err != nil {
		return nil, err
	}

	// In-process guard against concurrent duplicate submissions. The
	// durable guard is the store's conditional anchor write below.
	key := network + ":" + evidenceID.String()
	if err := c.dedup.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("%w: submission in flight on %s", ErrDuplicateSubmission, network)
	}
	anchored := false
	defer func() {
		if !anchored {
			c.dedup.Delete(key)
		}
	}()

	ev, err := c.store.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if ev.BlockchainData != nil {
		return nil, fmt.Errorf("%w: anchor already recorded on %s", ErrDuplicateSubmission, ev.BlockchainData.Network)
	}
	if ev.DataHash == "" {
		return nil, ErrNoFingerprint
	}

	res, err := client.Submit(ctx, ev.ContentID, ev.DataHash, ledger.KindFromString(ev.Kind))
	if err != nil {
		return nil, fmt.Errorf("anchor on %s: %w", network, err)
	}

	anchorRec := &evidence.Anchor{
		Network:         network,
		ChainID:         client.ChainID(),
		TransactionHash: res.TxHash,
		BlockNumber:     res.BlockNumber,
		ContractAddress: client.ContractAddress(),
		Timestamp:       time.Now().UTC(),
	}
	if err := c.store.SetAnchor(ctx, evidenceID, anchorRec); err != nil {
		if errors.Is(err, evidence.ErrAnchorExists) {
			// A concurrent submission won the conditional write. The
			// transaction we just sent is redundant but harmless: the
			// contract keys entries by fingerprint.
			c.logger.Warn("concurrent submission won anchor persistence",
				zap.String("evidence_id", evidenceID.String()),
				zap.String("tx_hash", res.TxHash),
			)
			return nil, fmt.Errorf("%w: concurrent submission persisted first", ErrDuplicateSubmission)
		}
		return nil, fmt.Errorf("persist anchor: %w", err)
	}
	anchored = true

	c.appendCustody(ctx, ev,
		fmt.Sprintf("blockchain anchor on %s", network),
		fmt.Sprintf("tx %s, block %d", res.TxHash, res.BlockNumber),
	)
	c.publish(ctx, notify.SubjectAnchored, map[string]any{
		"evidenceId": evidenceID,
		"anchor":     anchorRec,
	})

	outcome := &SubmitOutcome{Anchor: anchorRec}
	if c.cfg.AutoBridge && c.cfg.TargetNetwork != "" && c.cfg.TargetNetwork != network {
		bridge, err := c.Bridge(ctx, evidenceID, c.cfg.TargetNetwork)
		if err != nil {
			c.logger.Warn("auto-bridge failed after primary anchor",
				zap.String("evidence_id", evidenceID.String()),
				zap.String("target_network", c.cfg.TargetNetwork),
				zap.Error(err),
			)
		} else {
			outcome.Bridge = bridge
		}
	}
	return outcome, nil
}

// Bridge mirrors the evidence fingerprint onto targetNetwork via that
// network's own client — the same code path as a primary submission, keyed
// by the same fingerprint.
func (c *Coordinator) Bridge(ctx context.Context, evidenceID uuid.UUID, targetNetwork string) (*evidence.BridgeRecord, error) {
	client, err := c.client(targetNetwork)
	if err != nil {
		return nil, err
	}

	ev, err := c.store.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if ev.DataHash == "" {
		return nil, ErrNoFingerprint
	}

	res, err := client.Submit(ctx, ev.ContentID, ev.DataHash, ledger.KindFromString(ev.Kind))
	if err != nil {
		return nil, fmt.Errorf("bridge to %s: %w", targetNetwork, err)
	}

	record := &evidence.BridgeRecord{
		Bridged:               true,
		TargetChainID:         client.ChainID(),
		BridgeTransactionHash: res.TxHash,
		BridgeTimestamp:       time.Now().UTC(),
	}
	if err := c.store.SetBridge(ctx, evidenceID, record); err != nil {
		return nil, fmt.Errorf("persist bridge record: %w", err)
	}

	c.appendCustody(ctx, ev,
		fmt.Sprintf("cross-chain mirror to %s", targetNetwork),
		fmt.Sprintf("tx %s", res.TxHash),
	)
	c.publish(ctx, notify.SubjectBridged, map[string]any{
		"evidenceId": evidenceID,
		"bridge":     record,
	})
	return record, nil
}

// Verify checks whether the evidence fingerprint is present on the given
// network.
//
// Same-network: the recorded transaction receipt is preferred; if the
// transaction cannot be located the check falls back to the contract's
// existence call. Cross-network: after a log-only sanity check of the
// source network, the target is checked; on a miss with auto-bridge
// enabled, exactly one on-demand bridge and one re-check (after a settle
// delay) are attempted. Absence is reported, not raised.
func (c *Coordinator) Verify(ctx context.Context, evidenceID uuid.UUID, network string) (*Verification, error) {
	client, err := c.client(network)
	if err != nil {
		return nil, err
	}

	ev, err := c.store.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if ev.DataHash == "" {
		return nil, ErrNoFingerprint
	}

	v := &Verification{Network: network}
	primary := ev.BlockchainData

	if primary != nil && primary.Network == network {
		confirmed, err := client.TransactionConfirmed(ctx, primary.TransactionHash)
		if err != nil {
			c.logger.Warn("receipt lookup failed, falling back to existence check",
				zap.String("tx_hash", primary.TransactionHash),
				zap.Error(err),
			)
		}
		if confirmed {
			v.Verified, v.OnChain, v.Anchor = true, true, primary
			return v, nil
		}
		exists, err := client.Exists(ctx, ev.DataHash)
		if err != nil {
			return nil, err
		}
		v.Verified, v.OnChain = exists, exists
		if exists {
			v.Anchor = primary
		}
		return v, nil
	}

	// Cross-chain verification.
	if primary != nil {
		if src, ok := c.clients[primary.Network]; ok {
			onSource, err := src.Exists(ctx, ev.DataHash)
			switch {
			case err != nil:
				c.logger.Warn("source network sanity check errored",
					zap.String("source_network", primary.Network),
					zap.Error(err),
				)
			case !onSource:
				c.logger.Warn("fingerprint missing on its source network",
					zap.String("evidence_id", evidenceID.String()),
					zap.String("source_network", primary.Network),
				)
			}
		}
	}

	exists, err := client.Exists(ctx, ev.DataHash)
	if err != nil {
		return nil, err
	}

	if !exists && c.cfg.AutoBridge {
		c.logger.Info("verification miss, attempting on-demand bridge",
			zap.String("evidence_id", evidenceID.String()),
			zap.String("network", network),
		)
		if _, err := c.Bridge(ctx, evidenceID, network); err != nil {
			c.logger.Warn("on-demand bridge failed", zap.Error(err))
		} else {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.SettleDelay):
			}
			exists, err = client.Exists(ctx, ev.DataHash)
			if err != nil {
				c.logger.Warn("post-bridge re-check errored", zap.Error(err))
				exists = false
			}
		}
	}

	v.Verified, v.OnChain = exists, exists
	return v, nil
}

// appendCustody records an OTHER-type custody event for an anchoring
// action. The anchor itself is already durable at this point, so a failed
// append is logged rather than unwinding the submission.
func (c *Coordinator) appendCustody(ctx context.Context, ev *evidence.Evidence, purpose, notes string) {
	if c.chain == nil {
		return
	}
	event, err := c.chain.Append(ctx, ev.ID.String(), ev.DataHash, custody.Event{
		Type:    custody.Other,
		Purpose: purpose,
		Notes:   notes,
	})
	if err != nil {
		c.logger.Warn("append custody event",
			zap.String("evidence_id", ev.ID.String()),
			zap.Error(err),
		)
		return
	}
	c.publish(ctx, notify.SubjectCustody, map[string]any{
		"evidenceId": ev.ID,
		"event":      event,
	})
}

func (c *Coordinator) publish(ctx context.Context, subject string, payload any) {
	if c.events == nil {
		return
	}
	c.events.Publish(ctx, subject, payload)
}
