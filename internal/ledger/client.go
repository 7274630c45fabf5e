// Package ledger implements the per-network client for the on-chain
// evidence registry: fingerprint submission with confirmation handling,
// read-only existence checks, and connectivity probes, all over a plain
// JSON-RPC endpoint.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
)

// Config binds a Client to one network.
type Config struct {
	// Network is the operator-facing network name, e.g. "sepolia".
	Network string
	// ChainID is the expected chain ID; Health reports the live value.
	ChainID int64
	// RPCURL is the JSON-RPC endpoint.
	RPCURL string
	// ContractAddress is the registry contract, already resolved via
	// ResolveContractAddress. May be empty: the client then refuses
	// writes and existence checks with ErrContractNotLoaded.
	ContractAddress string
	// Signer is the submitting account held in the node keystore. Empty
	// means the client is read-only.
	Signer string

	// RequestTimeout bounds a single RPC round trip. Default 15s.
	RequestTimeout time.Duration
	// ConfirmInterval is the receipt polling period. Default 500ms.
	ConfirmInterval time.Duration
	// ConfirmTimeout bounds the wait for one confirmation. Default 90s.
	ConfirmTimeout time.Duration
	// ThrottleRetryDelay is the pause before the single retry after a
	// throttling-class submit failure. Default 3s.
	ThrottleRetryDelay time.Duration
}

// SubmitResult is the typed receipt data of a confirmed submission.
type SubmitResult struct {
	TxHash      string `json:"transactionHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// Health is a best-effort connectivity snapshot. Probing never fails;
// unreachable networks report Connected=false.
type Health struct {
	Connected      bool  `json:"connected"`
	ContractLoaded bool  `json:"contractLoaded"`
	ChainID        int64 `json:"chainId"`
}

// receipt is the subset of an eth_getTransactionReceipt reply we consume.
type receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	GasUsed         string `json:"gasUsed"`
	Status          string `json:"status"`
}

// Client talks to the evidence registry contract on a single network.
type Client struct {
	cfg      Config
	contract string // checksummed, or "" when unresolved
	signer   string // checksummed, or "" for read-only clients
	rpc      *rpcClient
	logger   *zap.Logger
}

// New builds a Client. A missing contract address is tolerated (the client
// degrades to ErrContractNotLoaded on use) but a malformed one is rejected
// outright.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("network %q: rpc url not configured", cfg.Network)
	}
	if cfg.ConfirmInterval == 0 {
		cfg.ConfirmInterval = 500 * time.Millisecond
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	if cfg.ThrottleRetryDelay == 0 {
		cfg.ThrottleRetryDelay = 3 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		rpc:    newRPCClient(cfg.RPCURL, cfg.RequestTimeout),
		logger: logger,
	}

	if cfg.ContractAddress != "" {
		addr, err := ChecksumAddress(cfg.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("network %q contract address: %w", cfg.Network, err)
		}
		c.contract = addr
	}
	if cfg.Signer != "" {
		addr, err := ChecksumAddress(cfg.Signer)
		if err != nil {
			return nil, fmt.Errorf("network %q signer address: %w", cfg.Network, err)
		}
		c.signer = addr
	}
	return c, nil
}

// Network returns the operator-facing network name.
func (c *Client) Network() string { return c.cfg.Network }

// ChainID returns the configured chain ID.
func (c *Client) ChainID() int64 { return c.cfg.ChainID }

// ContractAddress returns the resolved registry address, or "" when the
// contract is not loaded.
func (c *Client) ContractAddress() string { return c.contract }

type txParams struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data string `json:"data"`
}

// Submit sends the evidence fingerprint to the registry's write entry
// point and waits for one confirmation. A throttling-class failure of the
// send is retried exactly once after a short fixed delay; every other
// error propagates.
func (c *Client) Submit(ctx context.Context, contentID, fingerprint string, kind Kind) (*SubmitResult, error) {
	if c.contract == "" {
		return nil, ErrContractNotLoaded
	}
	if c.signer == "" {
		return nil, ErrSignerNotConfigured
	}

	fp, err := FingerprintBytes(fingerprint)
	if err != nil {
		return nil, err
	}
	data := hexData(encodeSubmitEvidence(contentID, fp, kind))

	txHash, err := c.sendTransaction(ctx, data)
	if isThrottled(err) {
		c.logger.Warn("rpc throttled on submit, retrying once",
			zap.String("network", c.cfg.Network),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.ThrottleRetryDelay):
		}
		txHash, err = c.sendTransaction(ctx, data)
	}
	if err != nil {
		if isInsufficientFunds(err) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	rcpt, err := c.waitForReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("await confirmation of %s: %w", txHash, err)
	}
	if rcpt.Status == "0x0" {
		return nil, fmt.Errorf("transaction %s reverted", txHash)
	}

	block, err := parseQuantity(rcpt.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("receipt block number: %w", err)
	}
	gas, err := parseQuantity(rcpt.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("receipt gas used: %w", err)
	}

	c.logger.Info("evidence fingerprint submitted",
		zap.String("network", c.cfg.Network),
		zap.String("tx_hash", txHash),
		zap.Uint64("block", block),
	)
	return &SubmitResult{TxHash: txHash, BlockNumber: block, GasUsed: gas}, nil
}

func (c *Client) sendTransaction(ctx context.Context, data string) (string, error) {
	var txHash string
	err := c.rpc.call(ctx, "eth_sendTransaction", &txHash, txParams{
		From: c.signer,
		To:   c.contract,
		Data: data,
	})
	return txHash, err
}

func (c *Client) waitForReceipt(ctx context.Context, txHash string) (*receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		var rcpt receipt
		err := c.rpc.call(ctx, "eth_getTransactionReceipt", &rcpt, txHash)
		switch {
		case err == nil:
			return &rcpt, nil
		case errors.Is(err, errNullResult):
			// not mined yet
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Exists performs the read-only existence check for a fingerprint. No
// transaction and no gas.
func (c *Client) Exists(ctx context.Context, fingerprint string) (bool, error) {
	if c.contract == "" {
		return false, ErrContractNotLoaded
	}
	fp, err := FingerprintBytes(fingerprint)
	if err != nil {
		return false, err
	}

	var result string
	if err := c.rpc.call(ctx, "eth_call", &result,
		map[string]string{"to": c.contract, "data": hexData(encodeEvidenceExists(fp))},
		"latest",
	); err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return decodeBool(result)
}

// TransactionConfirmed reports whether txHash has a successful receipt on
// this network. A missing receipt is (false, nil), not an error.
func (c *Client) TransactionConfirmed(ctx context.Context, txHash string) (bool, error) {
	var rcpt receipt
	err := c.rpc.call(ctx, "eth_getTransactionReceipt", &rcpt, txHash)
	switch {
	case errors.Is(err, errNullResult):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("receipt lookup: %w", err)
	}
	return rcpt.Status != "0x0", nil
}

// Health probes connectivity and contract resolution. It never returns an
// error; an unreachable endpoint is reported as Connected=false.
func (c *Client) Health(ctx context.Context) Health {
	h := Health{ContractLoaded: c.contract != "", ChainID: c.cfg.ChainID}

	var chainID string
	if err := c.rpc.call(ctx, "eth_chainId", &chainID); err != nil {
		c.logger.Debug("health probe failed",
			zap.String("network", c.cfg.Network),
			zap.Error(err),
		)
		return h
	}
	h.Connected = true
	if live, err := parseQuantity(chainID); err == nil {
		h.ChainID = int64(live)
	}
	return h
}

// Balance returns the signer account balance in wei. Informational; used
// for preflight checks only.
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	if c.signer == "" {
		return nil, ErrSignerNotConfigured
	}
	var result string
	if err := c.rpc.call(ctx, "eth_getBalance", &result, c.signer, "latest"); err != nil {
		return nil, fmt.Errorf("balance query: %w", err)
	}
	return parseBig(result)
}

// GasPrice returns the node's current gas price suggestion in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.rpc.call(ctx, "eth_gasPrice", &result); err != nil {
		return nil, fmt.Errorf("gas price query: %w", err)
	}
	return parseBig(result)
}
