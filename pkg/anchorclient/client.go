// Package anchorclient provides the CaseTrace Go SDK for ingesting
// evidence, anchoring it on ledger networks, and verifying chains of
// custody against a CaseTrace service.
package anchorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the service reports 404 for the requested
// resource.
var ErrNotFound = errors.New("resource not found")

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("casetrace api: %d: %s", e.StatusCode, e.Message)
}

// Anchor is an on-chain anchor record for one network.
type Anchor struct {
	Network         string    `json:"network"`
	ChainID         int64     `json:"chainId"`
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     uint64    `json:"blockNumber"`
	ContractAddress string    `json:"contractAddress"`
	Timestamp       time.Time `json:"timestamp"`
}

// BridgeRecord is a cross-chain mirror record.
type BridgeRecord struct {
	Bridged               bool      `json:"bridged"`
	TargetChainID         int64     `json:"targetChainId"`
	BridgeTransactionHash string    `json:"bridgeTransactionHash"`
	BridgeTimestamp       time.Time `json:"bridgeTimestamp"`
}

// Evidence is an evidence record as returned by the service.
type Evidence struct {
	ID             string        `json:"id"`
	CaseID         string        `json:"caseId"`
	Kind           string        `json:"kind"`
	ContentID      string        `json:"contentId"`
	DataHash       string        `json:"dataHash"`
	Status         string        `json:"status"`
	BlockchainData *Anchor       `json:"blockchainData,omitempty"`
	CrossChainData *BridgeRecord `json:"crossChainData,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// AnchorOutcome is the response to an anchor request.
type AnchorOutcome struct {
	Anchor *Anchor       `json:"anchor"`
	Bridge *BridgeRecord `json:"bridge,omitempty"`
}

// Verification is the response to a verify request.
type Verification struct {
	Verified bool    `json:"verified"`
	OnChain  bool    `json:"onChain"`
	Network  string  `json:"network"`
	Anchor   *Anchor `json:"anchor,omitempty"`
}

// ActorRef identifies a party in a custody event.
type ActorRef struct {
	UserID       string `json:"userId"`
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// CustodyEvent is one link of a chain of custody.
type CustodyEvent struct {
	Type      string    `json:"eventType"`
	From      *ActorRef `json:"from,omitempty"`
	To        *ActorRef `json:"to,omitempty"`
	Purpose   string    `json:"purpose"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Integrity struct {
		PreviousEventHash *string `json:"previousEventHash"`
		EventHash         string  `json:"eventHash"`
		Signature         string  `json:"signature"`
	} `json:"integrity"`
}

// CustodyReport is the response to a custody verification request.
type CustodyReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// NetworkHealth is the response to a ledger health probe.
type NetworkHealth struct {
	Network string `json:"network"`
	Health  struct {
		Connected      bool  `json:"connected"`
		ContractLoaded bool  `json:"contractLoaded"`
		ChainID        int64 `json:"chainId"`
	} `json:"health"`
}

// Client is the CaseTrace SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken attaches a bearer token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout. Ignored when WithHTTPClient is
// also given.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client against the service's base URL
// (e.g. "https://casetrace.example.com").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IngestEvidence uploads evidence bytes and returns the created record.
// kind is one of image, video, document, audio, other.
func (c *Client) IngestEvidence(ctx context.Context, caseID, kind string, data []byte) (*Evidence, error) {
	body := map[string]any{"caseId": caseID, "kind": kind, "data": data}
	var resp struct {
		Evidence *Evidence `json:"evidence"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/evidence", body, &resp); err != nil {
		return nil, err
	}
	return resp.Evidence, nil
}

// GetEvidence fetches one evidence record.
func (c *Client) GetEvidence(ctx context.Context, id string) (*Evidence, error) {
	var resp struct {
		Evidence *Evidence `json:"evidence"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/evidence/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Evidence, nil
}

// FetchContent downloads the evidence's stored bytes. The service
// re-verifies the content fingerprint before serving them.
func (c *Client) FetchContent(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/evidence/"+url.PathEscape(id)+"/content", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return io.ReadAll(resp.Body)
}

// AnchorEvidence submits the evidence fingerprint to the named network.
func (c *Client) AnchorEvidence(ctx context.Context, id, network string) (*AnchorOutcome, error) {
	body := map[string]string{"network": network}
	out := &AnchorOutcome{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/evidence/"+url.PathEscape(id)+"/anchor", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// BridgeEvidence mirrors an anchored fingerprint onto targetNetwork.
func (c *Client) BridgeEvidence(ctx context.Context, id, targetNetwork string) (*BridgeRecord, error) {
	body := map[string]string{"targetNetwork": targetNetwork}
	var resp struct {
		Bridge *BridgeRecord `json:"bridge"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/evidence/"+url.PathEscape(id)+"/bridge", body, &resp); err != nil {
		return nil, err
	}
	return resp.Bridge, nil
}

// VerifyEvidence checks the fingerprint's presence on one network.
// Absence is reported in the result, not as an error.
func (c *Client) VerifyEvidence(ctx context.Context, id, network string) (*Verification, error) {
	path := "/api/v1/evidence/" + url.PathEscape(id) + "/verify?network=" + url.QueryEscape(network)
	out := &Verification{}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CustodyChain returns the evidence's custody events in append order.
func (c *Client) CustodyChain(ctx context.Context, id string) ([]CustodyEvent, error) {
	var resp struct {
		Events []CustodyEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/evidence/"+url.PathEscape(id)+"/custody", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// AppendCustodyEvent appends one event to the custody chain. The event's
// integrity fields are computed server-side and returned.
func (c *Client) AppendCustodyEvent(ctx context.Context, id string, event CustodyEvent) (*CustodyEvent, error) {
	body := map[string]any{
		"eventType": event.Type,
		"from":      event.From,
		"to":        event.To,
		"purpose":   event.Purpose,
		"notes":     event.Notes,
	}
	var resp struct {
		Event *CustodyEvent `json:"event"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/evidence/"+url.PathEscape(id)+"/custody", body, &resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

// VerifyCustody recomputes the custody chain server-side and returns the
// tamper report.
func (c *Client) VerifyCustody(ctx context.Context, id string) (*CustodyReport, error) {
	out := &CustodyReport{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/evidence/"+url.PathEscape(id)+"/custody/verify", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// LedgerHealth probes the named ledger network through the service.
func (c *Client) LedgerHealth(ctx context.Context, network string) (*NetworkHealth, error) {
	out := &NetworkHealth{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/ledger/"+url.PathEscape(network)+"/health", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
