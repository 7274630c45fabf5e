package anchor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casetrace/casetrace/internal/custody"
	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fakeClient is an in-memory stand-in for *ledger.Client. Submissions
// register the fingerprint so later Exists calls see it, unless
// registerOnSubmit is cleared to simulate a chain that has not settled.
type fakeClient struct {
	network  string
	chainID  int64
	contract string

	mu               sync.Mutex
	registerOnSubmit bool
	fingerprints     map[string]bool
	receipts         map[string]bool
	submits          int
	existsCalls      int
	submitErr        error
	existsErr        error
	receiptErr       error
}

func newFakeClient(network string, chainID int64) *fakeClient {
	return &fakeClient{
		network:          network,
		chainID:          chainID,
		contract:         "0x8617E340B3D01FA5F11F306F4090FD50E238070D",
		registerOnSubmit: true,
		fingerprints:     make(map[string]bool),
		receipts:         make(map[string]bool),
	}
}

func (f *fakeClient) Network() string         { return f.network }
func (f *fakeClient) ChainID() int64          { return f.chainID }
func (f *fakeClient) ContractAddress() string { return f.contract }

func (f *fakeClient) Submit(_ context.Context, _, fingerprint string, _ ledger.Kind) (*ledger.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	txHash := fmt.Sprintf("0x%s-tx-%d", f.network, f.submits)
	if f.registerOnSubmit {
		f.fingerprints[fingerprint] = true
		f.receipts[txHash] = true
	}
	return &ledger.SubmitResult{TxHash: txHash, BlockNumber: 100 + uint64(f.submits), GasUsed: 21000}, nil
}

func (f *fakeClient) Exists(_ context.Context, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.fingerprints[fingerprint], nil
}

func (f *fakeClient) TransactionConfirmed(_ context.Context, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return false, f.receiptErr
	}
	return f.receipts[txHash], nil
}

func (f *fakeClient) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

var testFingerprint = strings.Repeat("ab", 32)

type fixture struct {
	coord   *Coordinator
	primary *fakeClient
	mirror  *fakeClient
	store   *evidence.MemoryStore
	chain   *custody.MemoryStore
	ev      *evidence.Evidence
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = time.Millisecond
	}
	primary := newFakeClient("sepolia", 11155111)
	mirror := newFakeClient("amoy", 80002)
	store := evidence.NewMemoryStore()
	chain := custody.NewMemoryStore()

	ev := &evidence.Evidence{
		CaseID:    uuid.New(),
		Kind:      "document",
		ContentID: testFingerprint,
		DataHash:  testFingerprint,
	}
	if err := store.Create(context.Background(), ev); err != nil {
		t.Fatalf("create evidence: %v", err)
	}

	coord := New(
		map[string]LedgerClient{"sepolia": primary, "amoy": mirror},
		store, chain, cfg, zap.NewNop(),
	)
	return &fixture{coord: coord, primary: primary, mirror: mirror, store: store, chain: chain, ev: ev}
}

func TestSubmitAnchorsOnPrimaryOnly(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	outcome, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Anchor == nil {
		t.Fatal("expected anchor in outcome")
	}
	if outcome.Anchor.Network != "sepolia" || outcome.Anchor.ChainID != 11155111 {
		t.Errorf("anchor = %+v", outcome.Anchor)
	}
	if outcome.Bridge != nil {
		t.Error("bridge should not run with auto-bridge disabled")
	}

	if on, _ := fx.primary.Exists(ctx, testFingerprint); !on {
		t.Error("fingerprint missing on primary network")
	}
	if on, _ := fx.mirror.Exists(ctx, testFingerprint); on {
		t.Error("fingerprint should not be on mirror network")
	}

	got, err := fx.store.Get(ctx, fx.ev.ID)
	if err != nil {
		t.Fatalf("get evidence: %v", err)
	}
	if got.BlockchainData == nil || got.BlockchainData.TransactionHash != outcome.Anchor.TransactionHash {
		t.Errorf("persisted anchor = %+v", got.BlockchainData)
	}

	events, _ := fx.chain.Load(ctx, fx.ev.ID.String())
	if len(events) != 1 {
		t.Fatalf("custody events = %d, want 1", len(events))
	}
	if report := custody.VerifyChain(fx.ev.ID.String(), testFingerprint, events); !report.Valid {
		t.Errorf("custody chain invalid: %v", report.Issues)
	}
}

func TestSubmitRejectsDuplicateBeforeNetworkCall(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	before := fx.primary.submitCount()

	_, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("err = %v, want ErrDuplicateSubmission", err)
	}
	if got := fx.primary.submitCount(); got != before {
		t.Errorf("duplicate submit reached the network: %d submits, want %d", got, before)
	}
}

func TestSubmitRejectsExistingAnchorWithoutNetworkCall(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	// Anchor recorded by another process: only the store knows about it.
	if err := fx.store.SetAnchor(ctx, fx.ev.ID, &evidence.Anchor{
		Network: "sepolia", ChainID: 11155111, TransactionHash: "0xexternal",
	}); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}

	_, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("err = %v, want ErrDuplicateSubmission", err)
	}
	if fx.primary.submitCount() != 0 {
		t.Error("submit reached the network despite existing anchor")
	}
}

func TestSubmitUnknownNetwork(t *testing.T) {
	fx := newFixture(t, Config{})
	if _, err := fx.coord.Submit(context.Background(), fx.ev.ID, "mainnet"); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("err = %v, want ErrUnknownNetwork", err)
	}
}

func TestSubmitMissingEvidence(t *testing.T) {
	fx := newFixture(t, Config{})
	if _, err := fx.coord.Submit(context.Background(), uuid.New(), "sepolia"); !errors.Is(err, evidence.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmitNoFingerprint(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()
	bare := &evidence.Evidence{CaseID: uuid.New(), Kind: "other"}
	if err := fx.store.Create(ctx, bare); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.coord.Submit(ctx, bare.ID, "sepolia"); !errors.Is(err, ErrNoFingerprint) {
		t.Fatalf("err = %v, want ErrNoFingerprint", err)
	}
}

func TestAutoBridgeOnSubmit(t *testing.T) {
	fx := newFixture(t, Config{AutoBridge: true, TargetNetwork: "amoy"})
	ctx := context.Background()

	outcome, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Bridge == nil {
		t.Fatal("expected bridge record in outcome")
	}
	if outcome.Bridge.TargetChainID != 80002 || !outcome.Bridge.Bridged {
		t.Errorf("bridge = %+v", outcome.Bridge)
	}

	if on, _ := fx.mirror.Exists(ctx, testFingerprint); !on {
		t.Error("fingerprint missing on mirror network")
	}
	got, _ := fx.store.Get(ctx, fx.ev.ID)
	if got.CrossChainData == nil || !got.CrossChainData.Bridged {
		t.Errorf("persisted bridge record = %+v", got.CrossChainData)
	}
	// Anchor + mirror both leave a custody trail.
	events, _ := fx.chain.Load(ctx, fx.ev.ID.String())
	if len(events) != 2 {
		t.Errorf("custody events = %d, want 2", len(events))
	}
}

func TestAutoBridgeSkippedWhenTargetIsPrimary(t *testing.T) {
	fx := newFixture(t, Config{AutoBridge: true, TargetNetwork: "sepolia"})
	outcome, err := fx.coord.Submit(context.Background(), fx.ev.ID, "sepolia")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Bridge != nil {
		t.Error("bridge should be skipped when target equals the primary network")
	}
	if fx.primary.submitCount() != 1 {
		t.Errorf("submits = %d, want 1", fx.primary.submitCount())
	}
}

func TestBridgeFailureDoesNotFailSubmit(t *testing.T) {
	fx := newFixture(t, Config{AutoBridge: true, TargetNetwork: "amoy"})
	fx.mirror.submitErr = errors.New("node down")
	ctx := context.Background()

	outcome, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia")
	if err != nil {
		t.Fatalf("submit should survive bridge failure, got %v", err)
	}
	if outcome.Anchor == nil {
		t.Fatal("expected anchor in outcome")
	}
	if outcome.Bridge != nil {
		t.Error("failed bridge must not appear in outcome")
	}
	got, _ := fx.store.Get(ctx, fx.ev.ID)
	if got.BlockchainData == nil {
		t.Error("primary anchor not persisted")
	}
	if got.CrossChainData != nil {
		t.Error("bridge record persisted despite failure")
	}
}

func TestVerifySameNetwork(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()
	if _, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	v, err := fx.coord.Verify(ctx, fx.ev.ID, "sepolia")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !v.Verified || !v.OnChain {
		t.Errorf("verification = %+v", v)
	}
	if v.Anchor == nil || v.Anchor.Network != "sepolia" {
		t.Errorf("anchor = %+v", v.Anchor)
	}
}

func TestVerifyReceiptErrorFallsBackToExistence(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()
	if _, err := fx.coord.Submit(ctx, fx.ev.ID, "sepolia"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fx.primary.receiptErr = errors.New("receipt endpoint down")

	v, err := fx.coord.Verify(ctx, fx.ev.ID, "sepolia")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !v.Verified {
		t.Error("existence fallback should verify the anchored fingerprint")
	}
}

func TestVerifyCrossChainMissTriggersSingleBridge(t *testing.T) {
	fx := newFixture(t, Config{AutoBridge: true, TargetNetwork: "amoy"})
	ctx := context.Background()

	// Anchor on the primary only, bypassing auto-bridge, so the mirror
	// network genuinely has no record.
	res, err := fx.primary.Submit(ctx, fx.ev.ContentID, fx.ev.DataHash, ledger.KindDocument)
	if err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	if err := fx.store.SetAnchor(ctx, fx.ev.ID, &evidence.Anchor{
		Network: "sepolia", ChainID: 11155111, TransactionHash: res.TxHash, BlockNumber: res.BlockNumber,
	}); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}
	seedSubmits := fx.mirror.submitCount()

	v, err := fx.coord.Verify(ctx, fx.ev.ID, "amoy")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !v.Verified {
		t.Error("verification should succeed after the on-demand bridge")
	}
	if got := fx.mirror.submitCount() - seedSubmits; got != 1 {
		t.Errorf("bridge submits = %d, want exactly 1", got)
	}
	got, _ := fx.store.Get(ctx, fx.ev.ID)
	if got.CrossChainData == nil {
		t.Error("on-demand bridge did not persist a record")
	}
}

func TestVerifyCrossChainStillAbsentReportsFalse(t *testing.T) {
	fx := newFixture(t, Config{AutoBridge: true, TargetNetwork: "amoy"})
	ctx := context.Background()
	// The bridge transaction lands but the mirror chain never settles.
	fx.mirror.registerOnSubmit = false

	v, err := fx.coord.Verify(ctx, fx.ev.ID, "amoy")
	if err != nil {
		t.Fatalf("absence must not error: %v", err)
	}
	if v.Verified || v.OnChain {
		t.Errorf("verification = %+v, want absent", v)
	}
	if got := fx.mirror.submitCount(); got != 1 {
		t.Errorf("bridge submits = %d, want exactly 1", got)
	}
}

func TestVerifyCrossChainNoAutoBridge(t *testing.T) {
	fx := newFixture(t, Config{})
	ctx := context.Background()

	v, err := fx.coord.Verify(ctx, fx.ev.ID, "amoy")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Verified {
		t.Error("nothing anchored, verification should fail")
	}
	if fx.mirror.submitCount() != 0 {
		t.Error("bridge attempted with auto-bridge disabled")
	}
}

func TestBridgeUnknownNetwork(t *testing.T) {
	fx := newFixture(t, Config{})
	if _, err := fx.coord.Bridge(context.Background(), fx.ev.ID, "mainnet"); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("err = %v, want ErrUnknownNetwork", err)
	}
}
