package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/casetrace/casetrace/internal/hashing"
	"github.com/casetrace/casetrace/pkg/anchorclient"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	authToken string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "evctl",
	Short: "CaseTrace evidence CLI",
	Long: `evctl is the command-line interface for CaseTrace.

It ingests evidence files, anchors their fingerprints on ledger networks,
and verifies anchors and chains of custody against a CaseTrace service.
The hash and merkle commands work fully offline.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.casetrace")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.casetrace/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "CaseTrace service URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for authenticated routes")

	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(merkleCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(custodyCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *anchorclient.Client {
	opts := []anchorclient.Option{anchorclient.WithTimeout(2 * time.Minute)}
	if authToken != "" {
		opts = append(opts, anchorclient.WithBearerToken(authToken))
	}
	return anchorclient.New(serverURL, opts...)
}

// ── hash ─────────────────────────────────────────────────────────────────────

var hashAlgo string

var hashCmd = &cobra.Command{
	Use:   "hash <file> [file...]",
	Short: "Compute content fingerprints of local files (offline)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo := hashing.Algorithm(strings.ToLower(hashAlgo))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			digest, err := hashing.Digest(data, algo)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\n", digest, path)
		}
		return w.Flush()
	},
}

func init() {
	hashCmd.Flags().StringVar(&hashAlgo, "algo", "sha256", "Hash algorithm: sha256, sha512, md5, keccak256")
}

// ── merkle ───────────────────────────────────────────────────────────────────

var merkleCmd = &cobra.Command{
	Use:   "merkle",
	Short: "Merkle tree operations over file fingerprints (offline)",
}

var merkleRootCmd = &cobra.Command{
	Use:   "root <file> [file...]",
	Short: "Compute the Merkle root of the given files' SHA-256 fingerprints",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		leaves, err := fileLeaves(args)
		if err != nil {
			return err
		}
		fmt.Println(hashing.MerkleRoot(leaves))
		return nil
	},
}

var merkleProofCmd = &cobra.Command{
	Use:   "proof <index> <file> [file...]",
	Short: "Compute the inclusion proof for the file at the given index",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		leaves, err := fileLeaves(args[1:])
		if err != nil {
			return err
		}
		proof, err := hashing.MerkleProof(leaves, index)
		if err != nil {
			return err
		}
		out := map[string]any{
			"leaf":  leaves[index],
			"index": index,
			"root":  hashing.MerkleRoot(leaves),
			"proof": proof,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var merkleVerifyCmd = &cobra.Command{
	Use:   "verify <leaf> <index> <root> [sibling...]",
	Short: "Verify an inclusion proof",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[1])
		}
		ok := hashing.VerifyMerkleProof(args[0], args[3:], index, args[2])
		if !ok {
			fmt.Println("INVALID")
			os.Exit(1)
		}
		fmt.Println("OK")
		return nil
	},
}

func init() {
	merkleCmd.AddCommand(merkleRootCmd)
	merkleCmd.AddCommand(merkleProofCmd)
	merkleCmd.AddCommand(merkleVerifyCmd)
}

func fileLeaves(paths []string) ([]string, error) {
	leaves := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		leaves = append(leaves, hashing.MustDigest(data, hashing.SHA256))
	}
	return leaves, nil
}

// ── ingest ───────────────────────────────────────────────────────────────────

var (
	ingestCaseID string
	ingestKind   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Upload an evidence file to the CaseTrace service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		ev, err := newClient().IngestEvidence(context.Background(), ingestCaseID, ingestKind, data)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		fmt.Printf("✓ Evidence ingested\n\n")
		fmt.Printf("  ID:          %s\n", ev.ID)
		fmt.Printf("  Case:        %s\n", ev.CaseID)
		fmt.Printf("  Fingerprint: %s\n\n", ev.DataHash)
		fmt.Println("Next: evctl anchor <id> --network <name> to anchor it on chain")
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCaseID, "case", "", "Case UUID the evidence belongs to")
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "other", "Evidence kind: image, video, document, audio, other")
	ingestCmd.MarkFlagRequired("case") //nolint:errcheck
}

// ── anchor / bridge / verify ─────────────────────────────────────────────────

var anchorNetwork string

var anchorCmd = &cobra.Command{
	Use:   "anchor <evidence-id>",
	Short: "Anchor the evidence fingerprint on a ledger network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome, err := newClient().AnchorEvidence(context.Background(), args[0], anchorNetwork)
		if err != nil {
			return fmt.Errorf("anchor: %w", err)
		}

		fmt.Printf("✓ Anchored on %s\n\n", outcome.Anchor.Network)
		fmt.Printf("  Tx:       %s\n", outcome.Anchor.TransactionHash)
		fmt.Printf("  Block:    %d\n", outcome.Anchor.BlockNumber)
		fmt.Printf("  Chain ID: %d\n", outcome.Anchor.ChainID)
		if outcome.Bridge != nil {
			fmt.Printf("\n✓ Mirrored to chain %d (tx %s)\n",
				outcome.Bridge.TargetChainID, outcome.Bridge.BridgeTransactionHash)
		}
		return nil
	},
}

var bridgeTarget string

var bridgeCmd = &cobra.Command{
	Use:   "bridge <evidence-id>",
	Short: "Mirror an anchored fingerprint onto another network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := newClient().BridgeEvidence(context.Background(), args[0], bridgeTarget)
		if err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
		fmt.Printf("✓ Mirrored to chain %d (tx %s)\n", record.TargetChainID, record.BridgeTransactionHash)
		return nil
	},
}

var verifyNetwork string

var verifyCmd = &cobra.Command{
	Use:   "verify <evidence-id>",
	Short: "Verify the evidence fingerprint's presence on a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := newClient().VerifyEvidence(context.Background(), args[0], verifyNetwork)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !v.Verified {
			fmt.Printf("✗ Not found on %s\n", v.Network)
			os.Exit(1)
		}
		fmt.Printf("✓ Verified on %s\n", v.Network)
		if v.Anchor != nil {
			fmt.Printf("  Tx:    %s\n", v.Anchor.TransactionHash)
			fmt.Printf("  Block: %d\n", v.Anchor.BlockNumber)
		}
		return nil
	},
}

func init() {
	anchorCmd.Flags().StringVar(&anchorNetwork, "network", "", "Target ledger network name")
	anchorCmd.MarkFlagRequired("network") //nolint:errcheck
	bridgeCmd.Flags().StringVar(&bridgeTarget, "target", "", "Target ledger network name")
	bridgeCmd.MarkFlagRequired("target") //nolint:errcheck
	verifyCmd.Flags().StringVar(&verifyNetwork, "network", "", "Ledger network to check")
	verifyCmd.MarkFlagRequired("network") //nolint:errcheck
}

// ── custody ──────────────────────────────────────────────────────────────────

var custodyCmd = &cobra.Command{
	Use:   "custody",
	Short: "Inspect and verify chains of custody",
}

var custodyListCmd = &cobra.Command{
	Use:   "list <evidence-id>",
	Short: "Print the evidence's custody chain in append order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := newClient().CustodyChain(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("load custody chain: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTYPE\tFROM\tTO\tPURPOSE\tTIMESTAMP")
		for i, e := range events {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				i, e.Type, actorLabel(e.From), actorLabel(e.To),
				e.Purpose, e.Timestamp.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var custodyVerifyCmd = &cobra.Command{
	Use:   "verify <evidence-id>",
	Short: "Recompute the custody chain hashes and report tampering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := newClient().VerifyCustody(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("verify custody: %w", err)
		}
		if report.Valid {
			fmt.Println("✓ Chain of custody intact")
			return nil
		}
		fmt.Println("✗ Chain of custody BROKEN:")
		for _, issue := range report.Issues {
			fmt.Printf("  - %s\n", issue)
		}
		os.Exit(1)
		return nil
	},
}

func init() {
	custodyCmd.AddCommand(custodyListCmd)
	custodyCmd.AddCommand(custodyVerifyCmd)
}

func actorLabel(a *anchorclient.ActorRef) string {
	if a == nil {
		return "-"
	}
	if a.Name != "" {
		return a.Name
	}
	return a.UserID
}

// ── health / version ─────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health <network>",
	Short: "Probe a ledger network through the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newClient().LedgerHealth(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		fmt.Printf("Network:   %s\n", h.Network)
		fmt.Printf("Connected: %v\n", h.Health.Connected)
		fmt.Printf("Contract:  %v\n", h.Health.ContractLoaded)
		fmt.Printf("Chain ID:  %d\n", h.Health.ChainID)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the evctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("evctl", version)
	},
}
