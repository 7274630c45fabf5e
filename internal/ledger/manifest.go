package ledger

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest is the deployment manifest written by the contract deployment
// tooling. It is the fallback source for contract addresses when the
// environment does not configure one; it is loaded once at startup and
// injected, never re-read per call.
type Manifest struct {
	Networks map[string]ManifestEntry `json:"networks"`
}

// ManifestEntry records one network's deployment.
type ManifestEntry struct {
	ChainID         int64  `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
	DeployedAt      string `json:"deployedAt,omitempty"`
	BlockNumber     uint64 `json:"blockNumber,omitempty"`
}

// LoadManifest reads and parses a deployment manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployment manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse deployment manifest %s: %w", path, err)
	}
	return &m, nil
}

// ResolveContractAddress picks the contract address for a network:
// the configured value wins, the manifest is the fallback. An empty result
// is not an error here — the client reports ErrContractNotLoaded at use.
func ResolveContractAddress(configured, network string, manifest *Manifest) string {
	if configured != "" {
		return configured
	}
	if manifest != nil {
		if entry, ok := manifest.Networks[network]; ok {
			return entry.ContractAddress
		}
	}
	return ""
}
