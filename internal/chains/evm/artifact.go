// Package evm provides the contract gateway for EVM-compatible chains: artifact
// loading, ABI encoding, local transaction signing and JSON-RPC submission.
package evm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pendergraft/mintforge/internal/chains"
	"github.com/pendergraft/mintforge/internal/chains/evm/foundry"
	"github.com/pendergraft/mintforge/internal/chains/evm/hardhat"
)

// Parsers returns the supported artifact parsers in detection order.
func Parsers() []chains.ArtifactParser {
	return []chains.ArtifactParser{
		foundry.New(),
		hardhat.New(),
	}
}

// ParseArtifact detects the build tool that produced data and parses it.
func ParseArtifact(name string, data []byte) (*chains.Artifact, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	for _, p := range Parsers() {
		if p.Detect(raw) {
			return p.Parse(name, data)
		}
	}
	return nil, chains.ErrUnknownFormat
}

// LoadArtifact reads and parses a compiled-contract JSON file.
func LoadArtifact(path string) (*chains.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	a, err := ParseArtifact(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}
