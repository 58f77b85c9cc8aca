// Package chains holds the chain-agnostic types shared by the contract gateway,
// the artifact parsers and the services that drive them.
package chains

import (
	"encoding/json"
	"errors"
)

var (
	ErrUnknownFormat = errors.New("unrecognized artifact format")
	ErrNoBytecode    = errors.New("artifact has no bytecode")
)

// ArtifactParser parses the compiled-contract JSON written by one build tool.
type ArtifactParser interface {
	Name() string // "foundry", "hardhat"

	// Detect reports whether the decoded top-level object looks like this
	// tool's output.
	Detect(raw map[string]json.RawMessage) bool
	Parse(name string, data []byte) (*Artifact, error)
}

// Artifact is a compiled contract: ABI plus creation and runtime bytecode.
type Artifact struct {
	Name             string          `json:"name"`
	Format           string          `json:"format"`
	SourcePath       string          `json:"sourcePath,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
	CompilerVersion  string          `json:"compilerVersion,omitempty"`
}

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash          string `json:"txHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	BlockHash       string `json:"blockHash"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty"`
	GasUsed         uint64 `json:"gasUsed"`
	Success         bool   `json:"success"`
}

// VerifyResult contains verification results
type VerifyResult struct {
	Match     bool   `json:"match"`     // Whether the bytecode matches
	MatchType string `json:"matchType"` // "full", "partial", "none"
	Message   string `json:"message"`   // Human-readable explanation
}
