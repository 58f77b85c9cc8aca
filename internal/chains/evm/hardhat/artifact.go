// Package hardhat parses contract artifacts written by `hardhat compile`
// (artifacts/contracts/<Source>.sol/<Contract>.json).
package hardhat

import (
	"encoding/json"
	"fmt"

	"github.com/pendergraft/mintforge/internal/chains"
)

// Parser implements chains.ArtifactParser for Hardhat output.
type Parser struct{}

// New creates a new Hardhat parser
func New() *Parser {
	return &Parser{}
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "hardhat"
}

// Detect matches artifacts carrying the hh-sol-artifact format marker or a
// plain string bytecode field.
func (p *Parser) Detect(raw map[string]json.RawMessage) bool {
	if f, ok := raw["_format"]; ok {
		var format string
		if json.Unmarshal(f, &format) == nil && format != "" {
			return true
		}
	}
	bc, ok := raw["bytecode"]
	if !ok {
		return false
	}
	var s string
	return json.Unmarshal(bc, &s) == nil
}

// Parse parses a Hardhat artifact
func (p *Parser) Parse(name string, data []byte) (*chains.Artifact, error) {
	var raw Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	if raw.Bytecode == "" || raw.Bytecode == "0x" {
		return nil, chains.ErrNoBytecode
	}
	if raw.ContractName != "" {
		name = raw.ContractName
	}
	return &chains.Artifact{
		Name:             name,
		Format:           p.Name(),
		SourcePath:       raw.SourceName,
		ABI:              raw.ABI,
		Bytecode:         raw.Bytecode,
		DeployedBytecode: raw.DeployedBytecode,
	}, nil
}

// Artifact is the subset of a Hardhat artifact that is read.
type Artifact struct {
	Format           string          `json:"_format"`
	ContractName     string          `json:"contractName"`
	SourceName       string          `json:"sourceName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}
