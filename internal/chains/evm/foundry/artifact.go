// Package foundry parses contract artifacts written by `forge build`
// (out/<Source>.sol/<Contract>.json).
package foundry

import (
	"encoding/json"
	"fmt"

	"github.com/pendergraft/mintforge/internal/chains"
)

// Parser implements chains.ArtifactParser for Foundry output.
type Parser struct{}

// New creates a new Foundry parser
func New() *Parser {
	return &Parser{}
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "foundry"
}

// Detect matches artifacts whose bytecode is an object with an "object" field.
func (p *Parser) Detect(raw map[string]json.RawMessage) bool {
	bc, ok := raw["bytecode"]
	if !ok {
		return false
	}
	var obj BytecodeObject
	return json.Unmarshal(bc, &obj) == nil && obj.Object != ""
}

// Parse parses a Foundry artifact
func (p *Parser) Parse(name string, data []byte) (*chains.Artifact, error) {
	var raw Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}

	// Interfaces and abstract contracts have no code.
	if raw.Bytecode.Object == "" || raw.Bytecode.Object == "0x" {
		return nil, chains.ErrNoBytecode
	}

	var metadata Metadata
	if raw.RawMetadata != "" {
		_ = json.Unmarshal([]byte(raw.RawMetadata), &metadata) // Non-fatal, continue without metadata
	}

	return &chains.Artifact{
		Name:             name,
		Format:           p.Name(),
		SourcePath:       getFirstKey(metadata.Settings.CompilationTarget),
		ABI:              raw.ABI,
		Bytecode:         raw.Bytecode.Object,
		DeployedBytecode: raw.DeployedBytecode.Object,
		CompilerVersion:  metadata.Compiler.Version,
	}, nil
}

// Artifact is the subset of a forge artifact that is read.
type Artifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

type BytecodeObject struct {
	Object string `json:"object"`
}

// Metadata is the solc metadata embedded as rawMetadata.
type Metadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

func getFirstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}
