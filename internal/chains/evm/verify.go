package evm

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/pendergraft/mintforge/internal/chains"
)

// CBOR metadata marker (Solidity >=0.6.0) - "ipfs" in CBOR
var metadataMarker = []byte{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73}

// StripMetadata removes the CBOR metadata appended to bytecode
func StripMetadata(bytecode []byte) []byte {
	idx := bytes.LastIndex(bytecode, metadataMarker)
	if idx == -1 {
		return bytecode
	}
	// The two bytes before the marker belong to the CBOR length prefix.
	if idx >= 2 {
		return bytecode[:idx-2]
	}
	return bytecode
}

// DecodeHex decodes an optionally 0x-prefixed hex string.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}

// CompareBytecode compares on-chain runtime code to an artifact's deployed bytecode.
func CompareBytecode(deployed, expected []byte) *chains.VerifyResult {
	if len(deployed) == 0 {
		return &chains.VerifyResult{
			Match:     false,
			MatchType: "none",
			Message:   "No code at address",
		}
	}

	if bytes.Equal(deployed, expected) {
		return &chains.VerifyResult{
			Match:     true,
			MatchType: "full",
			Message:   "Bytecode matches exactly including metadata",
		}
	}

	if bytes.Equal(StripMetadata(deployed), StripMetadata(expected)) {
		return &chains.VerifyResult{
			Match:     true,
			MatchType: "partial",
			Message:   "Executable code matches, metadata differs (different source paths, comments, or build environment)",
		}
	}

	return &chains.VerifyResult{
		Match:     false,
		MatchType: "none",
		Message:   "Bytecode does not match",
	}
}
