package lsp4

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Bytes32 is a 32-byte ERC725Y data key, LSP8 token id or keccak256 digest.
type Bytes32 [32]byte

// Keccak256 returns the legacy Keccak-256 digest used throughout Ethereum.
func Keccak256(data ...[]byte) Bytes32 {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Bytes32
	copy(out[:], h.Sum(nil))
	return out
}

// Hex returns the 0x-prefixed lowercase hex form.
func (b Bytes32) Hex() string {
	return "0x" + hex.EncodeToString(b[:])
}

func (b Bytes32) String() string {
	return b.Hex()
}

// IsZero reports whether every byte is zero.
func (b Bytes32) IsZero() bool {
	return b == Bytes32{}
}

// ParseBytes32 parses a 0x-prefixed 32-byte hex string.
func ParseBytes32(s string) (Bytes32, error) {
	var out Bytes32
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return out, fmt.Errorf("invalid bytes32 %q: %w", s, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("invalid bytes32 %q: want 32 bytes, got %d", s, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// TokenID encodes an unsigned token number as a big-endian, left-padded bytes32.
func TokenID(id uint64) Bytes32 {
	var out Bytes32
	new(big.Int).SetUint64(id).FillBytes(out[:])
	return out
}

// TokenNumber reverses TokenID. It fails when the value does not fit in an int64,
// which is the widest id the mint store records.
func TokenNumber(id Bytes32) (uint64, error) {
	n := new(big.Int).SetBytes(id[:])
	if !n.IsUint64() || n.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("token id %s out of range", id.Hex())
	}
	return n.Uint64(), nil
}

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(b.Hex()), nil
}

func (b *Bytes32) UnmarshalText(text []byte) error {
	v, err := ParseBytes32(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
