package evm

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestStripMetadata(t *testing.T) {
	tests := []struct {
		name     string
		bytecode string
		want     string
	}{
		{
			name:     "bytecode without metadata",
			bytecode: "608060405234801561001057600080fd5b50",
			want:     "608060405234801561001057600080fd5b50",
		},
		{
			name:     "bytecode with IPFS metadata",
			bytecode: "6080604052fe0033a264697066735822",
			want:     "6080604052fe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bytecode, _ := hex.DecodeString(tt.bytecode)
			got := hex.EncodeToString(StripMetadata(bytecode))
			if got != tt.want {
				t.Errorf("StripMetadata() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeHex(t *testing.T) {
	got, err := DecodeHex("0x6080")
	if err != nil || !bytes.Equal(got, []byte{0x60, 0x80}) {
		t.Errorf("DecodeHex() = %x, %v", got, err)
	}
	if _, err := DecodeHex("0xzz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestCompareBytecode(t *testing.T) {
	withMeta := func(code []byte, meta byte) []byte {
		out := append([]byte{}, code...)
		out = append(out, 0x00, 0x33)
		out = append(out, metadataMarker...)
		return append(out, meta)
	}
	code := []byte{0x60, 0x80, 0x60, 0x40}

	tests := []struct {
		name      string
		deployed  []byte
		expected  []byte
		wantMatch bool
		wantType  string
	}{
		{
			name:      "exact match",
			deployed:  code,
			expected:  code,
			wantMatch: true,
			wantType:  "full",
		},
		{
			name:      "metadata differs",
			deployed:  withMeta(code, 0x01),
			expected:  withMeta(code, 0x02),
			wantMatch: true,
			wantType:  "partial",
		},
		{
			name:      "no match",
			deployed:  []byte{0x60, 0x80, 0x60, 0x40},
			expected:  []byte{0x60, 0x80, 0x60, 0x50},
			wantMatch: false,
			wantType:  "none",
		},
		{
			name:      "no code",
			deployed:  nil,
			expected:  code,
			wantMatch: false,
			wantType:  "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CompareBytecode(tt.deployed, tt.expected)
			if result.Match != tt.wantMatch {
				t.Errorf("CompareBytecode().Match = %v, want %v", result.Match, tt.wantMatch)
			}
			if result.MatchType != tt.wantType {
				t.Errorf("CompareBytecode().MatchType = %v, want %v", result.MatchType, tt.wantType)
			}
		})
	}
}
