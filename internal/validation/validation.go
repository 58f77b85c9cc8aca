// Package validation provides request field checks shared by the HTTP routes,
// the mint pipeline and the CLI.
package validation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// Data URL prefix for base64 images, e.g. "data:image/png;base64,"
var dataURLRegex = regexp.MustCompile(`^data:(image/\w+);base64,`)

// DefaultMediaType is assumed when a payload carries no data-URL prefix.
const DefaultMediaType = "image/png"

// StripDataURL removes a leading image data-URL prefix. Applying it twice is
// the same as applying it once.
func StripDataURL(s string) string {
	return dataURLRegex.ReplaceAllString(s, "")
}

// MediaType returns the MIME type named by a data-URL prefix, or DefaultMediaType.
func MediaType(s string) string {
	if m := dataURLRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return DefaultMediaType
}

// DecodeMedia strips any data-URL prefix and base64-decodes the remainder.
func DecodeMedia(s string) ([]byte, error) {
	payload := strings.TrimSpace(StripDataURL(s))
	if payload == "" {
		return nil, errors.New("image data is empty")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}
	return data, nil
}

// ValidateAddress validates an Ethereum address. Mixed-case input must carry a
// valid EIP-55 checksum.
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	hasLower, hasUpper := false, false
	for _, c := range addr[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
		hasLower = hasLower || isLowerHex
		hasUpper = hasUpper || isUpperHex
	}
	if hasLower && hasUpper && ChecksumAddress(addr) != addr {
		return errors.New("invalid address: checksum mismatch")
	}
	return nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of a 0x-prefixed address.
// Input that is not an address is returned unchanged.
func ChecksumAddress(addr string) string {
	a, err := ethtypes.NewAddressWithChecksum(addr)
	if err != nil {
		return addr
	}
	return a.String()
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateTokenName checks the display name used for metadata and file names.
func ValidateTokenName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if len(name) > 200 {
		return errors.New("name too long (max 200 chars)")
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// SanitizeFileName makes a caller-supplied name safe to use as a pinned file name.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " ._")
	if name == "" {
		return "file"
	}
	if len(name) > 128 {
		name = name[:128]
	}
	return name
}
