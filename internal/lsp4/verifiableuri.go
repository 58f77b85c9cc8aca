package lsp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrUnknownMethod   = errors.New("unknown verification method")
	ErrInvalidEncoding = errors.New("invalid VerifiableURI encoding")
)

// VerifiableURI couples a content URL with the digest of the content it points to.
type VerifiableURI struct {
	Method string  `json:"method"`
	Hash   Bytes32 `json:"hash"`
	URL    string  `json:"url"`
}

const (
	verifiableURIHeaderLen = 2 + 4 + 2
	hashLen                = 32
)

// NewJSONVerifiableURI returns the VerifiableURI for a JSON document serialized as doc
// and reachable at url.
func NewJSONVerifiableURI(doc []byte, url string) VerifiableURI {
	return VerifiableURI{Method: MethodKeccak256UTF8, Hash: Keccak256(doc), URL: url}
}

// Encode produces 0x0000 ‖ methodId ‖ 0x0020 ‖ hash ‖ utf8(url).
func (v VerifiableURI) Encode() ([]byte, error) {
	if _, ok := methodsByID[MethodID(v.Method)]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, v.Method)
	}
	id := MethodID(v.Method)
	out := make([]byte, 0, verifiableURIHeaderLen+hashLen+len(v.URL))
	out = append(out, 0x00, 0x00)
	out = append(out, id[:]...)
	out = binary.BigEndian.AppendUint16(out, hashLen)
	out = append(out, v.Hash[:]...)
	out = append(out, v.URL...)
	return out, nil
}

// DecodeVerifiableURI parses the current encoding and the older JSONURL layout
// (methodId ‖ hash ‖ url) that predates it.
func DecodeVerifiableURI(data []byte) (*VerifiableURI, error) {
	if len(data) >= verifiableURIHeaderLen+hashLen && data[0] == 0 && data[1] == 0 {
		var id [4]byte
		copy(id[:], data[2:6])
		method, ok := methodsByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: 0x%x", ErrUnknownMethod, id)
		}
		n := int(binary.BigEndian.Uint16(data[6:8]))
		if n != hashLen || len(data) < verifiableURIHeaderLen+n {
			return nil, fmt.Errorf("%w: verification data length %d", ErrInvalidEncoding, n)
		}
		v := &VerifiableURI{Method: method, URL: string(data[verifiableURIHeaderLen+n:])}
		copy(v.Hash[:], data[verifiableURIHeaderLen:verifiableURIHeaderLen+n])
		return v, nil
	}

	if len(data) >= 4+hashLen {
		var id [4]byte
		copy(id[:], data[:4])
		if method, ok := methodsByID[id]; ok {
			v := &VerifiableURI{Method: method, URL: string(data[4+hashLen:])}
			copy(v.Hash[:], data[4:4+hashLen])
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes", ErrInvalidEncoding, len(data))
}

// Verify reports whether content hashes to the recorded digest.
func (v VerifiableURI) Verify(content []byte) bool {
	h := Keccak256(content)
	return bytes.Equal(h[:], v.Hash[:])
}
