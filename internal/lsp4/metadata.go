// Package lsp4 builds LSP4 digital asset metadata and the ERC725Y values that
// point at it on-chain.
package lsp4

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ImageSize is the width and height recorded in every image descriptor.
const ImageSize = 1024

// Document is the top-level JSON object pinned for each token.
type Document struct {
	LSP4Metadata Metadata `json:"LSP4Metadata"`
}

// Metadata fields are declared in the order they are serialized.
type Metadata struct {
	Description string      `json:"description"`
	Links       []Link      `json:"links"`
	Icon        []Image     `json:"icon"`
	Images      [][]Image   `json:"images"`
	Assets      []Asset     `json:"assets"`
	Attributes  []Attribute `json:"attributes"`
	Name        string      `json:"name"`
}

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Verification struct {
	Method string `json:"method"`
	Data   string `json:"data"`
}

type Image struct {
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	URL          string       `json:"url"`
	Verification Verification `json:"verification"`
}

type Asset struct {
	URL          string       `json:"url"`
	FileType     string       `json:"fileType"`
	Verification Verification `json:"verification"`
}

// Attribute is a single trait. Value holds a string, number or bool.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Validate rejects attribute values that are not scalars.
func (a Attribute) Validate() error {
	if a.TraitType == "" {
		return fmt.Errorf("attribute trait_type is required")
	}
	switch a.Value.(type) {
	case string, float64, int, int64, uint64, bool, json.Number:
		return nil
	default:
		return fmt.Errorf("attribute %q: value must be a string, number or bool", a.TraitType)
	}
}

// IPFSURI returns the ipfs:// URL for a content id.
func IPFSURI(cid string) string {
	return "ipfs://" + cid
}

// NewImage describes an image pinned under cid whose raw bytes hash to digest.
func NewImage(cid string, digest Bytes32) Image {
	return Image{
		Width:  ImageSize,
		Height: ImageSize,
		URL:    IPFSURI(cid),
		Verification: Verification{
			Method: MethodKeccak256Bytes,
			Data:   digest.Hex(),
		},
	}
}

// NewDocument assembles a token's metadata with a single image used both as icon
// and as the first image set. Nil slices are normalized so they serialize as [].
func NewDocument(name, description string, attributes []Attribute, img Image) Document {
	if attributes == nil {
		attributes = []Attribute{}
	}
	return Document{LSP4Metadata: Metadata{
		Description: description,
		Links:       []Link{},
		Icon:        []Image{img},
		Images:      [][]Image{{img}},
		Assets:      []Asset{},
		Attributes:  attributes,
		Name:        name,
	}}
}

// Marshal serializes the document compactly without HTML escaping. The returned
// bytes are the ones that must be hashed and pinned.
func (d Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encoding LSP4 metadata: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
