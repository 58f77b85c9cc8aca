// Package transport provides HTTP request/response types for the images domain.
package transport

// GenerateRequest is the body of POST /api/generate-image.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse carries base64 image data.
type GenerateResponse struct {
	ImageData string `json:"imageData"`
}

// SaveRequest is the body of POST /api/save-to-ipfs.
type SaveRequest struct {
	ImageData string `json:"imageData"`
	FileName  string `json:"fileName"`
}

// SaveResponse describes the pinned image.
type SaveResponse struct {
	IPFSHash string `json:"ipfsHash"`
	IPFSURL  string `json:"ipfsUrl"`
	IPFSURI  string `json:"ipfsUri"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size,omitempty"`
}
