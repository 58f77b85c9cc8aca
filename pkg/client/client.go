// Package client provides a Go client for the mintforge API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a mintforge API client
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the request timeout of the default HTTP client. Minting
// waits for two receipts, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// New creates a new mintforge client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "mintforge-client",
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Attribute is an LSP4 attribute.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Metadata is the token metadata of a mint request. MediaURL may be a data
// URL or bare base64.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	MediaURL    string      `json:"mediaUrl"`
	Attributes  []Attribute `json:"attributes"`
}

// MintRequest is the body of POST /api/mint.
type MintRequest struct {
	RecipientAddress string    `json:"recipientAddress"`
	TokenID          *uint64   `json:"tokenId,omitempty"`
	Metadata         *Metadata `json:"metadata"`
}

// MintResult summarizes a mint run.
type MintResult struct {
	Success          bool   `json:"success"`
	MintID           string `json:"mintId"`
	Status           string `json:"status"`
	TokenID          uint64 `json:"tokenId"`
	TokenIDHex       string `json:"tokenIdHex"`
	ImageURI         string `json:"imageUri,omitempty"`
	ImageURL         string `json:"imageUrl,omitempty"`
	MetadataURI      string `json:"metadataUri,omitempty"`
	MetadataURL      string `json:"metadataUrl,omitempty"`
	ContractAddress  string `json:"contractAddress"`
	MintTxHash       string `json:"mintTxHash,omitempty"`
	DataTxHash       string `json:"dataTxHash,omitempty"`
	GlobalDataTxHash string `json:"globalDataTxHash,omitempty"`
}

// MintResponse is returned by Mint and ResumeMint.
type MintResponse struct {
	Success         bool       `json:"success"`
	Message         MintResult `json:"message"`
	ContractAddress string     `json:"contractAddress"`
	TokenID         uint64     `json:"tokenId"`
}

// Mint is a recorded mint.
type Mint struct {
	ID                string      `json:"id"`
	CollectionAddress string      `json:"collectionAddress"`
	ChainID           int64       `json:"chainId"`
	Recipient         string      `json:"recipient"`
	TokenID           uint64      `json:"tokenId"`
	TokenIDHex        string      `json:"tokenIdHex"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Attributes        []Attribute `json:"attributes"`
	Status            string      `json:"status"`
	Failed            bool        `json:"failed"`
	ImageCID          string      `json:"imageCid,omitempty"`
	ImageHash         string      `json:"imageHash,omitempty"`
	MetadataCID       string      `json:"metadataCid,omitempty"`
	MetadataHash      string      `json:"metadataHash,omitempty"`
	VerifiableURI     string      `json:"verifiableUri,omitempty"`
	MintTxHash        string      `json:"mintTxHash,omitempty"`
	DataTxHash        string      `json:"dataTxHash,omitempty"`
	GlobalDataTxHash  string      `json:"globalDataTxHash,omitempty"`
	Error             string      `json:"error,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// ListMintsOptions filters ListMints.
type ListMintsOptions struct {
	Collection string
	Recipient  string
	Status     string
	Limit      int
	Cursor     string
}

// ListMintsResponse is the response for listing mints
type ListMintsResponse struct {
	Data       []Mint     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PinnedImage describes an image saved to IPFS.
type PinnedImage struct {
	IPFSHash string `json:"ipfsHash"`
	IPFSURL  string `json:"ipfsUrl"`
	IPFSURI  string `json:"ipfsUri"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size,omitempty"`
}

// Collection is a resolved LSP8 collection.
type Collection struct {
	Address   string    `json:"address"`
	ChainID   int64     `json:"chainId"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Owner     string    `json:"owner"`
	TxHash    string    `json:"txHash,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// Check is one verification comparison.
type Check struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// MintVerification is the result of verifying a mint.
type MintVerification struct {
	MintID   string  `json:"mintId"`
	TokenID  uint64  `json:"tokenId"`
	Verified bool    `json:"verified"`
	Checks   []Check `json:"checks"`
}

// CollectionVerification is the result of verifying a collection contract.
type CollectionVerification struct {
	Address   string `json:"address"`
	Verified  bool   `json:"verified"`
	MatchType string `json:"matchType"`
	Message   string `json:"message"`
	Details   *struct {
		ExpectedBytecodeHash string `json:"expectedBytecodeHash,omitempty"`
		ActualBytecodeHash   string `json:"actualBytecodeHash,omitempty"`
	} `json:"details,omitempty"`
}

// APIError represents an API error response. Details is set by failed mints
// and carries the mint id needed to resume.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MintID returns the id of the failed mint, if the server reported one.
func (e *APIError) MintID() string {
	id, _ := e.Details["mintId"].(string)
	return id
}

// Mint runs the mint pipeline.
func (c *Client) Mint(ctx context.Context, req MintRequest) (*MintResponse, error) {
	var resp MintResponse
	if err := c.post(ctx, "/api/mint", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateImage asks the server to generate an image and returns it as base64.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	var resp struct {
		ImageData string `json:"imageData"`
	}
	if err := c.post(ctx, "/api/generate-image", map[string]string{"prompt": prompt}, &resp); err != nil {
		return "", err
	}
	return resp.ImageData, nil
}

// SaveToIPFS pins base64 image data under fileName.
func (c *Client) SaveToIPFS(ctx context.Context, imageData, fileName string) (*PinnedImage, error) {
	var resp PinnedImage
	body := map[string]string{"imageData": imageData, "fileName": fileName}
	if err := c.post(ctx, "/api/save-to-ipfs", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMints lists recorded mints
func (c *Client) ListMints(ctx context.Context, opts ListMintsOptions) (*ListMintsResponse, error) {
	q := url.Values{}
	if opts.Collection != "" {
		q.Set("collection", opts.Collection)
	}
	if opts.Recipient != "" {
		q.Set("recipient", opts.Recipient)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/api/mints"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListMintsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMint gets a mint by id
func (c *Client) GetMint(ctx context.Context, id string) (*Mint, error) {
	var resp Mint
	if err := c.get(ctx, "/api/mints/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResumeMint continues a failed mint from its last completed step.
func (c *Client) ResumeMint(ctx context.Context, id string) (*MintResponse, error) {
	var resp MintResponse
	if err := c.post(ctx, "/api/mints/"+url.PathEscape(id)+"/resume", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyMint checks a mint's pinned content and on-chain metadata.
func (c *Client) VerifyMint(ctx context.Context, id string) (*MintVerification, error) {
	var resp MintVerification
	if err := c.get(ctx, "/api/mints/"+url.PathEscape(id)+"/verify", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCollections lists known collections.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var resp struct {
		Data []Collection `json:"data"`
	}
	if err := c.get(ctx, "/api/collections", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CurrentCollection returns the collection new tokens are minted into.
func (c *Client) CurrentCollection(ctx context.Context) (*Collection, error) {
	var resp Collection
	if err := c.get(ctx, "/api/collections/current", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyCollection compares the collection's runtime code with the artifact.
func (c *Client) VerifyCollection(ctx context.Context, address string) (*CollectionVerification, error) {
	var resp CollectionVerification
	if err := c.get(ctx, "/api/collections/"+url.PathEscape(address)+"/verify", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports whether the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "HTTP_" + strconv.Itoa(resp.StatusCode),
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	errResp.Error.StatusCode = resp.StatusCode
	return &errResp.Error
}
