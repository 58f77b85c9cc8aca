// Package pinning uploads content to a Pinata-compatible pinning service and
// reads it back through an IPFS gateway.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pendergraft/mintforge/internal/observability/metrics"
)

var (
	ErrNotConfigured = errors.New("pinning credentials not configured")
	ErrUpstream      = errors.New("pinning service error")
	ErrNotFound      = errors.New("content not found")
)

// APIError carries a non-2xx response from the pinning service or gateway.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinning service returned %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return ErrUpstream }

// Config holds pinning service settings.
type Config struct {
	APIURL     string
	GatewayURL string
	APIKey     string
	SecretKey  string
	JWT        string
	CIDVersion int
	Timeout    time.Duration
}

// PinResult describes pinned content.
type PinResult struct {
	CID        string `json:"cid"`
	URI        string `json:"uri"`
	GatewayURL string `json:"gatewayUrl"`
	Size       int64  `json:"size"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Client is a Pinata API client.
type Client struct {
	cfg     Config
	api     *resty.Client
	gateway *resty.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient routes both API and gateway requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.api = resty.NewWithClient(hc).SetBaseURL(c.cfg.APIURL)
		c.gateway = resty.NewWithClient(hc).SetBaseURL(c.cfg.GatewayURL)
	}
}

// New creates a pinning client
func New(cfg Config, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.pinata.cloud"
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = "https://gateway.pinata.cloud/ipfs"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")

	c := &Client{
		cfg:     cfg,
		api:     resty.New().SetBaseURL(cfg.APIURL),
		gateway: resty.New().SetBaseURL(cfg.GatewayURL),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Timeout > 0 {
		c.api.SetTimeout(cfg.Timeout)
		c.gateway.SetTimeout(cfg.Timeout)
	}
	return c
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.JWT != "" || (c.cfg.APIKey != "" && c.cfg.SecretKey != "")
}

// GatewayURL returns the HTTP gateway URL for a content id.
func (c *Client) GatewayURL(cid string) string {
	return c.cfg.GatewayURL + "/" + cid
}

// PinFile uploads raw bytes under fileName.
func (c *Client) PinFile(ctx context.Context, data []byte, fileName, contentType string) (*PinResult, error) {
	res, err := c.pin(ctx, data, fileName, contentType)
	metrics.RecordPin("file", err)
	return res, err
}

// PinJSON uploads a serialized JSON document. The bytes are pinned unchanged so
// that a digest computed by the caller matches what the gateway serves.
func (c *Client) PinJSON(ctx context.Context, doc []byte, fileName string) (*PinResult, error) {
	if !json.Valid(doc) {
		return nil, fmt.Errorf("pinning %s: document is not valid JSON", fileName)
	}
	res, err := c.pin(ctx, doc, fileName, "application/json")
	metrics.RecordPin("json", err)
	return res, err
}

func (c *Client) pin(ctx context.Context, data []byte, fileName, contentType string) (*PinResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	meta, _ := json.Marshal(map[string]string{"name": fileName})
	opts, _ := json.Marshal(map[string]int{"cidVersion": c.cfg.CIDVersion})

	var out pinResponse
	req := c.api.R().
		SetContext(ctx).
		SetMultipartFields(&resty.MultipartField{
			Param:       "file",
			FileName:    fileName,
			ContentType: contentType,
			Reader:      bytes.NewReader(data),
		}).
		SetMultipartFormData(map[string]string{
			"pinataMetadata": string(meta),
			"pinataOptions":  string(opts),
		}).
		SetResult(&out)
	c.setAuth(req)

	resp, err := req.Post("/pinning/pinFileToIPFS")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	if out.IpfsHash == "" {
		return nil, fmt.Errorf("%w: response carried no IpfsHash", ErrUpstream)
	}

	return &PinResult{
		CID:        out.IpfsHash,
		URI:        "ipfs://" + out.IpfsHash,
		GatewayURL: c.GatewayURL(out.IpfsHash),
		Size:       out.PinSize,
		Timestamp:  out.Timestamp,
	}, nil
}

// Fetch downloads content by CID from the gateway.
func (c *Client) Fetch(ctx context.Context, cid string) ([]byte, error) {
	resp, err := c.gateway.R().SetContext(ctx).Get("/" + cid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return resp.Body(), nil
}

func (c *Client) setAuth(req *resty.Request) {
	if c.cfg.JWT != "" {
		req.SetAuthToken(c.cfg.JWT)
		return
	}
	req.SetHeader("pinata_api_key", c.cfg.APIKey)
	req.SetHeader("pinata_secret_api_key", c.cfg.SecretKey)
}
