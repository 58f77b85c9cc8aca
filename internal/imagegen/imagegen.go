// Package imagegen is a client for an OpenAI-compatible image generation API.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrNotConfigured = errors.New("image generation API key not configured")
	ErrEmptyResponse = errors.New("image generation returned no image")
	ErrUpstream      = errors.New("image generation service error")
)

// APIError is an error reported by the image API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("image API %d (%s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("image API %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUpstream }

// Config holds image generation settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
	Quality string
	Timeout time.Duration
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client generates images from text prompts.
type Client struct {
	cfg  Config
	rest *resty.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.rest = resty.NewWithClient(hc).SetBaseURL(c.cfg.BaseURL)
	}
}

// New creates an image generation client
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-image-1"
	}
	if cfg.Size == "" {
		cfg.Size = "1024x1024"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{cfg: cfg, rest: resty.New().SetBaseURL(cfg.BaseURL)}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Timeout > 0 {
		c.rest.SetTimeout(cfg.Timeout)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Generate returns the base64-encoded bytes of one generated image.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body := generateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		N:       1,
		Size:    c.cfg.Size,
		Quality: c.cfg.Quality,
	}
	// DALL-E models return URLs unless asked otherwise; gpt-image models always
	// return base64 and reject the parameter.
	if strings.HasPrefix(c.cfg.Model, "dall-e") {
		body.ResponseFormat = "b64_json"
	}

	var out generateResponse
	var apiErr errorResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.APIKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/images/generations")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", &APIError{Status: resp.StatusCode(), Type: apiErr.Error.Type, Message: msg}
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return "", ErrEmptyResponse
	}
	return out.Data[0].B64JSON, nil
}
