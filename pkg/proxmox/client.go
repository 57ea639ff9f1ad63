package proxmox

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrVMIDExhausted is returned when no VMID remains in the allocation range.
var ErrVMIDExhausted = errors.New("no free VMID in allocation range")

// ProviderError wraps any transport failure or non-2xx response from the
// hypervisor API. Callers treat it as opaque and non-retryable within one
// request.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("proxmox: %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("proxmox: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ClientConfig carries the connection settings for the hypervisor API.
type ClientConfig struct {
	BaseURL     string
	TokenID     string
	TokenSecret string
	Timeout     time.Duration
	InsecureTLS bool

	// OSTemplate and Storage are applied to every created container.
	OSTemplate string
	Storage    string
}

// Client talks to a Proxmox-compatible REST API. It is safe for concurrent
// use; the underlying HTTP client is created once and reused across calls.
type Client struct {
	baseURL    string
	tokenID    string
	secret     string
	osTemplate string
	storage    string
	httpClient *http.Client
}

const (
	defaultOSTemplate = "local:vztmpl/ubuntu-22.04-standard_22.04-1_amd64.tar.zst"
	defaultStorage    = "local-lvm"
)

func NewClient(cfg ClientConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	osTemplate := cfg.OSTemplate
	if osTemplate == "" {
		osTemplate = defaultOSTemplate
	}
	storage := cfg.Storage
	if storage == "" {
		storage = defaultStorage
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenID:    cfg.TokenID,
		secret:     cfg.TokenSecret,
		osTemplate: osTemplate,
		storage:    storage,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// dataEnvelope is the response wrapper every endpoint uses.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	op := method + " " + path

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &ProviderError{Op: op, Err: err}
		}
		reqBody = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", fmt.Sprintf("PVEAPIToken=%s=%s", c.tokenID, c.secret))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &ProviderError{Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var envelope dataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("failed to decode response envelope: %w", err)}
	}
	if envelope.Data == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("failed to decode response data: %w", err)}
	}
	return nil
}
