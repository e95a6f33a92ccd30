// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package client implements the HTTP client for the Rubix node API.
//
// The node speaks JSON over HTTP. Every endpoint responds with at least
// {status, message, result}; endpoint-specific fields ride alongside those, so
// callers pass a struct embedding Response to the Get/PostJSON helpers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/rubixchain/rubix-sdk-go/log"
)

const (
	// DefaultTimeout is the request timeout used when the config does not
	// specify one.
	DefaultTimeout = 300 * time.Second

	apiKeyHeader = "X-API-Key"
)

var (
	// ErrTimeout is returned when a request to the node exceeds the
	// configured timeout or the caller's context deadline.
	ErrTimeout = errors.New("client: request to node timed out")

	// ErrNodeUnreachable is returned when the node cannot be dialed.
	ErrNodeUnreachable = errors.New("client: node unreachable")
)

// Config is the node client configuration.
type Config struct {
	// NodeURL is the base URL of the Rubix node, e.g. "http://localhost:20000".
	NodeURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// APIKey, if set, is sent in the X-API-Key request header.
	APIKey string

	// LogBackend is the logging backend to use. If nil, logging is disabled.
	LogBackend *log.Backend
}

// Client is a Rubix node API client.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	log        *logging.Logger
}

// New constructs a Client from the provided configuration.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client: nil config")
	}
	u, err := url.Parse(cfg.NodeURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid node URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: invalid node URL scheme: '%v'", u.Scheme)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: u,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if cfg.LogBackend != nil {
		c.log = cfg.LogBackend.GetLogger("client")
	} else {
		backend, _ := log.New("", "ERROR", true)
		c.log = backend.GetLogger("client")
	}
	return c, nil
}

// Response is the envelope every node endpoint replies with. Result is left
// raw because the node returns a string, an object, or null depending on the
// endpoint and transaction stage.
type Response struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Challenge is a signing challenge carried in Response.Result during DID
// registration and transaction submission. Hash is base64 encoded.
type Challenge struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
}

// Challenge decodes Result as a signing challenge. It reports false when the
// result is null, a plain string, or otherwise not a challenge, which is how
// the node signals the end of a signature-response exchange.
func (r *Response) Challenge() (*Challenge, bool) {
	if len(r.Result) == 0 || bytes.Equal(r.Result, []byte("null")) {
		return nil, false
	}
	var ch Challenge
	if err := json.Unmarshal(r.Result, &ch); err != nil {
		return nil, false
	}
	if ch.ID == "" || ch.Hash == "" {
		return nil, false
	}
	return &ch, true
}

// Get issues a GET request to the given endpoint and decodes the JSON
// response into out.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.endpointURL(endpoint)
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// PostJSON issues a POST request with a JSON body to the given endpoint and
// decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("client: failed to encode request body: %v", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint).String(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// PostMultipart issues a multipart/form-data POST request. files maps form
// field names to file paths; fields holds the plain form values.
func (c *Client) PostMultipart(ctx context.Context, endpoint string, fields map[string]string, files map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return err
		}
	}
	for name, path := range files {
		if err := attachFile(w, name, path); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint).String(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, out)
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func (c *Client) endpointURL(endpoint string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: endpoint})
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	c.log.Debugf("%s %s", req.Method, req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.mapTransportErr(req, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("client: %s %s: node returned %s", req.Method, req.URL.Path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: invalid JSON response from %s: %v", req.URL.Path, err)
	}
	return nil
}

func (c *Client) mapTransportErr(req *http.Request, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s %s", ErrTimeout, req.Method, req.URL.Path)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s %s", ErrTimeout, req.Method, req.URL.Path)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrNodeUnreachable, opErr)
	}
	return err
}
