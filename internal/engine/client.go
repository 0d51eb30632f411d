package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the external analysis engine over HTTP. The engine is an
// opaque collaborator; only the wire contract in types.go is assumed.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

// Do issues one engine call bounded by the kind's timeout. Non-2xx status,
// unreadable bodies and status:"error" replies all come back as errors so
// the dispatch layer can classify them uniformly.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return nil, errors.New("engine base url is empty")
	}

	body, err := req.MarshalPayload()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, req.Kind.Timeout())
	defer cancel()

	hreq, err := http.NewRequestWithContext(callCtx, http.MethodPost, base+req.Kind.Path(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(hreq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("engine %s http %d: %s", req.Kind, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out Response
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("engine %s malformed response: %w", req.Kind, err)
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("engine %s returned status %q: %s", req.Kind, out.Status, out.Message)
	}
	return &out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 5 * time.Minute}
}
