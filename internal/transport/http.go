package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Client issues one-shot and streaming HTTP requests against the grid
// server's REST endpoints. GET and POST are the only methods the protocol
// uses.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(address string, secure bool) *Client {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return &Client{
		baseURL: scheme + "://" + address,
		http:    &http.Client{},
	}
}

// Do performs a one-shot request and returns the full response body. A
// non-2xx status yields *RemoteError carrying that exact status code.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	switch method {
	case http.MethodGet, http.MethodPost:
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}

	req, err := c.newRequest(ctx, method, path, params, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Message: "HTTP response is not OK", Status: resp.StatusCode}
	}
	return payload, nil
}

// StreamingGet opens a streaming GET whose body is consumed in fixed-size
// chunks via the returned Stream. The caller owns the Stream and must Close
// it on every exit path. A non-2xx status closes the body before returning
// *RemoteError.
func (c *Client) StreamingGet(ctx context.Context, path string, params url.Values, chunkSize int) (*Stream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &RemoteError{Message: "HTTP response is not OK", Status: resp.StatusCode}
	}
	return NewStream(resp.Body, chunkSize), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	return req, nil
}
