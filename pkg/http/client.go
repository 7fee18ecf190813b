// Package http wraps the standard http client with retries and request id
// propagation for calls to third party services.
package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/novatrust/bio-gateway/internal/log"
)

// NewClientWithRetry returns an http client with retry behavior. timeout
// bounds each individual attempt, zero means no bound.
func NewClientWithRetry(timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	return NewClient(http.Client{
		Transport: &retryablehttp.RoundTripper{
			Client: rc,
		},
	})
}

// Client represents default http client that can be used to send requests to third party services
type Client struct {
	base http.Client
}

// NewClient returns new instance of custom client
func NewClient(c http.Client) *Client {
	return &Client{
		base: c,
	}
}

// Post sends a post request to url with additional headers. Any status other
// than 200 is an error.
func (c *Client) Post(ctx context.Context, url string, req []byte) ([]byte, error) {
	status, body, err := c.Do(ctx, http.MethodPost, url, req, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("http request failed with status %v, error: %v", status, string(body))
	}
	return body, nil
}

// Get sends a get request to url with requestID headers. Any status other
// than 200 is an error.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	status, body, err := c.Do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("http request failed with status %v, error: %v", status, string(body))
	}
	return body, nil
}

// Do executes a request and returns the response status and body. Callers
// that need to react to specific status codes use this instead of Get/Post.
func (c *Client) Do(ctx context.Context, method, url string, req []byte, headers map[string]string) (int, []byte, error) {
	var reqBody io.Reader = http.NoBody
	if req != nil {
		reqBody = bytes.NewBuffer(req)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, err
	}

	addRequestIDToHeader(ctx, request)
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	resp, err := c.base.Do(request)
	if err != nil {
		return 0, nil, err
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error(ctx, "can not close body", "err", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

// addRequestIDToHeader adds headers to request
func addRequestIDToHeader(ctx context.Context, r *http.Request) {
	requestID := middleware.GetReqID(ctx)

	r.Header.Add("Content-Type", "application/json")
	r.Header.Add(middleware.RequestIDHeader, requestID)
}
